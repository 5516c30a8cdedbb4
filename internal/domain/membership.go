package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var DefaultSharePrice = decimal.NewFromInt(50)

// CanAccept reports why an applicant cannot become a member yet.
func CanAccept(member Member) error {
	if member.MembershipAccepted {
		return errors.Join(ErrValidation, errors.New("already a member"))
	}
	if !member.EmailIsConfirmed {
		return errors.Join(ErrValidation, errors.New("email address not confirmed"))
	}
	if !member.SignatureReceived {
		return errors.Join(ErrValidation, errors.New("signature not received"))
	}
	if !member.PaymentReceived {
		return errors.Join(ErrValidation, errors.New("payment not received"))
	}
	if member.NumShares < 1 {
		return errors.Join(ErrValidation, errors.New("no shares requested"))
	}
	return nil
}

func ValidateMembershipLoss(member Member, lossDate, lossType string) (string, error) {
	if !member.MembershipAccepted {
		return "", errors.Join(ErrValidation, errors.New("not a member"))
	}
	normalizedDate, err := ValidateDate(lossDate)
	if err != nil {
		return "", errors.Join(ErrValidation, fmt.Errorf("invalid membership loss date %q: %w", lossDate, err))
	}
	if normalizedDate < member.MembershipDate {
		return "", errors.Join(ErrValidation, errors.New("membership loss date before membership date"))
	}
	if err := ValidateLossType(strings.TrimSpace(lossType)); err != nil {
		return "", errors.Join(ErrValidation, fmt.Errorf("invalid membership loss type %q", lossType))
	}
	return normalizedDate, nil
}

// ValidateShareAcquisition checks a new package against the packages the
// member already holds.
func ValidateShareAcquisition(existing []Shares, quantity, maxShares int) error {
	if quantity < 1 {
		return errors.Join(ErrValidation, errors.New("share quantity must be positive"))
	}
	total := quantity
	for _, pkg := range existing {
		total += pkg.Number
	}
	if total > maxShares {
		return errors.Join(ErrValidation, fmt.Errorf("a member may hold at most %d shares", maxShares))
	}
	return nil
}

func SharesTotal(packages []Shares, price decimal.Decimal) (int, decimal.Decimal) {
	count := 0
	for _, pkg := range packages {
		count += pkg.Number
	}
	return count, price.Mul(decimal.NewFromInt(int64(count)))
}
