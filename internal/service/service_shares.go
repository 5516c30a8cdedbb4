package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

type AcquisitionInput struct {
	MembershipNumber int64  `json:"membership_number"`
	Quantity         int    `json:"quantity"`
	Date             string `json:"date"`
}

// AcquireShares books an additional package for a current member. The
// member's total must stay within the configured maximum.
func (s *Service) AcquireShares(ctx context.Context, auth ports.AuthContext, input AcquisitionInput) (domain.Shares, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Shares{}, err
	}
	date, err := dateOrToday(input.Date, s.today(), "acquisition date")
	if err != nil {
		return domain.Shares{}, err
	}

	var created domain.Shares
	err = s.repo.InTx(ctx, func(repo ports.Repository) error {
		member, err := repo.GetMemberByMembershipNumber(ctx, input.MembershipNumber)
		if err != nil {
			return err
		}
		if !member.IsMemberOn(date) {
			return errors.Join(domain.ErrValidation, fmt.Errorf("membership number %d is not a member on %s", input.MembershipNumber, date))
		}
		existing, err := repo.ListSharesByMember(ctx, member.ID)
		if err != nil {
			return err
		}
		if err := domain.ValidateShareAcquisition(existing, input.Quantity, s.config.MaxShares); err != nil {
			return err
		}

		created, err = repo.CreateShares(ctx, domain.Shares{
			MemberID:          member.ID,
			Number:            input.Quantity,
			DateOfAcquisition: date,
			ReferenceCode:     s.newCode(),
		})
		return err
	})
	if err != nil {
		return domain.Shares{}, err
	}

	s.telemetry.Record("shares.acquired", map[string]string{
		"member_id": strconv.FormatInt(created.MemberID, 10),
		"shares_id": strconv.FormatInt(created.ID, 10),
		"number":    strconv.Itoa(created.Number),
	})
	return created, nil
}

func (s *Service) ListShares(ctx context.Context, auth ports.AuthContext, memberID int64) ([]domain.Shares, error) {
	if err := requireStaff(auth); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.repo.ListSharesByMember(ctx, memberID)
}

func (s *Service) GetShares(ctx context.Context, auth ports.AuthContext, id int64) (domain.Shares, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Shares{}, err
	}
	return s.repo.GetShares(ctx, id)
}

// UpdateShares changes the reception data of a package and, within the
// member's limit, its size.
func (s *Service) UpdateShares(ctx context.Context, auth ports.AuthContext, id int64, input domain.Shares) (domain.Shares, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Shares{}, err
	}

	fields := map[string]string{
		"date_of_acquisition":      input.DateOfAcquisition,
		"signature_received_date":  input.SignatureReceivedDate,
		"signature_confirmed_date": input.SignatureConfirmedDate,
		"payment_received_date":    input.PaymentReceivedDate,
		"payment_confirmed_date":   input.PaymentConfirmedDate,
	}
	normalized := make(map[string]string, len(fields))
	for field, value := range fields {
		date, err := domain.ValidateOptionalDate(value)
		if err != nil {
			return domain.Shares{}, errors.Join(domain.ErrValidation, fmt.Errorf("invalid %s %q", strings.ReplaceAll(field, "_", " "), value))
		}
		normalized[field] = date
	}

	var updated domain.Shares
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		shares, err := repo.GetShares(ctx, id)
		if err != nil {
			return err
		}

		if input.Number != 0 && input.Number != shares.Number {
			packages, err := repo.ListSharesByMember(ctx, shares.MemberID)
			if err != nil {
				return err
			}
			others := make([]domain.Shares, 0, len(packages))
			for _, pkg := range packages {
				if pkg.ID != shares.ID {
					others = append(others, pkg)
				}
			}
			if err := domain.ValidateShareAcquisition(others, input.Number, s.config.MaxShares); err != nil {
				return err
			}
			shares.Number = input.Number
		}
		if normalized["date_of_acquisition"] != "" {
			shares.DateOfAcquisition = normalized["date_of_acquisition"]
		}
		if strings.TrimSpace(input.ReferenceCode) != "" {
			shares.ReferenceCode = strings.TrimSpace(input.ReferenceCode)
		}
		shares.SignatureReceived = input.SignatureReceived
		shares.SignatureReceivedDate = normalized["signature_received_date"]
		shares.SignatureConfirmed = input.SignatureConfirmed
		shares.SignatureConfirmedDate = normalized["signature_confirmed_date"]
		shares.PaymentReceived = input.PaymentReceived
		shares.PaymentReceivedDate = normalized["payment_received_date"]
		shares.PaymentConfirmed = input.PaymentConfirmed
		shares.PaymentConfirmedDate = normalized["payment_confirmed_date"]
		shares.AccountantComment = strings.TrimSpace(input.AccountantComment)

		updated, err = repo.UpdateShares(ctx, shares)
		return err
	})
	if err != nil {
		return domain.Shares{}, err
	}

	s.telemetry.Record("shares.updated", map[string]string{"shares_id": strconv.FormatInt(id, 10)})
	return updated, nil
}

// DeleteShares removes a package. A member keeps at least one package.
func (s *Service) DeleteShares(ctx context.Context, auth ports.AuthContext, id int64) error {
	if err := requireStaff(auth); err != nil {
		return err
	}
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		shares, err := repo.GetShares(ctx, id)
		if err != nil {
			return err
		}
		packages, err := repo.ListSharesByMember(ctx, shares.MemberID)
		if err != nil {
			return err
		}
		if len(packages) <= 1 {
			return errors.Join(domain.ErrValidation, errors.New("the last shares package of a member cannot be deleted"))
		}
		return repo.DeleteShares(ctx, id)
	})
	if err != nil {
		return err
	}

	s.telemetry.Record("shares.deleted", map[string]string{"shares_id": strconv.FormatInt(id, 10)})
	return nil
}

func (s *Service) ShareInformation(ctx context.Context, auth ports.AuthContext, memberID int64) (domain.ShareInformation, error) {
	packages, err := s.ListShares(ctx, auth, memberID)
	if err != nil {
		return domain.ShareInformation{}, err
	}
	total, value := domain.SharesTotal(packages, s.config.SharePrice)
	return domain.ShareInformation{
		MemberID:   memberID,
		Packages:   packages,
		TotalCount: total,
		TotalValue: value,
	}, nil
}
