package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCanAccept(t *testing.T) {
	ready := Member{EmailIsConfirmed: true, SignatureReceived: true, PaymentReceived: true, NumShares: 2}
	if err := CanAccept(ready); err != nil {
		t.Fatalf("expected applicant to be acceptable, got %v", err)
	}

	mutations := map[string]func(*Member){
		"already member":   func(m *Member) { m.MembershipAccepted = true },
		"unconfirmed":      func(m *Member) { m.EmailIsConfirmed = false },
		"no signature":     func(m *Member) { m.SignatureReceived = false },
		"no payment":       func(m *Member) { m.PaymentReceived = false },
		"no shares wanted": func(m *Member) { m.NumShares = 0 },
	}
	for name, mutate := range mutations {
		candidate := ready
		mutate(&candidate)
		if err := CanAccept(candidate); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestValidateMembershipLoss(t *testing.T) {
	member := Member{MembershipAccepted: true, MembershipDate: "2024-02-01"}

	date, err := ValidateMembershipLoss(member, "2025-12-31", LossTypeResignation)
	if err != nil || date != "2025-12-31" {
		t.Fatalf("expected valid loss, got %q %v", date, err)
	}
	if _, err := ValidateMembershipLoss(member, "2024-01-31", LossTypeResignation); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected loss before membership to fail, got %v", err)
	}
	if _, err := ValidateMembershipLoss(member, "2025-12-31", "moved"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected invalid loss type to fail, got %v", err)
	}
	if _, err := ValidateMembershipLoss(Member{}, "2025-12-31", LossTypeDeath); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected applicant loss to fail, got %v", err)
	}
}

func TestValidateShareAcquisition(t *testing.T) {
	existing := []Shares{{Number: 20}, {Number: 30}}
	if err := ValidateShareAcquisition(existing, 10, DefaultMaxShares); err != nil {
		t.Fatalf("expected acquisition up to the maximum to pass, got %v", err)
	}
	if err := ValidateShareAcquisition(existing, 11, DefaultMaxShares); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected acquisition above maximum to fail, got %v", err)
	}
	if err := ValidateShareAcquisition(nil, 0, DefaultMaxShares); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero quantity to fail, got %v", err)
	}

	count, value := SharesTotal(existing, DefaultSharePrice)
	if count != 50 || !value.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("unexpected totals %d %s", count, value)
	}
}
