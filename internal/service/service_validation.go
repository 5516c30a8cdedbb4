package service

import (
	"errors"
	"fmt"
	"strings"

	"memberdesk/backend/internal/domain"
)

// validateMemberData checks the fields staff may edit on a member record.
// Unlike the join form it does not enforce age or share limits, which only
// apply at submission.
func validateMemberData(member domain.Member) error {
	errs := domain.FieldErrors{}
	if domain.ValidateName(member.Firstname) != nil {
		errs["firstname"] = "required"
	}
	if domain.ValidateName(member.Lastname) != nil {
		errs["lastname"] = "required"
	}
	if domain.ValidateEmail(member.Email) != nil {
		errs["email"] = "invalid email address"
	}
	if member.Country != "" && !domain.ValidCountryCode(member.Country) {
		errs["country"] = "expected a two letter country code"
	}
	if member.Locale != "" && member.Locale != domain.LocaleGerman && member.Locale != domain.LocaleEnglish {
		errs["locale"] = "unsupported language"
	}
	if domain.ValidateMembershipType(member.MembershipType) != nil {
		errs["membership_type"] = "expected normal or investing"
	}
	if member.IsLegalEntity && (domain.ValidateName(member.CourtOfLaw) != nil || domain.ValidateName(member.RegistrationNumber) != nil) {
		errs["registration_number"] = "court of law and registration number are required for legal entities"
	}
	if member.NumShares < 0 {
		errs["num_shares"] = "must not be negative"
	}
	dates := map[string]string{
		"date_of_birth":            member.DateOfBirth,
		"signature_received_date":  member.SignatureReceivedDate,
		"signature_confirmed_date": member.SignatureConfirmedDate,
		"payment_received_date":    member.PaymentReceivedDate,
		"payment_confirmed_date":   member.PaymentConfirmedDate,
	}
	for field, value := range dates {
		if _, err := domain.ValidateOptionalDate(value); err != nil {
			errs[field] = "expected YYYY-MM-DD"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// dateOrToday normalizes value, defaulting to today when it is empty.
func dateOrToday(value, today, field string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return today, nil
	}
	normalized, err := domain.ValidateDate(value)
	if err != nil {
		return "", errors.Join(domain.ErrValidation, fmt.Errorf("invalid %s %q", field, value))
	}
	return normalized, nil
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
