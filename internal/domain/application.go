package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DefaultMaxShares  = 60
	DefaultMinimumAge = 18
)

// FieldErrors maps form field names to a human readable problem.
// It unwraps to ErrValidation so callers can treat it like any other
// validation failure.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	if len(f) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, f[field]))
	}
	return strings.Join(parts, "; ")
}

func (f FieldErrors) Unwrap() error {
	return ErrValidation
}

func (f FieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

// ApplicationForm is what an applicant submits through the join form.
type ApplicationForm struct {
	Firstname            string `json:"firstname"`
	Lastname             string `json:"lastname"`
	Email                string `json:"email"`
	Address1             string `json:"address1"`
	Address2             string `json:"address2"`
	Postcode             string `json:"postcode"`
	City                 string `json:"city"`
	Country              string `json:"country"`
	Locale               string `json:"locale"`
	DateOfBirth          string `json:"date_of_birth"`
	MembershipType       string `json:"membership_type"`
	IsLegalEntity        bool   `json:"is_legal_entity"`
	CourtOfLaw           string `json:"court_of_law"`
	RegistrationNumber   string `json:"registration_number"`
	NumShares            int    `json:"num_shares"`
	AcceptStatute        bool   `json:"accept_statute"`
	AcceptDataProtection bool   `json:"accept_data_protection"`
}

type ApplicationRules struct {
	MaxShares  int
	MinimumAge int
}

func DefaultApplicationRules() ApplicationRules {
	return ApplicationRules{MaxShares: DefaultMaxShares, MinimumAge: DefaultMinimumAge}
}

// Validate checks the form against rules as of today and returns nil or a
// non-empty FieldErrors.
func (f ApplicationForm) Validate(rules ApplicationRules, today time.Time) error {
	errs := FieldErrors{}

	required := map[string]string{
		"firstname": f.Firstname,
		"lastname":  f.Lastname,
		"address1":  f.Address1,
		"postcode":  f.Postcode,
		"city":      f.City,
	}
	for field, value := range required {
		if ValidateName(value) != nil {
			errs.add(field, "required")
		}
	}

	if ValidateEmail(f.Email) != nil {
		errs.add("email", "invalid email address")
	}
	if !ValidCountryCode(f.Country) {
		errs.add("country", "expected a two letter country code")
	}
	if _, ok := MatchLocale(f.Locale); !ok {
		errs.add("locale", "unsupported language")
	}
	if ValidateMembershipType(f.MembershipType) != nil {
		errs.add("membership_type", "expected normal or investing")
	}

	if f.IsLegalEntity {
		if ValidateName(f.CourtOfLaw) != nil {
			errs.add("court_of_law", "required for legal entities")
		}
		if ValidateName(f.RegistrationNumber) != nil {
			errs.add("registration_number", "required for legal entities")
		}
	}

	birth, err := ValidateDate(f.DateOfBirth)
	switch {
	case err != nil:
		errs.add("date_of_birth", "expected YYYY-MM-DD")
	case !f.IsLegalEntity && ageOn(birth, today) < rules.MinimumAge:
		errs.add("date_of_birth", fmt.Sprintf("applicants must be at least %d years old", rules.MinimumAge))
	}

	if f.NumShares < 1 || f.NumShares > rules.MaxShares {
		errs.add("num_shares", fmt.Sprintf("between 1 and %d shares", rules.MaxShares))
	}
	if !f.AcceptStatute {
		errs.add("accept_statute", "the statute must be accepted")
	}
	if !f.AcceptDataProtection {
		errs.add("accept_data_protection", "the data protection terms must be accepted")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Member converts a validated form into a new applicant record.
func (f ApplicationForm) Member() Member {
	locale, _ := MatchLocale(f.Locale)
	dateOfBirth, _ := ValidateDate(f.DateOfBirth)
	return Member{
		Firstname:          strings.TrimSpace(f.Firstname),
		Lastname:           strings.TrimSpace(f.Lastname),
		Email:              strings.TrimSpace(f.Email),
		Address1:           strings.TrimSpace(f.Address1),
		Address2:           strings.TrimSpace(f.Address2),
		Postcode:           strings.TrimSpace(f.Postcode),
		City:               strings.TrimSpace(f.City),
		Country:            strings.ToUpper(strings.TrimSpace(f.Country)),
		Locale:             locale,
		DateOfBirth:        dateOfBirth,
		MembershipType:     f.MembershipType,
		IsLegalEntity:      f.IsLegalEntity,
		CourtOfLaw:         strings.TrimSpace(f.CourtOfLaw),
		RegistrationNumber: strings.TrimSpace(f.RegistrationNumber),
		NumShares:          f.NumShares,
	}
}

func ValidCountryCode(value string) bool {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) != 2 {
		return false
	}
	for _, r := range strings.ToUpper(trimmed) {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func ageOn(birthDate string, today time.Time) int {
	birth, err := time.Parse(DateLayout, birthDate)
	if err != nil {
		return 0
	}
	years := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		years--
	}
	return years
}
