package pagination

import (
	"strconv"
	"strings"
)

// Validator normalizes a raw parameter value or rejects it.
type Validator interface {
	Validate(raw string) (string, bool)
}

type ValidatorFunc func(raw string) (string, bool)

func (f ValidatorFunc) Validate(raw string) (string, bool) {
	return f(raw)
}

func PositiveInt() Validator {
	return ValidatorFunc(func(raw string) (string, bool) {
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || value < 1 {
			return "", false
		}
		return strconv.Itoa(value), true
	})
}

func IntIn(allowed ...int) Validator {
	return ValidatorFunc(func(raw string) (string, bool) {
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return "", false
		}
		for _, candidate := range allowed {
			if candidate == value {
				return strconv.Itoa(value), true
			}
		}
		return "", false
	})
}

// OneOf matches case-insensitively and returns the canonical spelling.
func OneOf(allowed ...string) Validator {
	return ValidatorFunc(func(raw string) (string, bool) {
		trimmed := strings.TrimSpace(raw)
		for _, candidate := range allowed {
			if strings.EqualFold(candidate, trimmed) {
				return candidate, true
			}
		}
		return "", false
	})
}

func SortDirection() Validator {
	return OneOf(SortAscending, SortDescending)
}
