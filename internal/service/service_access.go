package service

import (
	"errors"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

func requireAnyRole(auth ports.AuthContext, roles ...string) error {
	if len(roles) == 0 {
		return domain.ErrForbidden
	}
	for _, role := range roles {
		if auth.HasRole(role) {
			return nil
		}
	}
	return domain.ErrForbidden
}

// requireStaff admits accountants and admins.
func requireStaff(auth ports.AuthContext) error {
	return requireAnyRole(auth, domain.RoleAccountant, domain.RoleAdmin)
}

func requireAdmin(auth ports.AuthContext) error {
	return requireAnyRole(auth, domain.RoleAdmin)
}

func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}

func IsForbiddenError(err error) bool {
	return errors.Is(err, domain.ErrForbidden)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
