package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

// Authenticate checks a staff login. Unknown logins and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, login, password string) (ports.AuthContext, error) {
	staff, err := s.repo.GetStaffByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, domain.ErrNotFound) {
		return ports.AuthContext{}, errors.Join(domain.ErrForbidden, errors.New("invalid login or password"))
	}
	if err != nil {
		return ports.AuthContext{}, err
	}
	if err := s.passwords.Verify(staff.PasswordHash, password); err != nil {
		s.logger.Info("staff login rejected", zap.String("login", staff.Login))
		return ports.AuthContext{}, errors.Join(domain.ErrForbidden, errors.New("invalid login or password"))
	}

	s.telemetry.Record("staff.login", map[string]string{"login": staff.Login})
	return ports.AuthContext{UserID: staff.Login, Roles: append([]string(nil), staff.Groups...)}, nil
}

func (s *Service) ListStaff(ctx context.Context, auth ports.AuthContext) ([]domain.Staff, error) {
	if err := requireAdmin(auth); err != nil {
		return nil, err
	}
	return s.repo.ListStaff(ctx)
}

func (s *Service) GetStaff(ctx context.Context, auth ports.AuthContext, id int64) (domain.Staff, error) {
	if err := requireAdmin(auth); err != nil {
		return domain.Staff{}, err
	}
	return s.repo.GetStaff(ctx, id)
}

func validateStaff(staff domain.Staff) error {
	if domain.ValidateName(staff.Login) != nil || strings.ContainsAny(staff.Login, " \t/") {
		return errors.Join(domain.ErrValidation, fmt.Errorf("invalid login %q", staff.Login))
	}
	if staff.Email != "" && domain.ValidateEmail(staff.Email) != nil {
		return errors.Join(domain.ErrValidation, fmt.Errorf("invalid email address %q", staff.Email))
	}
	if len(staff.Groups) == 0 {
		return errors.Join(domain.ErrValidation, errors.New("at least one group is required"))
	}
	for _, group := range staff.Groups {
		if domain.ValidateGroup(group) != nil {
			return errors.Join(domain.ErrValidation, fmt.Errorf("unknown group %q", group))
		}
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return "", errors.Join(domain.ErrValidation, err)
	}
	return hash, nil
}

func (s *Service) CreateStaff(ctx context.Context, auth ports.AuthContext, input domain.Staff) (domain.Staff, error) {
	if err := requireAdmin(auth); err != nil {
		return domain.Staff{}, err
	}
	return s.createStaff(ctx, input)
}

// SeedStaff creates a staff account without an acting admin. It is used to
// bootstrap the first accounts from the command line.
func (s *Service) SeedStaff(ctx context.Context, input domain.Staff) (domain.Staff, error) {
	return s.createStaff(ctx, input)
}

func (s *Service) createStaff(ctx context.Context, input domain.Staff) (domain.Staff, error) {
	staff := domain.Staff{
		Login:  strings.TrimSpace(input.Login),
		Email:  strings.TrimSpace(input.Email),
		Groups: input.Groups,
	}
	if err := validateStaff(staff); err != nil {
		return domain.Staff{}, err
	}
	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return domain.Staff{}, err
	}
	staff.PasswordHash = hash
	staff.LastPasswordChange = s.now().UTC()

	created, err := s.repo.CreateStaff(ctx, staff)
	if err != nil {
		return domain.Staff{}, err
	}
	s.telemetry.Record("staff.created", map[string]string{"staff_id": strconv.FormatInt(created.ID, 10)})
	return created, nil
}

// UpdateStaff changes email and groups; the password only when one is given.
func (s *Service) UpdateStaff(ctx context.Context, auth ports.AuthContext, id int64, input domain.Staff) (domain.Staff, error) {
	if err := requireAdmin(auth); err != nil {
		return domain.Staff{}, err
	}

	var updated domain.Staff
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		staff, err := repo.GetStaff(ctx, id)
		if err != nil {
			return err
		}
		staff.Email = strings.TrimSpace(input.Email)
		if input.Groups != nil {
			staff.Groups = input.Groups
		}
		if staff.Login == auth.UserID && !staff.InGroup(domain.RoleAdmin) {
			return errors.Join(domain.ErrValidation, errors.New("admins cannot revoke their own admin group"))
		}
		if err := validateStaff(staff); err != nil {
			return err
		}
		if input.Password != "" {
			hash, err := s.hashPassword(input.Password)
			if err != nil {
				return err
			}
			staff.PasswordHash = hash
			staff.LastPasswordChange = s.now().UTC()
		}
		updated, err = repo.UpdateStaff(ctx, staff)
		return err
	})
	if err != nil {
		return domain.Staff{}, err
	}

	s.telemetry.Record("staff.updated", map[string]string{"staff_id": strconv.FormatInt(id, 10)})
	return updated, nil
}

func (s *Service) DeleteStaff(ctx context.Context, auth ports.AuthContext, id int64) error {
	if err := requireAdmin(auth); err != nil {
		return err
	}
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		staff, err := repo.GetStaff(ctx, id)
		if err != nil {
			return err
		}
		if staff.Login == auth.UserID {
			return errors.Join(domain.ErrValidation, errors.New("staff cannot delete their own account"))
		}
		return repo.DeleteStaff(ctx, id)
	})
	if err != nil {
		return err
	}

	s.telemetry.Record("staff.deleted", map[string]string{"staff_id": strconv.FormatInt(id, 10)})
	return nil
}
