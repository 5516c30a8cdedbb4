package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/pagination"
	"memberdesk/backend/internal/ports"
)

func (s *Service) applicationRules() domain.ApplicationRules {
	return domain.ApplicationRules{MaxShares: s.config.MaxShares, MinimumAge: s.config.MinimumAge}
}

// SubmitApplication stores a new applicant and mails the confirmation link.
// The application is kept even when the mail cannot be delivered.
func (s *Service) SubmitApplication(ctx context.Context, form domain.ApplicationForm) (domain.Member, error) {
	if err := form.Validate(s.applicationRules(), s.now()); err != nil {
		return domain.Member{}, err
	}

	member := form.Member()
	member.Email = normalizeEmail(member.Email)
	member.EmailConfirmCode = s.newCode()
	member.DateOfSubmission = s.now().UTC()

	created, err := s.repo.CreateMember(ctx, member)
	if err != nil {
		return domain.Member{}, err
	}

	link := s.link("/verify/%s/%s", created.Email, created.EmailConfirmCode)
	if err := s.sendMail(ctx, "application_confirm", mailData{Member: created, Link: link}); err != nil {
		s.logger.Warn("application confirmation mail failed", zap.Int64("member_id", created.ID), zap.Error(err))
	}
	s.notifyStaff(ctx, "application_notice", mailData{Member: created, Link: s.link("/api/applications/%d", created.ID)})

	s.telemetry.Record("application.submitted", map[string]string{"member_id": strconv.FormatInt(created.ID, 10)})
	return created, nil
}

// ConfirmEmail marks the applicant's address as confirmed. The code is only
// accepted together with the address it was sent to.
func (s *Service) ConfirmEmail(ctx context.Context, email, code string) (domain.Member, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Member{}, fmt.Errorf("application: %w", domain.ErrNotFound)
	}
	member, err := s.repo.GetMemberByConfirmCode(ctx, code)
	if err != nil {
		return domain.Member{}, err
	}
	if normalizeEmail(member.Email) != normalizeEmail(email) {
		return domain.Member{}, fmt.Errorf("application %s: %w", code, domain.ErrNotFound)
	}
	if member.EmailIsConfirmed {
		return member, nil
	}

	member.EmailIsConfirmed = true
	updated, err := s.repo.UpdateMember(ctx, member)
	if err != nil {
		return domain.Member{}, err
	}
	s.telemetry.Record("application.email_confirmed", map[string]string{"member_id": strconv.FormatInt(updated.ID, 10)})
	return updated, nil
}

// ApplicationPDF renders the pre-filled declaration of membership for an
// applicant who confirmed the email address.
func (s *Service) ApplicationPDF(ctx context.Context, code string) ([]byte, error) {
	member, err := s.repo.GetMemberByConfirmCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if !member.EmailIsConfirmed {
		return nil, errors.Join(domain.ErrForbidden, errors.New("email address not confirmed"))
	}
	return s.renderApplicationForm(ctx, member)
}

func (s *Service) ListApplications(ctx context.Context, auth ports.AuthContext, request pagination.PageRequest, search string) (pagination.Paged[domain.Member], error) {
	if err := requireStaff(auth); err != nil {
		return pagination.Paged[domain.Member]{}, err
	}
	accepted := false
	filter := domain.MemberFilter{Accepted: &accepted, Search: strings.TrimSpace(search)}
	return pagination.Fetch(request, func(options domain.ListOptions) ([]domain.Member, int, error) {
		return s.repo.ListMembers(ctx, filter, options)
	})
}

func (s *Service) GetMember(ctx context.Context, auth ports.AuthContext, id int64) (domain.Member, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Member{}, err
	}
	return s.repo.GetMember(ctx, id)
}

// UpdateMember replaces the editable data of an applicant or member. The
// membership state is changed through the dedicated operations only.
func (s *Service) UpdateMember(ctx context.Context, auth ports.AuthContext, id int64, input domain.Member) (domain.Member, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Member{}, err
	}

	var updated domain.Member
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		member, err := repo.GetMember(ctx, id)
		if err != nil {
			return err
		}

		member.Firstname = strings.TrimSpace(input.Firstname)
		member.Lastname = strings.TrimSpace(input.Lastname)
		member.Email = normalizeEmail(input.Email)
		member.Address1 = strings.TrimSpace(input.Address1)
		member.Address2 = strings.TrimSpace(input.Address2)
		member.Postcode = strings.TrimSpace(input.Postcode)
		member.City = strings.TrimSpace(input.City)
		member.Country = strings.ToUpper(strings.TrimSpace(input.Country))
		member.Locale = strings.TrimSpace(input.Locale)
		member.DateOfBirth = strings.TrimSpace(input.DateOfBirth)
		member.MembershipType = input.MembershipType
		member.IsLegalEntity = input.IsLegalEntity
		member.CourtOfLaw = strings.TrimSpace(input.CourtOfLaw)
		member.RegistrationNumber = strings.TrimSpace(input.RegistrationNumber)
		member.AccountantComment = strings.TrimSpace(input.AccountantComment)
		if !member.MembershipAccepted {
			member.NumShares = input.NumShares
			if member.NumShares < 1 || member.NumShares > s.config.MaxShares {
				return errors.Join(domain.ErrValidation, fmt.Errorf("between 1 and %d shares", s.config.MaxShares))
			}
		}
		if err := validateMemberData(member); err != nil {
			return err
		}

		updated, err = repo.UpdateMember(ctx, member)
		return err
	})
	if err != nil {
		return domain.Member{}, err
	}

	s.telemetry.Record("member.updated", map[string]string{"member_id": strconv.FormatInt(updated.ID, 10)})
	return updated, nil
}

func (s *Service) DeleteApplication(ctx context.Context, auth ports.AuthContext, id int64) error {
	if err := requireStaff(auth); err != nil {
		return err
	}
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		member, err := repo.GetMember(ctx, id)
		if err != nil {
			return err
		}
		if member.MembershipAccepted {
			return errors.Join(domain.ErrValidation, errors.New("accepted members cannot be deleted"))
		}
		return repo.DeleteMember(ctx, id)
	})
	if err != nil {
		return err
	}

	s.telemetry.Record("application.deleted", map[string]string{"member_id": strconv.FormatInt(id, 10)})
	return nil
}

// ReceptionInput records whether a document or payment arrived. Date
// defaults to today when Received is set.
type ReceptionInput struct {
	Received bool   `json:"received"`
	Date     string `json:"date"`
}

func (s *Service) SetSignatureReceived(ctx context.Context, auth ports.AuthContext, id int64, input ReceptionInput) (domain.Member, error) {
	return s.updateReception(ctx, auth, id, "signature", input, func(member *domain.Member, received bool, date string) {
		member.SignatureReceived = received
		member.SignatureReceivedDate = date
	})
}

func (s *Service) SetPaymentReceived(ctx context.Context, auth ports.AuthContext, id int64, input ReceptionInput) (domain.Member, error) {
	return s.updateReception(ctx, auth, id, "payment", input, func(member *domain.Member, received bool, date string) {
		member.PaymentReceived = received
		member.PaymentReceivedDate = date
	})
}

func (s *Service) updateReception(ctx context.Context, auth ports.AuthContext, id int64, kind string, input ReceptionInput, apply func(*domain.Member, bool, string)) (domain.Member, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Member{}, err
	}
	date := ""
	if input.Received {
		normalized, err := dateOrToday(input.Date, s.today(), kind+" date")
		if err != nil {
			return domain.Member{}, err
		}
		date = normalized
	}

	var updated domain.Member
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		member, err := repo.GetMember(ctx, id)
		if err != nil {
			return err
		}
		if member.MembershipAccepted {
			return errors.Join(domain.ErrValidation, fmt.Errorf("%s of accepted members cannot be changed", kind))
		}
		apply(&member, input.Received, date)
		updated, err = repo.UpdateMember(ctx, member)
		return err
	})
	if err != nil {
		return domain.Member{}, err
	}

	s.telemetry.Record("application."+kind+"_received", map[string]string{
		"member_id": strconv.FormatInt(id, 10),
		"received":  strconv.FormatBool(input.Received),
	})
	return updated, nil
}

// SendSignatureConfirmation tells the applicant that the signed form arrived.
func (s *Service) SendSignatureConfirmation(ctx context.Context, auth ports.AuthContext, id int64) (domain.Member, error) {
	return s.sendReceptionConfirmation(ctx, auth, id, "signature_confirmation",
		func(member domain.Member) bool { return member.SignatureReceived },
		func(member *domain.Member, date string) {
			member.SignatureConfirmed = true
			member.SignatureConfirmedDate = date
		})
}

// SendPaymentConfirmation tells the applicant that the payment arrived.
func (s *Service) SendPaymentConfirmation(ctx context.Context, auth ports.AuthContext, id int64) (domain.Member, error) {
	return s.sendReceptionConfirmation(ctx, auth, id, "payment_confirmation",
		func(member domain.Member) bool { return member.PaymentReceived },
		func(member *domain.Member, date string) {
			member.PaymentConfirmed = true
			member.PaymentConfirmedDate = date
		})
}

func (s *Service) sendReceptionConfirmation(ctx context.Context, auth ports.AuthContext, id int64, mail string, received func(domain.Member) bool, confirm func(*domain.Member, string)) (domain.Member, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Member{}, err
	}
	member, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return domain.Member{}, err
	}
	if !received(member) {
		return domain.Member{}, errors.Join(domain.ErrValidation, fmt.Errorf("nothing received to confirm for member %d", id))
	}

	if err := s.sendMail(ctx, mail, mailData{Member: member}); err != nil {
		return domain.Member{}, fmt.Errorf("send %s: %w", mail, err)
	}

	confirm(&member, s.today())
	updated, err := s.repo.UpdateMember(ctx, member)
	if err != nil {
		return domain.Member{}, err
	}
	s.telemetry.Record("application."+mail+"_sent", map[string]string{"member_id": strconv.FormatInt(id, 10)})
	return updated, nil
}
