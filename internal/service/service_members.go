package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/pagination"
	"memberdesk/backend/internal/ports"
)

// AcceptMember turns an applicant into a member: it assigns the next
// membership number and books the requested shares as the first package.
func (s *Service) AcceptMember(ctx context.Context, auth ports.AuthContext, id int64, membershipDate string) (domain.Member, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Member{}, err
	}
	date, err := dateOrToday(membershipDate, s.today(), "membership date")
	if err != nil {
		return domain.Member{}, err
	}

	var accepted domain.Member
	err = s.repo.InTx(ctx, func(repo ports.Repository) error {
		member, err := repo.GetMember(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CanAccept(member); err != nil {
			return err
		}
		if member.NumShares > s.config.MaxShares {
			return errors.Join(domain.ErrValidation, fmt.Errorf("a member may hold at most %d shares", s.config.MaxShares))
		}

		highest, err := repo.MaxMembershipNumber(ctx)
		if err != nil {
			return err
		}
		member.MembershipAccepted = true
		member.MembershipDate = date
		member.MembershipNumber = highest + 1

		accepted, err = repo.UpdateMember(ctx, member)
		if err != nil {
			return err
		}

		_, err = repo.CreateShares(ctx, domain.Shares{
			MemberID:               accepted.ID,
			Number:                 accepted.NumShares,
			DateOfAcquisition:      date,
			ReferenceCode:          accepted.EmailConfirmCode,
			SignatureReceived:      accepted.SignatureReceived,
			SignatureReceivedDate:  accepted.SignatureReceivedDate,
			SignatureConfirmed:     accepted.SignatureConfirmed,
			SignatureConfirmedDate: accepted.SignatureConfirmedDate,
			PaymentReceived:        accepted.PaymentReceived,
			PaymentReceivedDate:    accepted.PaymentReceivedDate,
			PaymentConfirmed:       accepted.PaymentConfirmed,
			PaymentConfirmedDate:   accepted.PaymentConfirmedDate,
		})
		return err
	})
	if err != nil {
		return domain.Member{}, err
	}

	s.telemetry.Record("member.accepted", map[string]string{
		"member_id":         strconv.FormatInt(accepted.ID, 10),
		"membership_number": strconv.FormatInt(accepted.MembershipNumber, 10),
	})
	return accepted, nil
}

func (s *Service) NextMembershipNumber(ctx context.Context, auth ports.AuthContext) (int64, error) {
	if err := requireStaff(auth); err != nil {
		return 0, err
	}
	highest, err := s.repo.MaxMembershipNumber(ctx)
	if err != nil {
		return 0, err
	}
	return highest + 1, nil
}

func (s *Service) ListMembers(ctx context.Context, auth ports.AuthContext, request pagination.PageRequest, search string) (pagination.Paged[domain.Member], error) {
	if err := requireStaff(auth); err != nil {
		return pagination.Paged[domain.Member]{}, err
	}
	accepted := true
	filter := domain.MemberFilter{Accepted: &accepted, Search: strings.TrimSpace(search)}
	return pagination.Fetch(request, func(options domain.ListOptions) ([]domain.Member, int, error) {
		return s.repo.ListMembers(ctx, filter, options)
	})
}

func (s *Service) GetMemberByNumber(ctx context.Context, auth ports.AuthContext, number int64) (domain.Member, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Member{}, err
	}
	if number < 1 {
		return domain.Member{}, errors.Join(domain.ErrValidation, fmt.Errorf("invalid membership number %d", number))
	}
	return s.repo.GetMemberByMembershipNumber(ctx, number)
}

type MembershipLossInput struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

func (s *Service) RecordMembershipLoss(ctx context.Context, auth ports.AuthContext, id int64, input MembershipLossInput) (domain.Member, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Member{}, err
	}

	var updated domain.Member
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		member, err := repo.GetMember(ctx, id)
		if err != nil {
			return err
		}
		date, err := domain.ValidateMembershipLoss(member, input.Date, input.Type)
		if err != nil {
			return err
		}
		member.MembershipLossDate = date
		member.MembershipLossType = strings.TrimSpace(input.Type)
		updated, err = repo.UpdateMember(ctx, member)
		return err
	})
	if err != nil {
		return domain.Member{}, err
	}

	s.telemetry.Record("member.lost", map[string]string{
		"member_id": strconv.FormatInt(id, 10),
		"type":      updated.MembershipLossType,
	})
	return updated, nil
}

// SendCertificate issues a fresh certificate token and mails the download
// link. Any earlier link stops working.
func (s *Service) SendCertificate(ctx context.Context, auth ports.AuthContext, id int64) (domain.Member, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Member{}, err
	}
	member, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return domain.Member{}, err
	}
	if !member.MembershipAccepted || member.MembershipLossDate != "" {
		return domain.Member{}, errors.Join(domain.ErrValidation, errors.New("certificates are only issued to current members"))
	}

	member.CertificateToken = newToken()
	member.CertificateTokenDate = s.now().UTC()
	updated, err := s.repo.UpdateMember(ctx, member)
	if err != nil {
		return domain.Member{}, err
	}

	validUntil := updated.CertificateTokenDate.Add(s.config.CertificateTTL).Format(domain.DateLayout)
	err = s.sendMail(ctx, "certificate", mailData{
		Member:     updated,
		Link:       s.link("/certificates/%d/%s", updated.ID, updated.CertificateToken),
		ValidUntil: validUntil,
	})
	if err != nil {
		return domain.Member{}, fmt.Errorf("send certificate: %w", err)
	}

	s.telemetry.Record("member.certificate_sent", map[string]string{"member_id": strconv.FormatInt(id, 10)})
	return updated, nil
}

// CertificatePDF renders the certificate for a valid, unexpired token.
func (s *Service) CertificatePDF(ctx context.Context, id int64, token string) ([]byte, error) {
	member, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.CertificateToken == "" || subtle.ConstantTimeCompare([]byte(member.CertificateToken), []byte(token)) != 1 {
		return nil, fmt.Errorf("certificate of member %d: %w", id, domain.ErrNotFound)
	}
	if s.now().After(member.CertificateTokenDate.Add(s.config.CertificateTTL)) {
		return nil, errors.Join(domain.ErrForbidden, errors.New("certificate link expired"))
	}

	packages, err := s.repo.ListSharesByMember(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renderCertificate(ctx, member, packages)
}
