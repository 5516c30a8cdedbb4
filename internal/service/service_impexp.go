package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

type ImportResult struct {
	Imported int `json:"imported"`
	Members  int `json:"members"`
}

// ImportMembers validates every row before writing anything and inserts all
// rows in one transaction. Errors name the CSV line (the header is line 1).
func (s *Service) ImportMembers(ctx context.Context, auth ports.AuthContext, raw []byte) (ImportResult, error) {
	if err := requireStaff(auth); err != nil {
		return ImportResult{}, err
	}
	members, err := s.importer.DecodeMembers(ctx, raw)
	if err != nil {
		return ImportResult{}, err
	}
	if len(members) == 0 {
		return ImportResult{}, errors.Join(domain.ErrValidation, errors.New("no members to import"))
	}

	var errs []error
	numbers := map[int64]int{}
	for idx, member := range members {
		row := idx + 2
		if err := validateMemberData(member); err != nil {
			// Flattened so a single row's field map does not stand for the whole import.
			errs = append(errs, errors.Join(domain.ErrValidation, fmt.Errorf("row %d: %s", row, err)))
		}
		if member.MembershipAccepted {
			if member.MembershipNumber < 1 || member.MembershipDate == "" {
				errs = append(errs, errors.Join(domain.ErrValidation, fmt.Errorf("row %d: accepted members need a membership number and date", row)))
			}
			if member.NumShares < 1 || member.NumShares > s.config.MaxShares {
				errs = append(errs, errors.Join(domain.ErrValidation, fmt.Errorf("row %d: between 1 and %d shares", row, s.config.MaxShares)))
			}
		} else if member.MembershipNumber != 0 {
			errs = append(errs, errors.Join(domain.ErrValidation, fmt.Errorf("row %d: applicants cannot have a membership number", row)))
		}
		if member.MembershipNumber > 0 {
			if first, seen := numbers[member.MembershipNumber]; seen {
				errs = append(errs, errors.Join(domain.ErrValidation, fmt.Errorf("row %d: membership number %d already used in row %d", row, member.MembershipNumber, first)))
			}
			numbers[member.MembershipNumber] = row
		}
	}
	if len(errs) > 0 {
		return ImportResult{}, errors.Join(errs...)
	}

	result := ImportResult{}
	err = s.repo.InTx(ctx, func(repo ports.Repository) error {
		for idx, member := range members {
			member.Email = normalizeEmail(member.Email)
			member.EmailConfirmCode = s.newCode()
			created, err := repo.CreateMember(ctx, member)
			if err != nil {
				return fmt.Errorf("row %d: %w", idx+2, err)
			}
			result.Imported++
			if !created.MembershipAccepted {
				continue
			}
			result.Members++
			_, err = repo.CreateShares(ctx, domain.Shares{
				MemberID:          created.ID,
				Number:            created.NumShares,
				DateOfAcquisition: created.MembershipDate,
				ReferenceCode:     created.EmailConfirmCode,
				SignatureReceived: created.SignatureReceived,
				PaymentReceived:   created.PaymentReceived,
			})
			if err != nil {
				return fmt.Errorf("row %d: %w", idx+2, err)
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.telemetry.Record("members.imported", map[string]string{
		"imported": strconv.Itoa(result.Imported),
		"members":  strconv.Itoa(result.Members),
	})
	return result, nil
}

func (s *Service) ExportMembers(ctx context.Context, auth ports.AuthContext, acceptedOnly bool) ([]byte, error) {
	if err := requireStaff(auth); err != nil {
		return nil, err
	}
	filter := domain.MemberFilter{}
	if acceptedOnly {
		accepted := true
		filter.Accepted = &accepted
	}
	members, err := s.repo.ListAllMembers(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.importer.EncodeMembers(ctx, members)
}
