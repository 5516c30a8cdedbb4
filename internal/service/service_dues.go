package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/pagination"
	"memberdesk/backend/internal/ports"
)

// InvoiceDelivery reports an issued invoice and whether it reached the
// member. Invoices stay valid when delivery fails.
type InvoiceDelivery struct {
	Invoice   domain.DuesInvoice `json:"invoice"`
	Delivered bool               `json:"delivered"`
	Error     string             `json:"error,omitempty"`
}

type DuesAccount struct {
	Dues     domain.MemberDues    `json:"dues"`
	Invoices []domain.DuesInvoice `json:"invoices"`
}

type ReductionResult struct {
	Dues        domain.MemberDues   `json:"dues"`
	Cancelled   *domain.DuesInvoice `json:"cancelled,omitempty"`
	Reversal    *domain.DuesInvoice `json:"reversal,omitempty"`
	Replacement *domain.DuesInvoice `json:"replacement,omitempty"`
	Delivered   bool                `json:"delivered"`
	Error       string              `json:"error,omitempty"`
}

type PaymentInput struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

func formatAmount(locale string, amount decimal.Decimal) string {
	formatted := amount.StringFixed(2)
	if locale == domain.LocaleGerman {
		formatted = strings.Replace(formatted, ".", ",", 1)
	}
	return formatted
}

func (s *Service) InvoiceDues(ctx context.Context, auth ports.AuthContext, year int, memberID int64) (InvoiceDelivery, error) {
	if err := requireStaff(auth); err != nil {
		return InvoiceDelivery{}, err
	}
	if err := domain.ValidateDuesYear(year); err != nil {
		return InvoiceDelivery{}, err
	}

	member, invoice, err := s.issueInvoice(ctx, year, memberID)
	if err != nil {
		return InvoiceDelivery{}, err
	}
	return s.deliverInvoice(ctx, member, invoice), nil
}

// InvoiceDuesBatch invoices up to count members who have not been invoiced
// for year yet, in membership number order. Numbers are assigned one after
// the other; rendering and mailing run concurrently.
func (s *Service) InvoiceDuesBatch(ctx context.Context, auth ports.AuthContext, year, count int) ([]InvoiceDelivery, error) {
	if err := requireStaff(auth); err != nil {
		return nil, err
	}
	if err := domain.ValidateDuesYear(year); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, errors.Join(domain.ErrValidation, errors.New("count must be positive"))
	}

	type issued struct {
		member  domain.Member
		invoice domain.DuesInvoice
	}
	var (
		batch    []issued
		issueErr error
	)
	// Skipped members stay candidates, so the next fetch is widened by their
	// number until count invoices are issued or no new candidate shows up.
	skipped := make(map[int64]struct{})
	for len(batch) < count && issueErr == nil {
		candidates, err := s.repo.ListDuesCandidates(ctx, year, count-len(batch)+len(skipped))
		if err != nil {
			issueErr = err
			break
		}
		fresh := 0
		for _, candidate := range candidates {
			if len(batch) == count {
				break
			}
			if _, seen := skipped[candidate.ID]; seen {
				continue
			}
			fresh++
			member, invoice, err := s.issueInvoice(ctx, year, candidate.ID)
			if errors.Is(err, domain.ErrValidation) {
				s.logger.Info("member skipped in dues batch", zap.Int64("member_id", candidate.ID), zap.Error(err))
				skipped[candidate.ID] = struct{}{}
				continue
			}
			if err != nil {
				issueErr = err
				break
			}
			batch = append(batch, issued{member: member, invoice: invoice})
		}
		if fresh == 0 {
			break
		}
	}

	results := make([]InvoiceDelivery, len(batch))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.Concurrency)
	for idx, item := range batch {
		idx, item := idx, item
		group.Go(func() error {
			results[idx] = s.deliverInvoice(groupCtx, item.member, item.invoice)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return results, err
	}

	s.telemetry.Record("dues.batch_invoiced", map[string]string{
		"year":  strconv.Itoa(year),
		"count": strconv.Itoa(len(results)),
	})
	return results, issueErr
}

func (s *Service) issueInvoice(ctx context.Context, year int, memberID int64) (domain.Member, domain.DuesInvoice, error) {
	var (
		member  domain.Member
		invoice domain.DuesInvoice
	)
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		var err error
		member, err = repo.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		startCode, amount, err := s.schedule.Calculate(member, year)
		if err != nil {
			return err
		}
		dues, err := s.duesAccount(ctx, repo, member.ID, year)
		if err != nil {
			return err
		}
		dues.StartCode = startCode
		dues.Amount = amount

		highest, err := repo.MaxDuesInvoiceNo(ctx, year)
		if err != nil {
			return err
		}
		issued, updatedDues, err := domain.IssueInvoice(dues, member, highest+1, s.today(), s.config.InvoicePrefix)
		if err != nil {
			return err
		}
		issued.Token = newToken()

		invoice, err = repo.CreateDuesInvoice(ctx, issued)
		if err != nil {
			return err
		}
		_, err = repo.SaveMemberDues(ctx, updatedDues)
		return err
	})
	if err != nil {
		return domain.Member{}, domain.DuesInvoice{}, err
	}

	s.telemetry.Record("dues.invoiced", map[string]string{
		"member_id":  strconv.FormatInt(member.ID, 10),
		"year":       strconv.Itoa(year),
		"invoice_no": strconv.Itoa(invoice.InvoiceNo),
	})
	return member, invoice, nil
}

// duesAccount loads the account of member for year or starts an empty one.
func (s *Service) duesAccount(ctx context.Context, repo ports.Repository, memberID int64, year int) (domain.MemberDues, error) {
	dues, err := repo.GetMemberDues(ctx, memberID, year)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.MemberDues{MemberID: memberID, Year: year}, nil
	}
	return dues, err
}

func (s *Service) deliverInvoice(ctx context.Context, member domain.Member, invoice domain.DuesInvoice) InvoiceDelivery {
	result := InvoiceDelivery{Invoice: invoice}
	attachment, err := s.renderInvoice(ctx, member, invoice)
	if err == nil {
		err = s.sendMail(ctx, "dues_invoice", mailData{
			Member:  member,
			Invoice: invoice,
			Amount:  formatAmount(memberLocale(member), invoice.InvoiceAmount),
			Link:    s.invoiceLink(invoice),
		}, attachment)
	}
	if err != nil {
		s.logger.Warn("dues invoice delivery failed",
			zap.String("invoice", invoice.InvoiceNoString),
			zap.Int64("member_id", member.ID),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}
	result.Delivered = true
	return result
}

func (s *Service) invoiceLink(invoice domain.DuesInvoice) string {
	return s.link("/dues/%d/invoices/%d/%s", invoice.Year, invoice.InvoiceNo, invoice.Token)
}

// ReduceDues lowers the dues of a member for year to amount; zero exempts the
// member. Invoiced dues are corrected through a reversal invoice and, for a
// non-zero amount, a replacement invoice, both mailed to the member.
func (s *Service) ReduceDues(ctx context.Context, auth ports.AuthContext, year int, memberID int64, amount decimal.Decimal) (ReductionResult, error) {
	if err := requireStaff(auth); err != nil {
		return ReductionResult{}, err
	}
	if err := domain.ValidateDuesYear(year); err != nil {
		return ReductionResult{}, err
	}

	var (
		member    domain.Member
		reduction domain.Reduction
	)
	err := s.repo.InTx(ctx, func(repo ports.Repository) error {
		var err error
		member, err = repo.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		dues, err := s.duesAccount(ctx, repo, member.ID, year)
		if err != nil {
			return err
		}
		if dues.StartCode == "" {
			startCode, full, err := s.schedule.Calculate(member, year)
			if err != nil {
				return err
			}
			dues.StartCode = startCode
			dues.Amount = full
		}

		invoices, err := repo.ListDuesInvoicesByMember(ctx, member.ID, year)
		if err != nil {
			return err
		}
		highest, err := repo.MaxDuesInvoiceNo(ctx, year)
		if err != nil {
			return err
		}
		reduction, err = domain.Reduce(domain.ReductionInput{
			Dues:          dues,
			Current:       domain.CurrentInvoice(invoices),
			Amount:        amount,
			Date:          s.today(),
			NextInvoiceNo: highest + 1,
			Prefix:        s.config.InvoicePrefix,
		})
		if err != nil {
			return err
		}

		if reduction.Cancelled != nil {
			if _, err := repo.UpdateDuesInvoice(ctx, *reduction.Cancelled); err != nil {
				return err
			}
		}
		for _, invoice := range []*domain.DuesInvoice{reduction.Reversal, reduction.Replacement} {
			if invoice == nil {
				continue
			}
			invoice.Token = newToken()
			created, err := repo.CreateDuesInvoice(ctx, *invoice)
			if err != nil {
				return err
			}
			*invoice = created
		}
		_, err = repo.SaveMemberDues(ctx, reduction.Dues)
		return err
	})
	if err != nil {
		return ReductionResult{}, err
	}

	result := ReductionResult{
		Dues:        reduction.Dues,
		Cancelled:   reduction.Cancelled,
		Reversal:    reduction.Reversal,
		Replacement: reduction.Replacement,
	}
	s.telemetry.Record("dues.reduced", map[string]string{
		"member_id": strconv.FormatInt(memberID, 10),
		"year":      strconv.Itoa(year),
		"amount":    reduction.Dues.AmountReduced.StringFixed(2),
	})

	if reduction.Reversal != nil {
		if err := s.deliverReduction(ctx, member, result); err != nil {
			s.logger.Warn("dues reduction delivery failed", zap.Int64("member_id", memberID), zap.Error(err))
			result.Error = err.Error()
		} else {
			result.Delivered = true
		}
	}
	return result, nil
}

func (s *Service) deliverReduction(ctx context.Context, member domain.Member, result ReductionResult) error {
	latest := *result.Reversal
	var attachments []ports.Attachment
	for _, invoice := range []*domain.DuesInvoice{result.Reversal, result.Replacement} {
		if invoice == nil {
			continue
		}
		attachment, err := s.renderInvoice(ctx, member, *invoice)
		if err != nil {
			return err
		}
		attachments = append(attachments, attachment)
		latest = *invoice
	}
	return s.sendMail(ctx, "dues_reduction", mailData{
		Member:   member,
		Invoice:  latest,
		Amount:   formatAmount(memberLocale(member), result.Dues.AmountReduced),
		Exempted: result.Replacement == nil,
		Link:     s.invoiceLink(latest),
	}, attachments...)
}

// RecordDuesPayment books a payment against an existing dues account.
func (s *Service) RecordDuesPayment(ctx context.Context, auth ports.AuthContext, year int, memberID int64, input PaymentInput) (domain.MemberDues, error) {
	if err := requireStaff(auth); err != nil {
		return domain.MemberDues{}, err
	}
	date, err := dateOrToday(input.Date, s.today(), "payment date")
	if err != nil {
		return domain.MemberDues{}, err
	}

	var saved domain.MemberDues
	err = s.repo.InTx(ctx, func(repo ports.Repository) error {
		dues, err := repo.GetMemberDues(ctx, memberID, year)
		if errors.Is(err, domain.ErrNotFound) {
			return errors.Join(domain.ErrValidation, fmt.Errorf("member %d has no dues for %d", memberID, year))
		}
		if err != nil {
			return err
		}
		paid, err := domain.ApplyPayment(dues, input.Amount, date)
		if err != nil {
			return err
		}
		saved, err = repo.SaveMemberDues(ctx, paid)
		return err
	})
	if err != nil {
		return domain.MemberDues{}, err
	}

	s.telemetry.Record("dues.paid", map[string]string{
		"member_id": strconv.FormatInt(memberID, 10),
		"year":      strconv.Itoa(year),
		"amount":    input.Amount.StringFixed(2),
	})
	return saved, nil
}

func (s *Service) GetMemberDues(ctx context.Context, auth ports.AuthContext, memberID int64, year int) (DuesAccount, error) {
	if err := requireStaff(auth); err != nil {
		return DuesAccount{}, err
	}
	dues, err := s.repo.GetMemberDues(ctx, memberID, year)
	if err != nil {
		return DuesAccount{}, err
	}
	invoices, err := s.repo.ListDuesInvoicesByMember(ctx, memberID, year)
	if err != nil {
		return DuesAccount{}, err
	}
	return DuesAccount{Dues: dues, Invoices: invoices}, nil
}

func (s *Service) ListDuesInvoices(ctx context.Context, auth ports.AuthContext, year int, request pagination.PageRequest) (pagination.Paged[domain.DuesInvoice], error) {
	if err := requireStaff(auth); err != nil {
		return pagination.Paged[domain.DuesInvoice]{}, err
	}
	if err := domain.ValidateDuesYear(year); err != nil {
		return pagination.Paged[domain.DuesInvoice]{}, err
	}
	return pagination.Fetch(request, func(options domain.ListOptions) ([]domain.DuesInvoice, int, error) {
		return s.repo.ListDuesInvoices(ctx, year, options)
	})
}

// InvoicePDF renders an invoice for the holder of its token. Reversal
// invoices get their own layout.
func (s *Service) InvoicePDF(ctx context.Context, year, invoiceNo int, token string) ([]byte, error) {
	invoice, err := s.repo.GetDuesInvoice(ctx, year, invoiceNo)
	if err != nil {
		return nil, err
	}
	if invoice.Token == "" || subtle.ConstantTimeCompare([]byte(invoice.Token), []byte(token)) != 1 {
		return nil, fmt.Errorf("invoice %d/%d: %w", year, invoiceNo, domain.ErrNotFound)
	}
	member, err := s.repo.GetMember(ctx, invoice.MemberID)
	if err != nil {
		return nil, err
	}
	attachment, err := s.renderInvoice(ctx, member, invoice)
	if err != nil {
		return nil, err
	}
	return attachment.Data, nil
}

func (s *Service) ExportDuesInvoices(ctx context.Context, auth ports.AuthContext, year int) ([]byte, error) {
	if err := requireStaff(auth); err != nil {
		return nil, err
	}
	if err := domain.ValidateDuesYear(year); err != nil {
		return nil, err
	}
	invoices, err := s.repo.ListAllDuesInvoices(ctx, year)
	if err != nil {
		return nil, err
	}
	return s.importer.EncodeInvoices(ctx, invoices)
}
