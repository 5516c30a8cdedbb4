package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

const (
	documentApplicationForm = "application_form"
	documentDuesInvoice     = "dues_invoice"
	documentDuesReversal    = "dues_reversal"
	documentCertificate     = "certificate"
)

type applicationDocument struct {
	Locale       string
	Organisation string
	Member       domain.Member
	ConfirmCode  string
	SubmittedOn  string
	SharePrice   decimal.Decimal
	SharesValue  decimal.Decimal
}

type invoiceDocument struct {
	Locale       string
	Organisation string
	Member       domain.Member
	Invoice      domain.DuesInvoice
}

type certificateDocument struct {
	Locale       string
	Organisation string
	Member       domain.Member
	SharesTotal  int
	SharesValue  decimal.Decimal
	IssuedOn     string
}

func (s *Service) renderApplicationForm(ctx context.Context, member domain.Member) ([]byte, error) {
	return s.renderer.Render(ctx, documentApplicationForm, applicationDocument{
		Locale:       memberLocale(member),
		Organisation: s.config.OrganisationName,
		Member:       member,
		ConfirmCode:  member.EmailConfirmCode,
		SubmittedOn:  member.DateOfSubmission.Format(domain.DateLayout),
		SharePrice:   s.config.SharePrice,
		SharesValue:  s.config.SharePrice.Mul(decimal.NewFromInt(int64(member.NumShares))),
	})
}

func (s *Service) renderInvoice(ctx context.Context, member domain.Member, invoice domain.DuesInvoice) (ports.Attachment, error) {
	name := documentDuesInvoice
	if invoice.IsReversal {
		name = documentDuesReversal
	}
	pdf, err := s.renderer.Render(ctx, name, invoiceDocument{
		Locale:       memberLocale(member),
		Organisation: s.config.OrganisationName,
		Member:       member,
		Invoice:      invoice,
	})
	if err != nil {
		return ports.Attachment{}, err
	}
	return ports.Attachment{
		Filename:    fmt.Sprintf("%s.pdf", invoice.InvoiceNoString),
		ContentType: "application/pdf",
		Data:        pdf,
	}, nil
}

func (s *Service) renderCertificate(ctx context.Context, member domain.Member, packages []domain.Shares) ([]byte, error) {
	total, value := domain.SharesTotal(packages, s.config.SharePrice)
	return s.renderer.Render(ctx, documentCertificate, certificateDocument{
		Locale:       memberLocale(member),
		Organisation: s.config.OrganisationName,
		Member:       member,
		SharesTotal:  total,
		SharesValue:  value,
		IssuedOn:     s.today(),
	})
}
