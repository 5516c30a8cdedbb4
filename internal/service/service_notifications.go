package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

//go:embed templates/mail/*.txt
var mailFS embed.FS

// mailTemplates holds one template per message and locale, named
// "<message>.<locale>.txt". The first line of a template is the subject.
type mailTemplates struct {
	set *template.Template
}

type mailData struct {
	Organisation string
	Member       domain.Member
	Link         string
	Invoice      domain.DuesInvoice
	Amount       string
	Exempted     bool
	ValidUntil   string
}

func loadMailTemplates() (*mailTemplates, error) {
	set, err := template.ParseFS(mailFS, "templates/mail/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &mailTemplates{set: set}, nil
}

func (m *mailTemplates) render(name, locale string, data mailData) (string, string, error) {
	tmpl := m.set.Lookup(name + "." + locale + ".txt")
	if tmpl == nil {
		tmpl = m.set.Lookup(name + "." + domain.LocaleEnglish + ".txt")
	}
	if tmpl == nil {
		return "", "", fmt.Errorf("unknown mail template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render mail %q: %w", name, err)
	}
	head, body, _ := strings.Cut(buf.String(), "\n")
	subject := strings.TrimSpace(strings.TrimPrefix(head, "Subject:"))
	return subject, strings.TrimLeft(body, "\n"), nil
}

func memberLocale(member domain.Member) string {
	locale, _ := domain.MatchLocale(member.Locale)
	return locale
}

// sendMail renders the named message in the member's language and sends it
// to the member.
func (s *Service) sendMail(ctx context.Context, name string, data mailData, attachments ...ports.Attachment) error {
	data.Organisation = s.config.OrganisationName
	subject, body, err := s.mail.render(name, memberLocale(data.Member), data)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, ports.Message{
		To:          []string{data.Member.Email},
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	})
}

// notifyStaff is best effort; a failure is logged and otherwise ignored.
func (s *Service) notifyStaff(ctx context.Context, name string, data mailData) {
	if s.config.StaffAddress == "" {
		return
	}
	data.Organisation = s.config.OrganisationName
	subject, body, err := s.mail.render(name, domain.LocaleEnglish, data)
	if err == nil {
		err = s.mailer.Send(ctx, ports.Message{To: []string{s.config.StaffAddress}, Subject: subject, Body: body})
	}
	if err != nil {
		s.logger.Warn("staff notification failed", zap.String("mail", name), zap.Error(err))
	}
}

// link builds an absolute URL; string arguments are path segments and get
// escaped.
func (s *Service) link(format string, args ...any) string {
	escaped := make([]any, len(args))
	for idx, arg := range args {
		if segment, ok := arg.(string); ok {
			arg = url.PathEscape(segment)
		}
		escaped[idx] = arg
	}
	return s.config.BaseURL + fmt.Sprintf(format, escaped...)
}
