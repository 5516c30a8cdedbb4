// Package mail delivers notification emails over SMTP, or logs them when
// delivery is disabled.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"memberdesk/backend/internal/ports"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailer struct {
	config   SMTPConfig
	logger   *zap.Logger
	send     sendFunc
	attempts uint
	delay    time.Duration
	now      func() time.Time
}

var _ ports.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(config SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if strings.TrimSpace(config.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(config.From) == "" {
		return nil, errors.New("mail sender address is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SMTPMailer{
		config:   config,
		logger:   logger.Named("mail"),
		send:     smtp.SendMail,
		attempts: 3,
		delay:    2 * time.Second,
		now:      time.Now,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, message ports.Message) error {
	if len(message.To) == 0 {
		return errors.New("mail has no recipients")
	}

	raw, err := buildMessage(m.config.From, message, m.now())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	err = retry.Do(
		func() error {
			return m.send(addr, auth, m.config.From, message.To, raw)
		},
		retry.Context(ctx),
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			m.logger.Warn("retrying mail delivery",
				zap.Uint("attempt", n+1),
				zap.Strings("to", message.To),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("send mail %q: %w", message.Subject, err)
	}

	m.logger.Info("mail sent",
		zap.Strings("to", message.To),
		zap.String("subject", message.Subject),
		zap.Int("attachments", len(message.Attachments)),
	)
	return nil
}

// buildMessage renders an RFC 5322 message. Bodies are plain UTF-8 text;
// attachments turn the message into multipart/mixed.
func buildMessage(from string, message ports.Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := textproto.MIMEHeader{}
	header.Set("From", from)
	header.Set("To", strings.Join(message.To, ", "))
	header.Set("Subject", mime.QEncoding.Encode("utf-8", message.Subject))
	header.Set("Date", now.Format(time.RFC1123Z))
	header.Set("Message-ID", "<"+uuid.NewString()+"@memberdesk>")
	header.Set("MIME-Version", "1.0")

	if len(message.Attachments) == 0 {
		header.Set("Content-Type", "text/plain; charset=utf-8")
		header.Set("Content-Transfer-Encoding", "8bit")
		writeHeader(&buf, header)
		buf.WriteString(normalizeNewlines(message.Body))
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header.Set("Content-Type", "multipart/mixed; boundary="+writer.Boundary())
	writeHeader(&buf, header)

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(normalizeNewlines(message.Body))); err != nil {
		return nil, err
	}

	for _, attachment := range message.Attachments {
		contentType := attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, attachment.Data); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, header textproto.MIMEHeader) {
	for _, key := range []string{"From", "To", "Subject", "Date", "Message-ID", "MIME-Version", "Content-Type", "Content-Transfer-Encoding"} {
		if value := header.Get(key); value != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", key, value)
		}
	}
	buf.WriteString("\r\n")
}

// writeBase64 wraps encoded data at 76 characters per line.
func writeBase64(w interface{ Write([]byte) (int, error) }, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := w.Write([]byte(encoded + "\r\n"))
	return err
}

func normalizeNewlines(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.ReplaceAll(body, "\n", "\r\n")
}
