package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"memberdesk/backend/internal/logging"
	"memberdesk/backend/internal/ports"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	raw  []byte
}

func newTestMailer(t *testing.T, failures int) (*SMTPMailer, *[]capturedMail) {
	t.Helper()
	mailer, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.org", Port: 2525, From: "office@example.org"}, logging.Test(t))
	require.NoError(t, err)

	var sent []capturedMail
	calls := 0
	mailer.delay = time.Millisecond
	mailer.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	mailer.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		if calls <= failures {
			return errors.New("connection reset")
		}
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, raw: msg})
		return nil
	}
	return mailer, &sent
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{From: "office@example.org"}, nil)
	require.Error(t, err)
	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.org"}, nil)
	require.Error(t, err)

	mailer, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.org", From: "office@example.org"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 587, mailer.config.Port)
}

func TestSMTPMailerSendsPlainText(t *testing.T) {
	mailer, sent := newTestMailer(t, 0)

	err := mailer.Send(context.Background(), ports.Message{
		To:      []string{"ada@example.org"},
		Subject: "Bestätigung",
		Body:    "Hello\nworld",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	captured := (*sent)[0]
	assert.Equal(t, "smtp.example.org:2525", captured.addr)
	assert.Equal(t, "office@example.org", captured.from)
	assert.Equal(t, []string{"ada@example.org"}, captured.to)

	parsed, err := netmail.ReadMessage(bytes.NewReader(captured.raw))
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Bestätigung", subject)
	assert.Equal(t, "text/plain; charset=utf-8", parsed.Header.Get("Content-Type"))

	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello\r\nworld", string(body))
}

func TestSMTPMailerSendsAttachments(t *testing.T) {
	mailer, sent := newTestMailer(t, 0)
	pdf := bytes.Repeat([]byte("%PDF-1.5 "), 40)

	err := mailer.Send(context.Background(), ports.Message{
		To:      []string{"ada@example.org"},
		Subject: "Invoice",
		Body:    "see attachment",
		Attachments: []ports.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: pdf},
		},
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	parsed, err := netmail.ReadMessage(bytes.NewReader((*sent)[0].raw))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	textPart, err := reader.NextPart()
	require.NoError(t, err)
	text, err := io.ReadAll(textPart)
	require.NoError(t, err)
	assert.Equal(t, "see attachment", string(text))

	attachmentPart, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "invoice.pdf", attachmentPart.FileName())
	encoded, err := io.ReadAll(attachmentPart)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, pdf, decoded)

	_, err = reader.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSMTPMailerRetriesTransientFailures(t *testing.T) {
	mailer, sent := newTestMailer(t, 2)

	err := mailer.Send(context.Background(), ports.Message{To: []string{"ada@example.org"}, Subject: "retry", Body: "body"})
	require.NoError(t, err)
	assert.Len(t, *sent, 1)
}

func TestSMTPMailerGivesUp(t *testing.T) {
	mailer, sent := newTestMailer(t, 5)

	err := mailer.Send(context.Background(), ports.Message{To: []string{"ada@example.org"}, Subject: "retry", Body: "body"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, *sent)
}

func TestSMTPMailerRequiresRecipients(t *testing.T) {
	mailer, _ := newTestMailer(t, 0)
	require.Error(t, mailer.Send(context.Background(), ports.Message{Subject: "nobody"}))
}

func TestLogMailer(t *testing.T) {
	logger, logs := logging.TestObserved(t, zapcore.InfoLevel)
	mailer := NewLogMailer(logger)

	err := mailer.Send(context.Background(), ports.Message{
		To:          []string{"ada@example.org"},
		Subject:     "hello",
		Attachments: []ports.Attachment{{Filename: "form.pdf"}},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("mail delivery disabled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].ContextMap()["subject"])
}
