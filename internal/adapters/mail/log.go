package mail

import (
	"context"

	"go.uber.org/zap"

	"memberdesk/backend/internal/ports"
)

// LogMailer records messages in the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

var _ ports.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mail")}
}

func (m *LogMailer) Send(_ context.Context, message ports.Message) error {
	attachments := make([]string, 0, len(message.Attachments))
	for _, attachment := range message.Attachments {
		attachments = append(attachments, attachment.Filename)
	}
	m.logger.Info("mail delivery disabled",
		zap.Strings("to", message.To),
		zap.String("subject", message.Subject),
		zap.Strings("attachments", attachments),
	)
	m.logger.Debug("mail body", zap.String("body", message.Body))
	return nil
}
