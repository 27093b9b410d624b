// Package mailer provides the outbound email transport used by the queue
// dispatcher. The production implementation speaks SMTP through gomail.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	apperrors "github.com/cadetops/mailroom/internal/errors"
)

// Config holds SMTP transport configuration.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// RetryMaxElapsed bounds the in-process retry of transient SMTP
	// failures. Zero disables the inner retry; the queue's own retry
	// budget still applies either way.
	RetryMaxElapsed time.Duration
}

// smtpDialer matches the gomail dialer surface the sender needs.
type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers HTML email over SMTP. It implements the dispatch
// transport contract: one call sends one message and returns its message id.
type SMTPSender struct {
	config Config
	dialer smtpDialer
	logger *slog.Logger
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(config Config, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
		logger: logger,
	}
}

// Send builds and delivers one HTML message to the given recipients.
// Transient failures are retried with exponential backoff inside the
// configured window; the error of the last attempt is returned verbatim.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject, htmlBody string) (string, error) {
	if len(to) == 0 {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "no recipients")
	}

	messageID := fmt.Sprintf("<%s@mailroom>", uuid.Must(uuid.NewV7()))

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/html", htmlBody)

	operation := func() error {
		return s.dialer.DialAndSend(m)
	}

	var err error
	if s.config.RetryMaxElapsed > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxElapsedTime = s.config.RetryMaxElapsed
		err = backoff.Retry(operation, backoff.WithContext(b, ctx))
	} else {
		err = operation()
	}
	if err != nil {
		return "", err
	}

	return messageID, nil
}

// LogSender is a transport that logs instead of sending. It backs local
// development and tests where no SMTP server is available.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(ctx context.Context, to []string, subject, htmlBody string) (string, error) {
	messageID := fmt.Sprintf("<%s@mailroom>", uuid.Must(uuid.NewV7()))

	s.logger.Info("email send skipped, transport in log mode",
		slog.Any("to", to),
		slog.String("subject", subject),
		slog.String("message_id", messageID),
	)

	return messageID, nil
}
