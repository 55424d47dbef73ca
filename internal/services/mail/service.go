// Package mail sends the completion email over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for sending mail.
type Service interface {
	Send(ctx context.Context, recipient, subject, body string) (*models.MailResult, error)
}

// SendFunc matches smtp.SendMail and allows mocking the transport.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Impl implements the mail Service interface.
type Impl struct {
	cfg    models.SMTPConfig
	send   SendFunc
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a new mail service for the given server.
func New(logger zerolog.Logger, cfg models.SMTPConfig) *Impl {
	return NewWithSender(logger, cfg, smtp.SendMail)
}

// NewWithSender creates a new mail service with a custom transport (for testing).
func NewWithSender(logger zerolog.Logger, cfg models.SMTPConfig, send SendFunc) *Impl {
	return &Impl{
		cfg:    cfg,
		send:   send,
		now:    time.Now,
		logger: logger,
	}
}

// Send delivers a plain text message to recipient. Delivery failures are
// returned in MailResult.Error.
func (s *Impl) Send(ctx context.Context, recipient, subject, body string) (*models.MailResult, error) {
	result := &models.MailResult{}

	addr := net.JoinHostPort(s.cfg.URL, strconv.Itoa(s.cfg.Port))
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Account
	}

	s.logger.Info().
		Str("server", addr).
		Str("recipient", recipient).
		Str("subject", subject).
		Msg("sending completion email")

	var auth smtp.Auth
	if s.cfg.Account != "" {
		auth = smtp.PlainAuth("", s.cfg.Account, s.cfg.Password, s.cfg.URL)
	}
	msg := s.buildMessage(from, recipient, subject, body)

	// net/smtp has no context support; give up waiting when ctx ends.
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.send(addr, auth, from, []string{recipient}, msg)
	}()

	select {
	case <-ctx.Done():
		result.Error = ctx.Err()
		return result, nil
	case err := <-errChan:
		if err != nil {
			result.Error = fmt.Errorf("failed to send mail: %w", err)
			return result, nil
		}
	}

	result.MessageSent = true
	s.logger.Info().Msg("completion email sent")

	return result, nil
}

func (s *Impl) buildMessage(from, to, subject, body string) []byte {
	var b bytes.Buffer

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("Date: " + s.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")

	return b.Bytes()
}

// sanitizeHeader keeps a header value on a single line.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
