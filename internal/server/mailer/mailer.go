// Package mailer delivers plain-text emails for the auth flows.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/logging"
)

// EmailSender delivers one plain-text message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c SMTPConfig) validate() error {
	if c.Host == "" {
		return errors.New("missing SMTP host")
	}
	if c.Port == 0 {
		return errors.New("missing SMTP port")
	}
	if c.From == "" {
		return errors.New("missing SMTP from address")
	}
	return nil
}

// SMTPMailer sends through an SMTP relay, dialing once per message.
type SMTPMailer struct {
	from   string
	send   func(m *gomail.Message) error
	logger logging.Logger
}

func NewSMTPMailer(cfg SMTPConfig, logger logging.Logger) (*SMTPMailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPMailer{
		from:   cfg.From,
		send:   func(m *gomail.Message) error { return dialer.DialAndSend(m) },
		logger: logger.With("module", "mailer"),
	}, nil
}

func newMessage(from, to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return errors.New("no recipient specified")
	}
	// gomail has no context support; at least do not dial for a dead request.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.send(newMessage(m.from, to, subject, body)); err != nil {
		m.logger.Error(ctx, "email delivery failed", "to", to, "error", err)
		return fmt.Errorf("%w: send email: %v", common.ErrorInternal, err)
	}
	m.logger.Info(ctx, "email sent", "to", to, "subject", subject)
	return nil
}

// LogSender only logs recipient and subject. It stands in for SMTP when no
// relay is configured, so bodies (which carry OTP codes) never reach the log.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "mailer")}
}

func (s *LogSender) Send(ctx context.Context, to, subject, _ string) error {
	s.logger.Warn(ctx, "smtp not configured, email dropped", "to", to, "subject", subject)
	return nil
}
