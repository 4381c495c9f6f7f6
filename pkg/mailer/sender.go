package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/pkg/mailer/templates"
)

var ErrNoRecipient = errors.New("email job has no recipient")

// Sender delivers one rendered email. html is optional.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Deliver renders job's template when one is named and hands the result to sender.
func Deliver(ctx context.Context, sender Sender, job EmailJob) error {
	if job.To == "" {
		return ErrNoRecipient
	}
	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		s, t, h, err := templates.Render(job.Template, job.Data)
		if err != nil {
			return fmt.Errorf("render %s: %w", job.Template, err)
		}
		subject, text, html = s, t, h
	}
	return sender.Send(ctx, job.To, subject, text, html)
}

// LogSender only logs. Used when MAIL_PROVIDER=log or sending is disabled.
type LogSender struct {
	Logger logrus.FieldLogger
}

func (s LogSender) Send(_ context.Context, to, subject, _, _ string) error {
	s.Logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email suppressed")
	return nil
}

// SenderConfig selects and configures the delivery provider.
type SenderConfig struct {
	Provider             string // mailgun, gmail or log
	Enabled              bool
	From                 string
	MailgunDomain        string
	MailgunAPIKey        string
	GmailCredentialsFile string
}

// NewSender builds the configured Sender. Disabled sending, or provider
// "log", yields a LogSender.
func NewSender(ctx context.Context, cfg SenderConfig, logger logrus.FieldLogger) (Sender, error) {
	if !cfg.Enabled {
		return LogSender{Logger: logger}, nil
	}
	switch cfg.Provider {
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.From == "" {
			return nil, errors.New("mailgun not configured")
		}
		return NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.From), nil
	case "gmail":
		return NewGmail(ctx, cfg.GmailCredentialsFile, cfg.From)
	case "log", "":
		return LogSender{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
