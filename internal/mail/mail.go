// Package mail sends transactional email through SendGrid, or writes it to
// the log when no provider is configured.
package mail

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/markit/attendance/internal/config"
)

var ErrNoRecipients = errors.New("message has no recipients")

// Message is a single outgoing email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages. Implementations are safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender picks the sender configured by MAIL_PROVIDER.
func NewSender(cfg config.Mail, appName string) (Sender, error) {
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	switch strings.ToLower(cfg.Provider) {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("SENDGRID_API_KEY is required when MAIL_PROVIDER=sendgrid")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, appName, from), nil
	case "", "console":
		return NewConsoleSender(appName, from), nil
	default:
		return nil, errors.New("unknown mail provider: " + cfg.Provider)
	}
}

func subjectPrefix(appName string) string {
	if appName == "" {
		return ""
	}
	return "[" + appName + "] "
}
