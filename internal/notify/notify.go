// Package notify delivers interview transcripts to users by email.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/nikhilbhutani/visaprep/internal/config"
)

var ErrNoRecipient = errors.New("email has no recipient")

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

func (m Message) validate() error {
	if m.To == "" {
		return ErrNoRecipient
	}
	if m.From == "" {
		return errors.New("email has no sender")
	}
	return nil
}

// Notifier sends a message and reports whether delivery was accepted.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// FromConfig builds the notifier selected by cfg.Backend. awsCfg is only used
// by the ses backend.
func FromConfig(cfg config.EmailConfig, awsCfg aws.Config) (Notifier, error) {
	switch cfg.Backend {
	case "log", "":
		return NewLogNotifier(), nil
	case "smtp":
		return NewSMTPNotifier(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
		}), nil
	case "ses":
		return NewSESNotifier(awsCfg), nil
	default:
		return nil, fmt.Errorf("unknown email backend %q", cfg.Backend)
	}
}
