package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	TLS      bool // implicit TLS (port 465); otherwise STARTTLS when offered
}

type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// SMTPNotifier sends mail through an authenticated SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	send := smtp.SendMail
	if cfg.TLS {
		send = smtp.SendMailTLS
	}
	return &SMTPNotifier{cfg: cfg, send: send, now: time.Now}
}

func (s *SMTPNotifier) Name() string { return "smtp" }

func (s *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	var auth sasl.Client
	if s.cfg.User != "" {
		auth = sasl.NewPlainClient("", s.cfg.User, s.cfg.Password)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	body := buildMIME(msg, s.now())

	// go-smtp has no context support; give up waiting when ctx ends.
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.send(addr, auth, msg.From, []string{msg.To}, bytes.NewReader(body))
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
	}

	slog.Info("email sent", "backend", "smtp", "to", msg.To)
	return nil
}

func buildMIME(msg Message, date time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.Bytes()
}
