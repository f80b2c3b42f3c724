// Package email delivers dispatched alerts over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/config"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// SendFunc matches smtp.SendMail. Tests provide a fake.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender implements alert.Sink with PLAIN auth over STARTTLS.
type Sender struct {
	addr   string
	auth   smtp.Auth
	from   string
	to     []string
	unit   domain.TemperatureUnit
	send   SendFunc
	now    func() time.Time
	logger *slog.Logger
}

// NewSender creates an SMTP sender. The caller checks cfg.EmailEnabled first.
func NewSender(cfg *config.Config, logger *slog.Logger) (*Sender, error) {
	host, _, err := net.SplitHostPort(cfg.SMTPAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_ADDR %q: %w", cfg.SMTPAddr, err)
	}
	return &Sender{
		addr:   cfg.SMTPAddr,
		auth:   smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, host),
		from:   cfg.SMTPFrom,
		to:     cfg.SMTPTo,
		unit:   cfg.TemperatureUnit,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger,
	}, nil
}

func (s *Sender) Name() string { return "email" }

// Send mails e to every recipient. net/smtp has no context support, so the
// send runs in a goroutine and Send returns when ctx ends; the abandoned
// send finishes or fails on its own.
func (s *Sender) Send(ctx context.Context, e domain.AlertEvent) error {
	msg := buildMessage(s.from, s.to, e, s.unit, s.now())

	done := make(chan error, 1)
	go func() { done <- s.send(s.addr, s.auth, s.from, s.to, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send alert email: %w", err)
		}
		s.logger.Debug("alert email sent", "alert_id", e.ID, "recipients", len(s.to))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send alert email: %w", ctx.Err())
	}
}

// buildMessage renders an RFC 5322 plain-text message.
func buildMessage(from string, to []string, e domain.AlertEvent, unit domain.TemperatureUnit, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: Weather Alert: %s\r\n", sanitizeHeader(e.City))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(e.Message(unit))
	b.WriteString("\r\n\r\n")
	fmt.Fprintf(&b, "Rule: %s\r\n", e.RuleID)
	fmt.Fprintf(&b, "Triggered at: %s\r\n", e.TriggeredAt.Format(time.RFC3339))
	return b.Bytes()
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
