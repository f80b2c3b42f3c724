package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-monitor-service/internal/config"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		SMTPAddr:        "smtp.gmail.com:587",
		SMTPUsername:    "monitor@example.com",
		SMTPPassword:    "secret",
		SMTPFrom:        "monitor@example.com",
		SMTPTo:          []string{"ops@example.com", "oncall@example.com"},
		TemperatureUnit: domain.Celsius,
	}
}

func testEvent() domain.AlertEvent {
	return domain.AlertEvent{
		ID:          "alert-1",
		RuleID:      "delhi-heat",
		City:        "Delhi",
		Description: "Heatwave",
		Reading:     domain.Reading{City: "Delhi", Timestamp: now, Temperature: 42, FeelsLike: 44, Condition: "Haze"},
		TriggeredAt: now,
		Dispatched:  true,
	}
}

func testSender(t *testing.T, send SendFunc) *Sender {
	t.Helper()
	s, err := NewSender(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	s.send = send
	s.now = func() time.Time { return now }
	return s
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("monitor@example.com", []string{"ops@example.com", "oncall@example.com"}, testEvent(), domain.Celsius, now))

	assert.Contains(t, msg, "From: monitor@example.com\r\n")
	assert.Contains(t, msg, "To: ops@example.com, oncall@example.com\r\n")
	assert.Contains(t, msg, "Subject: Weather Alert: Delhi\r\n")
	assert.Contains(t, msg, "Date: Wed, 01 May 2024 12:00:00 +0000\r\n")
	assert.Contains(t, msg, "\r\n\r\nWeather alert for Delhi: Heatwave. Current temperature 42.0°C (feels like 44.0°C), condition Haze.")
	assert.Contains(t, msg, "Rule: delhi-heat\r\n")
}

func TestBuildMessage_StripsHeaderInjection(t *testing.T) {
	e := testEvent()
	e.City = "Delhi\r\nBcc: evil@example.com"
	msg := string(buildMessage("a@example.com", []string{"b@example.com"}, e, domain.Celsius, now))
	assert.Contains(t, msg, "Subject: Weather Alert: DelhiBcc: evil@example.com\r\n")
	assert.NotContains(t, msg, "\r\nBcc:")
}

func TestSender_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s := testSender(t, func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	})

	require.NoError(t, s.Send(context.Background(), testEvent()))
	assert.Equal(t, "email", s.Name())
	assert.Equal(t, "smtp.gmail.com:587", gotAddr)
	assert.Equal(t, "monitor@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Heatwave")
}

func TestSender_SendError(t *testing.T) {
	s := testSender(t, func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("535 authentication failed")
	})

	err := s.Send(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
}

func TestSender_SendRespectsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	s := testSender(t, func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Send(ctx, testEvent()), context.DeadlineExceeded)
}

func TestNewSender_InvalidAddr(t *testing.T) {
	cfg := testConfig()
	cfg.SMTPAddr = "smtp.gmail.com"
	_, err := NewSender(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
