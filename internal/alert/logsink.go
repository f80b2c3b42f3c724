package alert

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// LogSink writes dispatched alerts to the process log at WARN.
type LogSink struct {
	logger *slog.Logger
	unit   domain.TemperatureUnit
}

// NewLogSink creates a LogSink rendering temperatures in unit.
func NewLogSink(logger *slog.Logger, unit domain.TemperatureUnit) *LogSink {
	return &LogSink{logger: logger, unit: unit}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, e domain.AlertEvent) error {
	s.logger.WarnContext(ctx, e.Message(s.unit),
		"alert_id", e.ID,
		"rule_id", e.RuleID,
		"city", e.City,
		"triggered_at", e.TriggeredAt,
	)
	return nil
}
