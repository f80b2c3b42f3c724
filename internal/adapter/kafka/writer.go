package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-monitor-service/internal/config"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// AlertWriter publishes dispatched alerts to a Kafka topic.
// It implements alert.Sink.
type AlertWriter struct {
	writer *kafkago.Writer
	unit   domain.TemperatureUnit
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alert topic.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AlertWriter{writer: w, unit: cfg.TemperatureUnit, logger: logger}
}

func (w *AlertWriter) Name() string { return "kafka" }

// Send publishes one alert keyed by city so a city's alerts stay ordered
// within a partition.
func (w *AlertWriter) Send(ctx context.Context, e domain.AlertEvent) error {
	msg, err := serializeToMessage(e, w.unit)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", e.ID, err)
	}
	w.logger.Debug("alert published", "alert_id", e.ID, "topic", w.writer.Topic)
	return nil
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// Payload is the JSON body of an alert message.
type Payload struct {
	domain.AlertEvent
	Message string `json:"message"`
}

// serializeToMessage marshals an AlertEvent into a Kafka message.
func serializeToMessage(e domain.AlertEvent, unit domain.TemperatureUnit) (kafkago.Message, error) {
	data, err := json.Marshal(Payload{AlertEvent: e, Message: e.Message(unit)})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(e.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "rule_id", Value: []byte(e.RuleID)},
			{Key: "alert_id", Value: []byte(e.ID)},
			{Key: "triggered_at", Value: []byte(e.TriggeredAt.Format(time.RFC3339))},
		},
	}, nil
}
