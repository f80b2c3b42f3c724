// Package mqtt publishes dispatched alerts to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/weather-monitor-service/internal/config"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

const qos = 1

// Publisher implements alert.Sink over MQTT. Each alert goes to
// {prefix}/{city} with QoS 1.
type Publisher struct {
	client paho.Client
	prefix string
	unit   domain.TemperatureUnit
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
}

// Message is the JSON payload of an alert.
type Message struct {
	domain.AlertEvent
	Message string `json:"message"`
}

// NewPublisher creates a publisher for the configured broker. Call Connect
// before the first Send.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	p := &Publisher{
		prefix: strings.TrimSuffix(cfg.MQTTTopicPrefix, "/"),
		unit:   cfg.TemperatureUnit,
		logger: logger,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.MQTTBrokerURL)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBrokerURL)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	return p
}

// Connect waits for the initial broker connection or ctx.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.IsConnected() {
		return nil
	}
	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) Name() string { return "mqtt" }

// Send publishes e and waits for the broker acknowledgement or ctx.
func (p *Publisher) Send(ctx context.Context, e domain.AlertEvent) error {
	if !p.IsConnected() {
		return errors.New("mqtt client not connected")
	}

	data, err := json.Marshal(Message{AlertEvent: e, Message: e.Message(p.unit)})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	topic := topicFor(p.prefix, e.City)
	token := p.client.Publish(topic, qos, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("alert published", "topic", topic, "alert_id", e.ID)
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Close disconnects, letting in-flight publishes finish for up to 250ms.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
	return nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// topicFor builds the per-city topic. MQTT wildcard and level characters in
// the city name are replaced so each city maps to exactly one level.
func topicFor(prefix, city string) string {
	level := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(city)
	if prefix == "" {
		return level
	}
	return prefix + "/" + level
}
