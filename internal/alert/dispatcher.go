package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/couchcryptid/weather-monitor-service/internal/observability"
)

// EventStore persists alert history.
type EventStore interface {
	AppendAlertEvent(ctx context.Context, e domain.AlertEvent) error
}

// Sink delivers a dispatched alert. Delivery is best-effort.
type Sink interface {
	Name() string
	Send(ctx context.Context, e domain.AlertEvent) error
}

// Dispatcher persists alert events and hands dispatched ones to every sink.
type Dispatcher struct {
	dedup        *Deduplicator
	store        EventStore
	sinks        []Sink
	sinkTimeout  time.Duration
	storeTimeout time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewDispatcher creates a Dispatcher around dedup.
func NewDispatcher(dedup *Deduplicator, store EventStore, sinks []Sink, sinkTimeout, storeTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		dedup:        dedup,
		store:        store,
		sinks:        sinks,
		sinkTimeout:  sinkTimeout,
		storeTimeout: storeTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Observe feeds one evaluation result through deduplication. When the rule
// fires it returns the persisted event and true. Sends run under contexts
// detached from ctx so a shutdown does not cut a started dispatch short.
func (d *Dispatcher) Observe(ctx context.Context, rule domain.AlertRule, r domain.Reading, matched bool) (domain.AlertEvent, bool) {
	out := d.dedup.Observe(rule, r.City, matched)
	if !out.Fired {
		return domain.AlertEvent{}, false
	}

	event := domain.AlertEvent{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		City:        r.City,
		Description: rule.Description,
		Reading:     r,
		TriggeredAt: out.At,
		Dispatched:  out.Dispatch,
	}

	d.persist(ctx, event)

	if !event.Dispatched {
		d.metrics.Alerts.WithLabelValues("suppressed").Inc()
		d.logger.Info("alert suppressed by cooldown",
			"rule_id", rule.ID, "city", r.City, "cooldown", rule.Cooldown)
		return event, true
	}

	d.metrics.Alerts.WithLabelValues("dispatched").Inc()
	d.fanOut(ctx, event)
	return event, true
}

func (d *Dispatcher) persist(ctx context.Context, event domain.AlertEvent) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.storeTimeout)
	defer cancel()

	if err := d.store.AppendAlertEvent(sctx, event); err != nil {
		d.metrics.StorageErrors.WithLabelValues("append_alert").Inc()
		d.logger.Error("persist alert event failed",
			"error", err, "rule_id", event.RuleID, "city", event.City, "alert_id", event.ID)
	}
}

func (d *Dispatcher) fanOut(ctx context.Context, event domain.AlertEvent) {
	base := context.WithoutCancel(ctx)

	var g errgroup.Group
	for _, sink := range d.sinks {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(base, d.sinkTimeout)
			defer cancel()

			if err := sink.Send(sctx, event); err != nil {
				err = fmt.Errorf("%w: %s: %w", domain.ErrDispatch, sink.Name(), err)
				d.metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
				d.logger.Warn("alert sink failed",
					"error", err, "sink", sink.Name(), "rule_id", event.RuleID, "city", event.City)
			}
			return nil
		})
	}
	_ = g.Wait()
}
