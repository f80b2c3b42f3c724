package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/couchcryptid/weather-monitor-service/internal/observability"
)

// WeatherSource fetches the current reading for a city.
type WeatherSource interface {
	Fetch(ctx context.Context, city string) (domain.Reading, error)
}

// ReadingStore appends raw readings.
type ReadingStore interface {
	AppendReading(ctx context.Context, r domain.Reading) error
}

// pinger is implemented by stores that can report reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Dispatcher receives every rule evaluation and decides whether it alerts.
type Dispatcher interface {
	Observe(ctx context.Context, rule domain.AlertRule, r domain.Reading, matched bool) (domain.AlertEvent, bool)
}

// Options tune a Pipeline.
type Options struct {
	Workers      int
	FetchTimeout time.Duration
	StoreTimeout time.Duration
}

// Pipeline runs the per-city fetch, store, evaluate, dispatch unit.
type Pipeline struct {
	source     WeatherSource
	store      ReadingStore
	dispatcher Dispatcher
	cities     []string
	rules      map[string][]domain.AlertRule
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Pipeline over cities. Rules for cities not in the list are ignored.
func New(source WeatherSource, store ReadingStore, dispatcher Dispatcher, cities []string, rules []domain.AlertRule, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	byCity := make(map[string][]domain.AlertRule, len(cities))
	for _, r := range rules {
		byCity[r.City] = append(byCity[r.City], r)
	}
	return &Pipeline{
		source:     source,
		store:      store,
		dispatcher: dispatcher,
		cities:     cities,
		rules:      byCity,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once at least one reading has been stored and
// the store still answers, or an error describing why the service is not
// ready.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if !p.ready.Load() {
		return errors.New("no reading has been stored yet")
	}
	if pg, ok := p.store.(pinger); ok {
		pctx, cancel := context.WithTimeout(ctx, p.opts.StoreTimeout)
		defer cancel()
		if err := pg.Ping(pctx); err != nil {
			return fmt.Errorf("store unreachable: %w", err)
		}
	}
	return nil
}

// Tick processes every city once, at most Workers at a time. Per-city
// failures are logged and never abort other cities. Cities not yet started
// when ctx is canceled are skipped; started ones run to completion.
func (p *Pipeline) Tick(ctx context.Context) {
	start := time.Now()

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for _, city := range p.cities {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := p.ProcessCity(ctx, city); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	p.metrics.PollTicks.Inc()
	p.metrics.TickDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("poll tick complete",
		"cities", len(p.cities), "failed", failed.Load(), "duration", time.Since(start))
}

// ProcessCity fetches, stores, and evaluates one reading for city. The
// evaluator only runs after the reading is durably stored.
func (p *Pipeline) ProcessCity(ctx context.Context, city string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reading, err := p.fetch(ctx, city)
	if err != nil {
		kind := domain.SourceErrorKind(err)
		p.metrics.FetchErrors.WithLabelValues(kind).Inc()
		p.logger.Warn("fetch failed, skipping city", "city", city, "kind", kind, "error", err)
		return err
	}

	// The unit is committed from here on: the write must not be torn by
	// shutdown, so it gets its own bounded context.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.StoreTimeout)
	defer cancel()
	if err := p.store.AppendReading(sctx, reading); err != nil {
		if !errors.Is(err, domain.ErrStorage) {
			err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		p.metrics.StorageErrors.WithLabelValues("append_reading").Inc()
		p.logger.Error("store reading failed, skipping evaluation", "city", city, "error", err)
		return err
	}

	p.ready.Store(true)
	p.metrics.ReadingsStored.Inc()
	p.metrics.LastReadingTimestamp.WithLabelValues(city).Set(float64(reading.Timestamp.Unix()))
	p.logger.Debug("reading stored",
		"city", city, "temperature", reading.Temperature, "condition", reading.Condition)

	p.evaluate(ctx, reading)
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, city string) (domain.Reading, error) {
	fctx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	reading, err := p.source.Fetch(fctx, city)
	if err != nil {
		return domain.Reading{}, err
	}
	if reading.City == "" {
		reading.City = city
	}
	if err := reading.Validate(); err != nil {
		return domain.Reading{}, err
	}
	return reading, nil
}

func (p *Pipeline) evaluate(ctx context.Context, reading domain.Reading) {
	for _, rule := range p.rules[reading.City] {
		matched := domain.Evaluate(rule.Condition, reading)
		p.metrics.RuleEvaluations.Inc()
		if event, fired := p.dispatcher.Observe(ctx, rule, reading, matched); fired {
			p.logger.Info("rule fired",
				"rule_id", rule.ID, "city", reading.City, "dispatched", event.Dispatched, "alert_id", event.ID)
		}
	}
}
