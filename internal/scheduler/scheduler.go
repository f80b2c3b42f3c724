// Package scheduler drives the polling loop and the day-boundary
// aggregation loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/couchcryptid/weather-monitor-service/internal/observability"
)

// Poller runs one polling tick across all cities.
type Poller interface {
	Tick(ctx context.Context)
}

// DailyAggregator summarizes one city's calendar day.
type DailyAggregator interface {
	Aggregate(ctx context.Context, city, date string) (domain.DailySummary, bool, error)
}

// Config tunes a Scheduler.
type Config struct {
	Cities       []string
	PollInterval time.Duration
	// AggregationSchedule is a standard five-field cron expression evaluated
	// in Location.
	AggregationSchedule string
	Location            *time.Location
}

// Scheduler owns the two loops. The cron expression is only used to compute
// the next firing time; waiting happens on the injected clock.
type Scheduler struct {
	poller     Poller
	aggregator DailyAggregator
	cities     []string
	interval   time.Duration
	schedule   cron.Schedule
	loc        *time.Location
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. It fails only on an invalid configuration.
func New(cfg Config, poller Poller, aggregator DailyAggregator, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Scheduler, error) {
	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	schedule, err := cron.ParseStandard(cfg.AggregationSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse aggregation schedule %q: %w", cfg.AggregationSchedule, err)
	}
	return &Scheduler{
		poller:     poller,
		aggregator: aggregator,
		cities:     cfg.Cities,
		interval:   cfg.PollInterval,
		schedule:   schedule,
		loc:        cfg.Location,
		clock:      domain.ClockOrReal(clock),
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Start launches both loops. The first poll runs immediately, and the
// previous day is aggregated once to catch up after downtime. Calling Start
// on a running Scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.pollLoop(ctx)
	go s.aggregateLoop(ctx)

	s.metrics.SchedulerRunning.Set(1)
	s.logger.Info("scheduler started", "cities", len(s.cities), "poll_interval", s.interval, "timezone", s.loc.String())
}

// Stop cancels both loops and waits for in-flight work to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	s.wg.Wait()
	s.metrics.SchedulerRunning.Set(0)
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	s.poller.Tick(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.poller.Tick(ctx)
		}
	}
}

func (s *Scheduler) aggregateLoop(ctx context.Context) {
	defer s.wg.Done()

	s.aggregateDay(ctx, s.previousDate(s.clock.Now()))

	for {
		now := s.clock.Now()
		next := s.schedule.Next(now.In(s.loc))
		select {
		case <-ctx.Done():
			return
		case fired := <-s.clock.After(next.Sub(now)):
			s.aggregateDay(ctx, s.previousDate(fired))
		}
	}
}

// previousDate is the calendar day before t in the scheduler's zone.
func (s *Scheduler) previousDate(t time.Time) string {
	local := t.In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return domain.DateOf(midnight.AddDate(0, 0, -1), s.loc)
}

// aggregateDay summarizes date for every city. A failing city is logged and
// does not stop the rest.
func (s *Scheduler) aggregateDay(ctx context.Context, date string) {
	stored := 0
	for _, city := range s.cities {
		if ctx.Err() != nil {
			return
		}
		_, found, err := s.aggregator.Aggregate(ctx, city, date)
		if err != nil {
			s.logger.Error("daily aggregation failed", "city", city, "date", date, "error", err)
			continue
		}
		if found {
			stored++
		}
	}
	s.logger.Info("daily aggregation complete", "date", date, "cities", len(s.cities), "stored", stored)
}
