// Package aggregate computes daily per-city summaries from stored readings.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/couchcryptid/weather-monitor-service/internal/observability"
)

// Store is the slice of the reading store the aggregator needs.
type Store interface {
	ReadingsInRange(ctx context.Context, city string, from, to time.Time) ([]domain.Reading, error)
	UpsertDailySummary(ctx context.Context, s domain.DailySummary) error
}

// Aggregator computes and upserts DailySummaries.
type Aggregator struct {
	store   Store
	loc     *time.Location
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Aggregator whose calendar days are taken in loc.
func New(store Store, loc *time.Location, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		store:   store,
		loc:     loc,
		clock:   domain.ClockOrReal(clock),
		logger:  logger,
		metrics: metrics,
	}
}

// Aggregate recomputes the summary for city on date (YYYY-MM-DD) and upserts
// it. found is false when the day has no readings; nothing is written then.
// A date whose window has not closed yet returns ErrDateNotElapsed.
func (a *Aggregator) Aggregate(ctx context.Context, city, date string) (domain.DailySummary, bool, error) {
	from, to, err := domain.DayWindow(date, a.loc)
	if err != nil {
		return domain.DailySummary{}, false, err
	}
	if a.clock.Now().Before(to) {
		return domain.DailySummary{}, false, fmt.Errorf("%w: %s", domain.ErrDateNotElapsed, date)
	}

	readings, err := a.store.ReadingsInRange(ctx, city, from, to)
	if err != nil {
		a.metrics.Aggregations.WithLabelValues("error").Inc()
		return domain.DailySummary{}, false, fmt.Errorf("load readings for %s on %s: %w", city, date, err)
	}

	summary, ok := domain.Summarize(city, date, readings)
	if !ok {
		a.metrics.Aggregations.WithLabelValues("empty").Inc()
		a.logger.Debug("no readings to aggregate", "city", city, "date", date)
		return domain.DailySummary{}, false, nil
	}

	if err := a.store.UpsertDailySummary(ctx, summary); err != nil {
		a.metrics.Aggregations.WithLabelValues("error").Inc()
		a.metrics.StorageErrors.WithLabelValues("upsert_summary").Inc()
		return domain.DailySummary{}, false, fmt.Errorf("store summary for %s on %s: %w", city, date, err)
	}

	a.metrics.Aggregations.WithLabelValues("stored").Inc()
	a.logger.Info("daily summary stored",
		"city", city, "date", date, "samples", summary.SampleCount,
		"min", summary.MinTemp, "max", summary.MaxTemp, "dominant", summary.DominantCondition)
	return summary, true, nil
}

// AggregateRange aggregates every date from fromDate to toDate inclusive.
// Per-day failures do not stop later days; they are joined into the returned
// error. Iteration stops at the first date that has not elapsed.
func (a *Aggregator) AggregateRange(ctx context.Context, city, fromDate, toDate string) ([]domain.DailySummary, error) {
	start, _, err := domain.DayWindow(fromDate, a.loc)
	if err != nil {
		return nil, err
	}
	end, _, err := domain.DayWindow(toDate, a.loc)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s is before start %s", toDate, fromDate)
	}

	var (
		out  []domain.DailySummary
		errs []error
	)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		date := domain.DateOf(day, a.loc)
		s, found, err := a.Aggregate(ctx, city, date)
		if errors.Is(err, domain.ErrDateNotElapsed) {
			errs = append(errs, err)
			break
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if found {
			out = append(out, s)
		}
	}
	return out, errors.Join(errs...)
}
