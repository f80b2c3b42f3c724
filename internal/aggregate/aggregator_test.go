package aggregate_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/adapter/memstore"
	"github.com/couchcryptid/weather-monitor-service/internal/aggregate"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/couchcryptid/weather-monitor-service/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ist(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func newAggregator(t *testing.T, store aggregate.Store, now time.Time) *aggregate.Aggregator {
	t.Helper()
	return aggregate.New(store, ist(t), clockwork.NewFakeClockAt(now),
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func seedDelhi(t *testing.T, store *memstore.Store) {
	t.Helper()
	loc := ist(t)
	ctx := context.Background()
	for i, r := range []struct {
		temp float64
		cond string
	}{{38.0, "Clear"}, {41.5, "Clear"}, {39.2, "Haze"}} {
		require.NoError(t, store.AppendReading(ctx, domain.Reading{
			City:        "Delhi",
			Timestamp:   time.Date(2024, 5, 1, 9+i, 0, 0, 0, loc),
			Temperature: r.temp,
			FeelsLike:   r.temp,
			Condition:   r.cond,
		}))
	}
	// Boundary readings belonging to neighbouring days.
	require.NoError(t, store.AppendReading(ctx, domain.Reading{City: "Delhi", Timestamp: time.Date(2024, 5, 2, 0, 0, 0, 0, loc), Temperature: 10, Condition: "Rain"}))
	require.NoError(t, store.AppendReading(ctx, domain.Reading{City: "Delhi", Timestamp: time.Date(2024, 4, 30, 23, 59, 59, 0, loc), Temperature: 50, Condition: "Rain"}))
}

func TestAggregate_DelhiExample(t *testing.T) {
	store := memstore.New()
	seedDelhi(t, store)
	a := newAggregator(t, store, time.Date(2024, 5, 2, 0, 5, 0, 0, ist(t)))

	s, found, err := a.Aggregate(context.Background(), "Delhi", "2024-05-01")
	require.NoError(t, err)
	require.True(t, found)

	assert.InDelta(t, 38.0, s.MinTemp, 1e-9)
	assert.InDelta(t, 41.5, s.MaxTemp, 1e-9)
	assert.InDelta(t, 39.5667, s.AvgTemp, 1e-4)
	assert.Equal(t, 3, s.SampleCount)
	assert.Equal(t, "Clear", s.DominantCondition)

	stored, ok, err := store.DailySummary(context.Background(), "Delhi", "2024-05-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s, stored)
}

func TestAggregate_Idempotent(t *testing.T) {
	store := memstore.New()
	seedDelhi(t, store)
	a := newAggregator(t, store, time.Date(2024, 5, 3, 0, 0, 0, 0, ist(t)))
	ctx := context.Background()

	first, _, err := a.Aggregate(ctx, "Delhi", "2024-05-01")
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	second, _, err := a.Aggregate(ctx, "Delhi", "2024-05-01")
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, firstJSON, secondJSON)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-aggregation changed summary (-first +second):\n%s", diff)
	}

	summaries, err := store.DailySummaries(ctx, "Delhi", "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, summaries, 1, "upsert never duplicates")
}

func TestAggregate_LateReadingOverwrites(t *testing.T) {
	store := memstore.New()
	seedDelhi(t, store)
	a := newAggregator(t, store, time.Date(2024, 5, 3, 0, 0, 0, 0, ist(t)))
	ctx := context.Background()

	_, _, err := a.Aggregate(ctx, "Delhi", "2024-05-01")
	require.NoError(t, err)

	require.NoError(t, store.AppendReading(ctx, domain.Reading{
		City: "Delhi", Timestamp: time.Date(2024, 5, 1, 20, 0, 0, 0, ist(t)), Temperature: 44, Condition: "Haze",
	}))
	s, _, err := a.Aggregate(ctx, "Delhi", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 4, s.SampleCount)
	assert.InDelta(t, 44, s.MaxTemp, 1e-9)
	// Two Clear, two Haze: Clear appeared first.
	assert.Equal(t, "Clear", s.DominantCondition)
}

func TestAggregate_NoReadings(t *testing.T) {
	store := memstore.New()
	a := newAggregator(t, store, time.Date(2024, 5, 3, 0, 0, 0, 0, ist(t)))

	_, found, err := a.Aggregate(context.Background(), "Chennai", "2024-05-01")
	require.NoError(t, err)
	assert.False(t, found)

	_, ok, err := store.DailySummary(context.Background(), "Chennai", "2024-05-01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAggregate_DateNotElapsed(t *testing.T) {
	store := memstore.New()
	seedDelhi(t, store)
	a := newAggregator(t, store, time.Date(2024, 5, 1, 23, 59, 0, 0, ist(t)))

	_, _, err := a.Aggregate(context.Background(), "Delhi", "2024-05-01")
	require.ErrorIs(t, err, domain.ErrDateNotElapsed)
}

func TestAggregate_InvalidDate(t *testing.T) {
	a := newAggregator(t, memstore.New(), time.Now())
	_, _, err := a.Aggregate(context.Background(), "Delhi", "01/05/2024")
	require.Error(t, err)
}

type failingStore struct{ aggregate.Store }

func (failingStore) ReadingsInRange(context.Context, string, time.Time, time.Time) ([]domain.Reading, error) {
	return nil, domain.ErrStorage
}

func TestAggregate_StoreError(t *testing.T) {
	a := newAggregator(t, failingStore{}, time.Date(2024, 5, 3, 0, 0, 0, 0, ist(t)))
	_, _, err := a.Aggregate(context.Background(), "Delhi", "2024-05-01")
	require.ErrorIs(t, err, domain.ErrStorage)
}

func TestAggregateRange(t *testing.T) {
	store := memstore.New()
	seedDelhi(t, store)
	a := newAggregator(t, store, time.Date(2024, 5, 2, 12, 0, 0, 0, ist(t)))

	got, err := a.AggregateRange(context.Background(), "Delhi", "2024-04-29", "2024-05-03")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDateNotElapsed))

	require.Len(t, got, 2)
	assert.Equal(t, "2024-04-30", got[0].Date)
	assert.Equal(t, 1, got[0].SampleCount)
	assert.Equal(t, "2024-05-01", got[1].Date)

	_, err = a.AggregateRange(context.Background(), "Delhi", "2024-05-03", "2024-05-01")
	require.Error(t, err)
}
