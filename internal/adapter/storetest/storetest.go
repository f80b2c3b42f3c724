// Package storetest holds behavior tests shared by every reading store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// Store is the full reading store contract.
type Store interface {
	AppendReading(ctx context.Context, r domain.Reading) error
	LatestReading(ctx context.Context, city string) (domain.Reading, bool, error)
	ReadingsInRange(ctx context.Context, city string, from, to time.Time) ([]domain.Reading, error)
	UpsertDailySummary(ctx context.Context, s domain.DailySummary) error
	DailySummary(ctx context.Context, city, date string) (domain.DailySummary, bool, error)
	DailySummaries(ctx context.Context, city, fromDate, toDate string) ([]domain.DailySummary, error)
	AppendAlertEvent(ctx context.Context, e domain.AlertEvent) error
	RecentAlertEvents(ctx context.Context, city string, limit int) ([]domain.AlertEvent, error)
	Close() error
}

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// Run exercises a fresh store from newStore in each subtest.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("LatestReading", func(t *testing.T) { testLatest(t, newStore(t)) })
	t.Run("ReadingsInRange", func(t *testing.T) { testRange(t, newStore(t)) })
	t.Run("OptionalHumidity", func(t *testing.T) { testHumidity(t, newStore(t)) })
	t.Run("DailySummaryUpsert", func(t *testing.T) { testSummaries(t, newStore(t)) })
	t.Run("AlertEvents", func(t *testing.T) { testAlerts(t, newStore(t)) })
	t.Run("AlertEventsSameInstant", func(t *testing.T) { testAlertsSameInstant(t, newStore(t)) })
	t.Run("ConcurrentAppendAndRead", func(t *testing.T) { testConcurrent(t, newStore(t)) })
}

func reading(city string, offset time.Duration, temp float64) domain.Reading {
	return domain.Reading{
		City:        city,
		Timestamp:   base.Add(offset),
		Temperature: temp,
		FeelsLike:   temp + 1,
		Condition:   "Clear",
	}
}

func testLatest(t *testing.T, s Store) {
	ctx := context.Background()

	_, ok, err := s.LatestReading(ctx, "Delhi")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AppendReading(ctx, reading("Delhi", 2*time.Hour, 30)))
	require.NoError(t, s.AppendReading(ctx, reading("Delhi", time.Hour, 20)))
	require.NoError(t, s.AppendReading(ctx, reading("Mumbai", 3*time.Hour, 25)))

	got, ok, err := s.LatestReading(ctx, "Delhi")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 30, got.Temperature, 1e-9)
	assert.True(t, got.Timestamp.Equal(base.Add(2*time.Hour)))
}

func testRange(t *testing.T, s Store) {
	ctx := context.Background()
	for i := 5; i >= 0; i-- {
		require.NoError(t, s.AppendReading(ctx, reading("Delhi", time.Duration(i)*time.Hour, float64(i))))
	}
	require.NoError(t, s.AppendReading(ctx, reading("Chennai", time.Hour, 99)))

	got, err := s.ReadingsInRange(ctx, "Delhi", base.Add(time.Hour), base.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3, "range is half-open")
	for i, r := range got {
		assert.InDelta(t, float64(i+1), r.Temperature, 1e-9)
		assert.Equal(t, "Delhi", r.City)
	}

	empty, err := s.ReadingsInRange(ctx, "Delhi", base.Add(24*time.Hour), base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testHumidity(t *testing.T, s Store) {
	ctx := context.Background()

	dry := reading("Delhi", 0, 40)
	humid := reading("Delhi", time.Minute, 30)
	humid.Humidity = domain.Float(82)
	require.NoError(t, s.AppendReading(ctx, dry))
	require.NoError(t, s.AppendReading(ctx, humid))

	got, err := s.ReadingsInRange(ctx, "Delhi", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Humidity)
	require.NotNil(t, got[1].Humidity)
	assert.InDelta(t, 82, *got[1].Humidity, 1e-9)
	assert.InDelta(t, 31, got[1].FeelsLike, 1e-9)
	assert.Equal(t, "Clear", got[1].Condition)
}

func testSummaries(t *testing.T, s Store) {
	ctx := context.Background()

	_, ok, err := s.DailySummary(ctx, "Delhi", "2024-05-01")
	require.NoError(t, err)
	assert.False(t, ok)

	first := domain.DailySummary{City: "Delhi", Date: "2024-05-01", MinTemp: 30, MaxTemp: 40, AvgTemp: 35, DominantCondition: "Clear", SampleCount: 3}
	require.NoError(t, s.UpsertDailySummary(ctx, first))

	second := first
	second.SampleCount = 4
	second.DominantCondition = "Haze"
	require.NoError(t, s.UpsertDailySummary(ctx, second))

	got, ok, err := s.DailySummary(ctx, "Delhi", "2024-05-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, got)

	for _, d := range []string{"2024-04-28", "2024-04-30", "2024-05-03"} {
		other := first
		other.Date = d
		require.NoError(t, s.UpsertDailySummary(ctx, other))
	}
	list, err := s.DailySummaries(ctx, "Delhi", "2024-04-29", "2024-05-02")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-04-30", list[0].Date)
	assert.Equal(t, "2024-05-01", list[1].Date)
}

func testAlerts(t *testing.T, s Store) {
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.AppendAlertEvent(ctx, domain.AlertEvent{
			ID:          fmt.Sprintf("evt-%d", i),
			RuleID:      "heat",
			City:        "Delhi",
			Description: "Heat",
			Reading:     reading("Delhi", time.Duration(i)*time.Minute, 41),
			TriggeredAt: base.Add(time.Duration(i) * time.Minute),
			Dispatched:  i%2 == 0,
		}))
	}
	require.NoError(t, s.AppendAlertEvent(ctx, domain.AlertEvent{ID: "other", RuleID: "heat", City: "Mumbai", TriggeredAt: base}))

	got, err := s.RecentAlertEvents(ctx, "Delhi", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "evt-4", got[0].ID)
	assert.Equal(t, "evt-3", got[1].ID)
	assert.Equal(t, "evt-2", got[2].ID)
	assert.True(t, got[0].Dispatched)
	assert.False(t, got[1].Dispatched)
	assert.Equal(t, "heat", got[0].RuleID)
	assert.Equal(t, "Heat", got[0].Description)
	assert.InDelta(t, 41, got[0].Reading.Temperature, 1e-9)
	assert.True(t, got[0].TriggeredAt.Equal(base.Add(4*time.Minute)))

	none, err := s.RecentAlertEvents(ctx, "Kolkata", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testAlertsSameInstant(t *testing.T, s Store) {
	ctx := context.Background()
	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.AppendAlertEvent(ctx, domain.AlertEvent{
			ID: id, RuleID: "heat", City: "Delhi", TriggeredAt: base,
		}))
	}

	got, err := s.RecentAlertEvents(ctx, "Delhi", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
}

func testConcurrent(t *testing.T, s Store) {
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 25 {
				assert.NoError(t, s.AppendReading(ctx, reading("Delhi", time.Duration(w*100+i)*time.Second, 30)))
			}
		}()
		go func() {
			defer wg.Done()
			for range 25 {
				_, err := s.ReadingsInRange(ctx, "Delhi", base, base.Add(time.Hour))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := s.ReadingsInRange(ctx, "Delhi", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 100)
}
