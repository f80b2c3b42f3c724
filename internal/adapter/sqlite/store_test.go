package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-monitor-service/internal/adapter/storetest"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "weather.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return openStore(t) })
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.db")
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC)

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.AppendReading(ctx, domain.Reading{City: "Delhi", Timestamp: ts, Temperature: 40.25, Condition: "Haze"}))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.LatestReading(ctx, "Delhi")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Timestamp.Equal(ts))
	assert.InDelta(t, 40.25, got.Temperature, 1e-9)
	require.NoError(t, s.Ping(ctx))
}

func TestStore_ErrorsWrapStorage(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Close())

	err := s.AppendReading(context.Background(), domain.Reading{City: "Delhi", Timestamp: time.Now()})
	require.ErrorIs(t, err, domain.ErrStorage)

	_, _, err = s.LatestReading(context.Background(), "Delhi")
	require.ErrorIs(t, err, domain.ErrStorage)
}
