package memstore_test

import (
	"context"
	"testing"

	"github.com/couchcryptid/weather-monitor-service/internal/adapter/memstore"
	"github.com/couchcryptid/weather-monitor-service/internal/adapter/storetest"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) storetest.Store { return memstore.New() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	r := domain.Reading{City: "Delhi", Humidity: domain.Float(50)}
	require.NoError(t, s.AppendReading(ctx, r))
	*r.Humidity = 99

	got, ok, err := s.LatestReading(ctx, "Delhi")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 50, *got.Humidity, 1e-9)
}

func TestStore_CanceledContext(t *testing.T) {
	s := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, s.AppendReading(ctx, domain.Reading{City: "Delhi"}))
	_, ok, err := s.LatestReading(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.False(t, ok, "a canceled append writes nothing")
}
