// Package memstore is a concurrency-safe in-memory reading store, used for
// STORE_DRIVER=memory and in tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

type summaryKey struct {
	city string
	date string
}

// Store keeps readings per city in timestamp order.
type Store struct {
	mu sync.RWMutex

	readings  map[string][]domain.Reading
	summaries map[summaryKey]domain.DailySummary
	alerts    map[string][]domain.AlertEvent
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		readings:  make(map[string][]domain.Reading),
		summaries: make(map[summaryKey]domain.DailySummary),
		alerts:    make(map[string][]domain.AlertEvent),
	}
}

// AppendReading inserts r keeping the city's history sorted by timestamp.
// Readings with equal timestamps keep insertion order.
func (s *Store) AppendReading(ctx context.Context, r domain.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.readings[r.City]
	i := sort.Search(len(history), func(i int) bool {
		return history[i].Timestamp.After(r.Timestamp)
	})
	history = append(history, domain.Reading{})
	copy(history[i+1:], history[i:])
	history[i] = cloneReading(r)
	s.readings[r.City] = history
	return nil
}

// LatestReading returns the newest reading for city.
func (s *Store) LatestReading(_ context.Context, city string) (domain.Reading, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.readings[city]
	if len(history) == 0 {
		return domain.Reading{}, false, nil
	}
	return cloneReading(history[len(history)-1]), true, nil
}

// ReadingsInRange returns readings with from <= timestamp < to, oldest first.
func (s *Store) ReadingsInRange(_ context.Context, city string, from, to time.Time) ([]domain.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.readings[city]
	lo := sort.Search(len(history), func(i int) bool { return !history[i].Timestamp.Before(from) })
	hi := sort.Search(len(history), func(i int) bool { return !history[i].Timestamp.Before(to) })
	if lo >= hi {
		return nil, nil
	}
	out := make([]domain.Reading, 0, hi-lo)
	for _, r := range history[lo:hi] {
		out = append(out, cloneReading(r))
	}
	return out, nil
}

// UpsertDailySummary stores sum, replacing any summary for the same city and date.
func (s *Store) UpsertDailySummary(ctx context.Context, sum domain.DailySummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summaryKey{city: sum.City, date: sum.Date}] = sum
	return nil
}

// DailySummary returns the stored summary for city on date.
func (s *Store) DailySummary(_ context.Context, city, date string) (domain.DailySummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[summaryKey{city: city, date: date}]
	return sum, ok, nil
}

// DailySummaries returns summaries for city with fromDate <= date <= toDate,
// in date order.
func (s *Store) DailySummaries(_ context.Context, city, fromDate, toDate string) ([]domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DailySummary
	for k, sum := range s.summaries {
		if k.city == city && k.date >= fromDate && k.date <= toDate {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// AppendAlertEvent records e in the city's alert history.
func (s *Store) AppendAlertEvent(ctx context.Context, e domain.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Reading = cloneReading(e.Reading)
	s.alerts[e.City] = append(s.alerts[e.City], e)
	return nil
}

// RecentAlertEvents returns up to limit events for city, newest first.
func (s *Store) RecentAlertEvents(_ context.Context, city string, limit int) ([]domain.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Reverse insertion order first so events sharing a timestamp come
	// back latest-appended first.
	events := s.alerts[city]
	out := make([]domain.AlertEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		out = append(out, events[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func cloneReading(r domain.Reading) domain.Reading {
	if r.Humidity != nil {
		r.Humidity = domain.Float(*r.Humidity)
	}
	return r
}
