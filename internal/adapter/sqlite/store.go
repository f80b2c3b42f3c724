// Package sqlite implements the reading store on SQLite using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	city        TEXT    NOT NULL,
	ts          INTEGER NOT NULL,
	temperature REAL    NOT NULL,
	feels_like  REAL    NOT NULL,
	condition   TEXT    NOT NULL,
	humidity    REAL
);
CREATE INDEX IF NOT EXISTS idx_readings_city_ts ON readings (city, ts);

CREATE TABLE IF NOT EXISTS daily_summaries (
	city               TEXT    NOT NULL,
	date               TEXT    NOT NULL,
	min_temp           REAL    NOT NULL,
	max_temp           REAL    NOT NULL,
	avg_temp           REAL    NOT NULL,
	dominant_condition TEXT    NOT NULL,
	sample_count       INTEGER NOT NULL,
	PRIMARY KEY (city, date)
);

CREATE TABLE IF NOT EXISTS alert_events (
	id           TEXT    PRIMARY KEY,
	rule_id      TEXT    NOT NULL,
	city         TEXT    NOT NULL,
	description  TEXT    NOT NULL DEFAULT '',
	reading      TEXT    NOT NULL,
	triggered_at INTEGER NOT NULL,
	dispatched   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_events_city_ts ON alert_events (city, triggered_at);
CREATE INDEX IF NOT EXISTS idx_alert_events_rule ON alert_events (rule_id);
`

// Store persists readings, daily summaries, and alert history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", domain.ErrStorage, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply schema: %w", domain.ErrStorage, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}

// AppendReading inserts r in a single statement, so a reading is either
// fully stored or absent.
func (s *Store) AppendReading(ctx context.Context, r domain.Reading) error {
	var humidity sql.NullFloat64
	if r.Humidity != nil {
		humidity = sql.NullFloat64{Float64: *r.Humidity, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (city, ts, temperature, feels_like, condition, humidity) VALUES (?, ?, ?, ?, ?, ?)`,
		r.City, r.Timestamp.UnixNano(), r.Temperature, r.FeelsLike, r.Condition, humidity,
	)
	if err != nil {
		return fmt.Errorf("%w: append reading: %w", domain.ErrStorage, err)
	}
	return nil
}

// LatestReading returns the newest reading for city.
func (s *Store) LatestReading(ctx context.Context, city string) (domain.Reading, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT city, ts, temperature, feels_like, condition, humidity
		   FROM readings WHERE city = ? ORDER BY ts DESC, id DESC LIMIT 1`, city)
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reading{}, false, nil
	}
	if err != nil {
		return domain.Reading{}, false, fmt.Errorf("%w: latest reading: %w", domain.ErrStorage, err)
	}
	return r, true, nil
}

// ReadingsInRange returns readings with from <= timestamp < to, oldest first.
func (s *Store) ReadingsInRange(ctx context.Context, city string, from, to time.Time) ([]domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT city, ts, temperature, feels_like, condition, humidity
		   FROM readings WHERE city = ? AND ts >= ? AND ts < ? ORDER BY ts ASC, id ASC`,
		city, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: query readings: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan reading: %w", domain.ErrStorage, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate readings: %w", domain.ErrStorage, err)
	}
	return out, nil
}

// UpsertDailySummary writes sum, replacing any row for the same city and date.
func (s *Store) UpsertDailySummary(ctx context.Context, sum domain.DailySummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_summaries (city, date, min_temp, max_temp, avg_temp, dominant_condition, sample_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (city, date) DO UPDATE SET
			min_temp = excluded.min_temp,
			max_temp = excluded.max_temp,
			avg_temp = excluded.avg_temp,
			dominant_condition = excluded.dominant_condition,
			sample_count = excluded.sample_count`,
		sum.City, sum.Date, sum.MinTemp, sum.MaxTemp, sum.AvgTemp, sum.DominantCondition, sum.SampleCount,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert daily summary: %w", domain.ErrStorage, err)
	}
	return nil
}

// DailySummary returns the summary for city on date.
func (s *Store) DailySummary(ctx context.Context, city, date string) (domain.DailySummary, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT city, date, min_temp, max_temp, avg_temp, dominant_condition, sample_count
		   FROM daily_summaries WHERE city = ? AND date = ?`, city, date)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailySummary{}, false, nil
	}
	if err != nil {
		return domain.DailySummary{}, false, fmt.Errorf("%w: daily summary: %w", domain.ErrStorage, err)
	}
	return sum, true, nil
}

// DailySummaries returns summaries for city with fromDate <= date <= toDate.
func (s *Store) DailySummaries(ctx context.Context, city, fromDate, toDate string) ([]domain.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT city, date, min_temp, max_temp, avg_temp, dominant_condition, sample_count
		   FROM daily_summaries WHERE city = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		city, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("%w: query daily summaries: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.DailySummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan daily summary: %w", domain.ErrStorage, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate daily summaries: %w", domain.ErrStorage, err)
	}
	return out, nil
}

// AppendAlertEvent records e. The reading snapshot is stored as JSON.
func (s *Store) AppendAlertEvent(ctx context.Context, e domain.AlertEvent) error {
	snapshot, err := json.Marshal(e.Reading)
	if err != nil {
		return fmt.Errorf("%w: encode reading snapshot: %w", domain.ErrStorage, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alert_events (id, rule_id, city, description, reading, triggered_at, dispatched)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RuleID, e.City, e.Description, string(snapshot), e.TriggeredAt.UnixNano(), e.Dispatched,
	)
	if err != nil {
		return fmt.Errorf("%w: append alert event: %w", domain.ErrStorage, err)
	}
	return nil
}

// RecentAlertEvents returns up to limit events for city, newest first.
func (s *Store) RecentAlertEvents(ctx context.Context, city string, limit int) ([]domain.AlertEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rule_id, city, description, reading, triggered_at, dispatched
		   FROM alert_events WHERE city = ? ORDER BY triggered_at DESC, rowid DESC LIMIT ?`,
		city, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query alert events: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.AlertEvent
	for rows.Next() {
		var (
			e        domain.AlertEvent
			snapshot string
			ts       int64
		)
		if err := rows.Scan(&e.ID, &e.RuleID, &e.City, &e.Description, &snapshot, &ts, &e.Dispatched); err != nil {
			return nil, fmt.Errorf("%w: scan alert event: %w", domain.ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(snapshot), &e.Reading); err != nil {
			return nil, fmt.Errorf("%w: decode reading snapshot: %w", domain.ErrStorage, err)
		}
		e.TriggeredAt = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate alert events: %w", domain.ErrStorage, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(sc scanner) (domain.Reading, error) {
	var (
		r        domain.Reading
		ts       int64
		humidity sql.NullFloat64
	)
	if err := sc.Scan(&r.City, &ts, &r.Temperature, &r.FeelsLike, &r.Condition, &humidity); err != nil {
		return domain.Reading{}, err
	}
	r.Timestamp = time.Unix(0, ts).UTC()
	if humidity.Valid {
		r.Humidity = domain.Float(humidity.Float64)
	}
	return r, nil
}

func scanSummary(sc scanner) (domain.DailySummary, error) {
	var sum domain.DailySummary
	err := sc.Scan(&sum.City, &sum.Date, &sum.MinTemp, &sum.MaxTemp, &sum.AvgTemp, &sum.DominantCondition, &sum.SampleCount)
	return sum, err
}
