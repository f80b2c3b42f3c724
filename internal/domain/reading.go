package domain

import (
	"fmt"
	"time"
)

// Reading is one normalized weather observation for a city.
type Reading struct {
	City        string    `json:"city"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"` // °C
	FeelsLike   float64   `json:"feels_like"`  // °C
	Condition   string    `json:"condition"`   // provider group, e.g. "Clear", "Rain", "Haze"
	Humidity    *float64  `json:"humidity,omitempty"`
}

// Validate reports whether the reading carries every required field.
func (r Reading) Validate() error {
	if r.City == "" {
		return fmt.Errorf("%w: empty city", ErrInvalidReading)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReading)
	}
	if r.Condition == "" {
		return fmt.Errorf("%w: missing condition", ErrInvalidReading)
	}
	return nil
}

// numeric returns the value of a numeric field and whether the reading has it.
func (r Reading) numeric(f Field) (float64, bool) {
	switch f {
	case FieldTemperature:
		return r.Temperature, true
	case FieldFeelsLike:
		return r.FeelsLike, true
	case FieldHumidity:
		if r.Humidity == nil {
			return 0, false
		}
		return *r.Humidity, true
	default:
		return 0, false
	}
}

// Float returns a pointer to v, for optional reading fields.
func Float(v float64) *float64 {
	return &v
}

// DailySummary is the per-city, per-day rollup of stored readings.
type DailySummary struct {
	City              string  `json:"city"`
	Date              string  `json:"date"` // YYYY-MM-DD in the monitor's time zone
	MinTemp           float64 `json:"min_temp"`
	MaxTemp           float64 `json:"max_temp"`
	AvgTemp           float64 `json:"avg_temp"`
	DominantCondition string  `json:"dominant_condition"`
	SampleCount       int     `json:"sample_count"`
}

// AlertRule is a configured condition tree for one city.
type AlertRule struct {
	ID          string
	City        string
	Description string
	Condition   Node
	Cooldown    time.Duration

	// ConsecutiveBreaches is how many matching readings in a row are needed
	// before the rule counts as triggered. Values below 1 mean 1.
	ConsecutiveBreaches int
}

// RequiredStreak returns the number of consecutive matches that trigger the rule.
func (r AlertRule) RequiredStreak() int {
	if r.ConsecutiveBreaches < 1 {
		return 1
	}
	return r.ConsecutiveBreaches
}

// AlertEvent records that a rule fired for a city. Dispatched is the
// deduplicator's decision and is fixed at creation; delivery outcome is not
// tracked.
type AlertEvent struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"rule_id"`
	City        string    `json:"city"`
	Description string    `json:"description,omitempty"`
	Reading     Reading   `json:"reading"`
	TriggeredAt time.Time `json:"triggered_at"`
	Dispatched  bool      `json:"dispatched"`
}

// Message renders a human-readable alert line with temperatures in unit.
func (e AlertEvent) Message(unit TemperatureUnit) string {
	what := e.Description
	if what == "" {
		what = "rule " + e.RuleID + " triggered"
	}
	return fmt.Sprintf("Weather alert for %s: %s. Current temperature %s (feels like %s), condition %s.",
		e.City, what,
		FormatTemperature(e.Reading.Temperature, unit),
		FormatTemperature(e.Reading.FeelsLike, unit),
		e.Reading.Condition,
	)
}
