// Package alert turns rule evaluations into alert events: the Deduplicator
// decides when a rule fires and whether the fire is dispatched, and the
// Dispatcher persists the event and fans it out to notification sinks.
package alert

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// Outcome is the Deduplicator's verdict for one evaluation.
type Outcome struct {
	// Fired is true only on the evaluation where the rule's derived state
	// goes from untriggered to triggered.
	Fired bool
	// Dispatch is true when a fire is outside the cooldown window.
	Dispatch bool
	// At is the decision time. It becomes last-fired when Dispatch is true.
	At time.Time
}

type key struct {
	ruleID string
	city   string
}

type keyState struct {
	mu        sync.Mutex
	triggered bool
	streak    int
	lastFired time.Time
	hasFired  bool
}

// Deduplicator tracks edge-trigger and cooldown state per (rule, city).
// Each key has its own lock, so unrelated keys never contend.
type Deduplicator struct {
	clock  clockwork.Clock
	states sync.Map // key -> *keyState
}

// NewDeduplicator creates a Deduplicator. A nil clock means the wall clock.
func NewDeduplicator(clock clockwork.Clock) *Deduplicator {
	return &Deduplicator{clock: domain.ClockOrReal(clock)}
}

// Observe records whether rule matched a reading for city and reports
// whether that produced a fire and whether the fire should be dispatched.
func (d *Deduplicator) Observe(rule domain.AlertRule, city string, matched bool) Outcome {
	st := d.state(key{ruleID: rule.ID, city: city})

	st.mu.Lock()
	defer st.mu.Unlock()

	if matched {
		st.streak++
	} else {
		st.streak = 0
	}

	triggered := st.streak >= rule.RequiredStreak()
	fired := triggered && !st.triggered
	st.triggered = triggered
	if !fired {
		return Outcome{}
	}

	now := d.clock.Now()
	if st.hasFired && now.Sub(st.lastFired) < rule.Cooldown {
		return Outcome{Fired: true, At: now}
	}
	st.lastFired = now
	st.hasFired = true
	return Outcome{Fired: true, Dispatch: true, At: now}
}

func (d *Deduplicator) state(k key) *keyState {
	if v, ok := d.states.Load(k); ok {
		return v.(*keyState)
	}
	v, _ := d.states.LoadOrStore(k, &keyState{})
	return v.(*keyState)
}
