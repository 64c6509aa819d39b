// Package cooldown suppresses immediate reversal or re-entry on a
// pair within a window following an executed trade: a mutex-guarded
// record/query/reset state machine keyed by pair.
package cooldown

import (
	"sync"
	"time"

	"github.com/riverforge/combine-trader/internal/strategy"
)

// Config parameterizes the throttle.
type Config struct {
	Window                time.Duration // default 30 minutes
	SameSideStackDelta     float64       // added to the combiner's action threshold (default 15)
}

func DefaultConfig() Config {
	return Config{Window: 30 * time.Minute, SameSideStackDelta: 15}
}

type entry struct {
	at   time.Time
	side strategy.Action
}

// Throttle tracks the most recent executed trade per pair.
type Throttle struct {
	mu      sync.RWMutex
	cfg     Config
	entries map[string]entry
}

func New(cfg Config) *Throttle {
	return &Throttle{cfg: cfg, entries: make(map[string]entry)}
}

// Record marks pair as having just executed a trade on the given
// side, starting its cooldown window.
func (t *Throttle) Record(pair string, side strategy.Action, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[pair] = entry{at: at, side: side}
}

// Suppressed reports whether a candidate signal on pair must be
// suppressed given the cooldown state: the opposite side is always
// suppressed within the window; the same side is suppressed unless
// confidence clears actionThreshold+SameSideStackDelta.
func (t *Throttle) Suppressed(pair string, side strategy.Action, confidence, actionThreshold float64, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[pair]
	if !ok {
		return false
	}
	if now.Sub(e.at) >= t.cfg.Window {
		return false
	}
	if side != e.side {
		return true
	}
	return confidence < actionThreshold+t.cfg.SameSideStackDelta
}

// Clear removes cooldown state for a pair (e.g. on a performance
// reset).
func (t *Throttle) Clear(pair string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, pair)
}
