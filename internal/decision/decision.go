// Package decision keeps the most recent N per-pair, per-cycle
// combined-signal outcomes for dashboard consumption: a bounded ring,
// persisted atomically, distinct from the trade log (which is
// unbounded and append-only).
package decision

import (
	"sync"
	"time"

	"github.com/riverforge/combine-trader/internal/combiner"
	"github.com/riverforge/combine-trader/internal/persist"
)

// Record is one pair's outcome for one cycle: the combined signal
// plus whether it was executed. OrderID holds whatever id the caller
// passes to FromCombined; the cycle orchestrator passes none, so the
// records it writes carry no order id.
type Record struct {
	CycleID      string            `json:"cycle_id"`
	TimestampUTC time.Time         `json:"timestamp_utc"`
	Pair         string            `json:"pair"`
	Action       string            `json:"action"`
	Confidence   float64           `json:"confidence"`
	Regime       string            `json:"regime"`
	Score        float64           `json:"score,omitempty"`
	Executed     bool              `json:"executed"`
	Suppressed   bool              `json:"suppressed,omitempty"`
	SkipReason   string            `json:"skip_reason,omitempty"`
	OrderID      string            `json:"order_id,omitempty"`
}

// Ring is a fixed-capacity, oldest-first ring buffer of Records,
// persisted to disk on every append.
type Ring struct {
	mu       sync.Mutex
	path     string
	capacity int
	records  []Record
}

func LoadRing(path string, capacity int) (*Ring, error) {
	var records []Record
	if persist.Exists(path) {
		if err := persist.ReadJSON(path, &records); err != nil {
			return nil, err
		}
	}
	return &Ring{path: path, capacity: capacity, records: records}, nil
}

// Append adds a record, trimming the oldest entries beyond capacity,
// and persists the result.
func (r *Ring) Append(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)
	if len(r.records) > r.capacity {
		r.records = r.records[len(r.records)-r.capacity:]
	}
	return persist.WriteJSONAtomic(r.path, r.records)
}

func (r *Ring) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// FromCombined builds a Record from a combiner.Combined outcome.
func FromCombined(cycleID string, c combiner.Combined, now time.Time, executed, suppressed bool, skipReason, orderID string) Record {
	return Record{
		CycleID:      cycleID,
		TimestampUTC: now.UTC(),
		Pair:         c.Pair,
		Action:       string(c.Action),
		Confidence:   c.Confidence,
		Regime:       string(c.Regime),
		Executed:     executed,
		Suppressed:   suppressed,
		SkipReason:   skipReason,
		OrderID:      orderID,
	}
}
