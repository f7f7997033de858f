// Package quota tracks per-sender daily send counts.
//
// Counts live in calendar-day buckets keyed by "2006-01-02". Reset is
// lazy: Remaining only ever looks at today's bucket, so stale days just
// stop mattering when the date rolls over.
package quota

import (
	"sync"
	"time"
)

type Tracker struct {
	mu     sync.Mutex
	limits map[string]int            // sender -> daily cap
	sent   map[string]map[string]int // sender -> day -> count
}

func NewTracker() *Tracker {
	return &Tracker{
		limits: make(map[string]int),
		sent:   make(map[string]map[string]int),
	}
}

func DayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// SetLimit registers (or updates) a sender's daily cap.
func (t *Tracker) SetLimit(sender string, limit int) {
	t.mu.Lock()
	t.limits[sender] = limit
	t.mu.Unlock()
}

// Remaining reports how many sends the sender has left for the given day.
// Never negative.
func (t *Tracker) Remaining(sender string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	limit := t.limits[sender]
	used := 0
	if days, ok := t.sent[sender]; ok {
		used = days[DayKey(now)]
	}
	if rem := limit - used; rem > 0 {
		return rem
	}
	return 0
}

// Increment records one confirmed send. Call only after the send succeeded;
// failed attempts do not consume quota.
func (t *Tracker) Increment(sender string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	days, ok := t.sent[sender]
	if !ok {
		days = make(map[string]int)
		t.sent[sender] = days
	}
	days[DayKey(now)]++
}
