package quota

import (
	"sync"
	"testing"
	"time"
)

func TestRemaining_DrainsToZero(t *testing.T) {
	tr := NewTracker()
	tr.SetLimit("a@example.org", 40)

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		if tr.Remaining("a@example.org", day) <= 0 {
			t.Fatalf("quota exhausted early at %d", i)
		}
		tr.Increment("a@example.org", day)
	}
	if got := tr.Remaining("a@example.org", day); got != 0 {
		t.Errorf("remaining after 40 sends: got %d, want 0", got)
	}

	// one more increment must not push remaining negative
	tr.Increment("a@example.org", day)
	if got := tr.Remaining("a@example.org", day); got != 0 {
		t.Errorf("remaining floor: got %d, want 0", got)
	}
}

func TestRemaining_ResetsOnDateRollover(t *testing.T) {
	tr := NewTracker()
	tr.SetLimit("a@example.org", 40)

	day := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		tr.Increment("a@example.org", day)
	}
	if got := tr.Remaining("a@example.org", day); got != 0 {
		t.Fatalf("remaining before rollover: got %d, want 0", got)
	}

	next := day.Add(time.Hour) // past midnight UTC
	if got := tr.Remaining("a@example.org", next); got != 40 {
		t.Errorf("remaining after rollover: got %d, want 40", got)
	}
}

func TestRemaining_UnknownSenderIsZero(t *testing.T) {
	tr := NewTracker()
	if got := tr.Remaining("nobody@example.org", time.Now()); got != 0 {
		t.Errorf("unknown sender remaining: got %d, want 0", got)
	}
}

func TestIncrement_ConcurrentCallersDoNotLoseUpdates(t *testing.T) {
	tr := NewTracker()
	tr.SetLimit("a@example.org", 1000)
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.Increment("a@example.org", day)
			}
		}()
	}
	wg.Wait()

	if got := tr.Remaining("a@example.org", day); got != 500 {
		t.Errorf("remaining after 500 concurrent increments: got %d, want 500", got)
	}
}
