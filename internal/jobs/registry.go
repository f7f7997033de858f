// Package jobs holds the in-memory registry of background work units.
//
// One worker goroutine owns each job and mutates it through Mutate; any
// number of HTTP pollers read consistent copies through Snapshot. State is
// volatile: nothing here survives a restart.
package jobs

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"leadgen-engine/internal/domain"
)

const (
	KindSearch   = "search"
	KindDispatch = "dispatch"
)

const (
	StatusPending    = "pending"
	StatusRunning    = "running"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusPartial    = "partial"
	StatusStopped    = "stopped"
	StatusNotStarted = "not_started"
)

type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

type Job struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Status   string        `json:"status"`
	Progress Progress      `json:"progress"`
	Sent     int           `json:"sent"`
	Failed   int           `json:"failed"`
	Message  string        `json:"message"`
	Results  []domain.Lead `json:"results,omitempty"`

	StartedAt time.Time `json:"started_at"`

	// stopRequested is the cooperative cancellation flag. Workers check it
	// at the top of each iteration; nothing is preempted mid-send.
	stopRequested bool
}

func (j *Job) StopRequested() bool { return j.stopRequested }

type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// NewID returns an opaque job id with the given prefix ("search"/"send").
func NewID(prefix string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return prefix + "_" + hex.EncodeToString(b[:])
}

// Create registers a fresh pending job and returns its id.
func (r *Registry) Create(kind string, total int) string {
	id := NewID(kind)
	r.mu.Lock()
	r.jobs[id] = &Job{
		ID:        id,
		Kind:      kind,
		Status:    StatusPending,
		Progress:  Progress{Total: total},
		StartedAt: time.Now().UTC(),
	}
	r.mu.Unlock()
	return id
}

// Snapshot returns a deep copy of the job so pollers never observe a
// half-written record. Unknown ids report a not_started placeholder with
// ok=false rather than an error.
func (r *Registry) Snapshot(id string) (Job, bool) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.RUnlock()
		return Job{ID: id, Status: StatusNotStarted, Message: "job not started"}, false
	}
	cp := *j
	if j.Results != nil {
		cp.Results = make([]domain.Lead, len(j.Results))
		copy(cp.Results, j.Results)
		for i := range cp.Results {
			if se := j.Results[i].ScrapedEmails; se != nil {
				cp.Results[i].ScrapedEmails = append([]domain.ScrapedEmail(nil), se...)
			}
		}
	}
	r.mu.RUnlock()
	return cp, true
}

// Mutate applies fn to the job under the registry lock. The producing
// worker is the only caller for a given running job.
func (r *Registry) Mutate(id string, fn func(*Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false
	}
	fn(j)
	return true
}

// Stop raises the job's cooperative stop flag.
func (r *Registry) Stop(id string) bool {
	return r.Mutate(id, func(j *Job) { j.stopRequested = true })
}

// Stopped reports whether a stop was requested for the job.
func (r *Registry) Stopped(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return ok && j.stopRequested
}
