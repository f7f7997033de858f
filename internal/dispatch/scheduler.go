// Package dispatch runs the paced, quota-respecting send loop for one
// outreach job.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/jobs"
	"leadgen-engine/internal/quota"
)

// OutcomeRecorder is the persistence hook for send outcomes. Failures are
// logged, never fatal to the job.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, jobID string, o domain.Outcome) error
}

type Cadence struct {
	DelayMin time.Duration
	DelayMax time.Duration
}

type Scheduler struct {
	Sender   MessageSender
	Quota    *quota.Tracker
	Registry *jobs.Registry
	Recorder OutcomeRecorder

	// OnProgress fires after each lead's counters become poller-visible.
	OnProgress func(jobID string, sent, failed int)

	// Now and Sleep exist so tests can fake pacing. Nil means real time.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Run walks the lead list in order, rotating through the sender pool with
// skip-if-exhausted, and paces every send with a uniform random delay in
// [DelayMin, DelayMax], applied after failed sends too. Single-threaded
// per job; meant for its own goroutine.
func (s *Scheduler) Run(ctx context.Context, jobID string, leads []domain.Lead, pool []domain.SenderIdentity, subject, body string, cadence Cadence) {
	for _, id := range pool {
		s.Quota.SetLimit(id.Address, id.DailyLimit)
	}

	s.Registry.Mutate(jobID, func(j *jobs.Job) {
		j.Status = jobs.StatusRunning
		j.Message = "Starting to send emails..."
	})

	sent, failed := 0, 0
	poolIdx := 0

	for _, lead := range leads {
		if s.Registry.Stopped(jobID) || ctx.Err() != nil {
			s.finish(jobID, jobs.StatusStopped,
				fmt.Sprintf("Sending stopped: %d sent, %d failed", sent, failed))
			return
		}

		sender, ok := s.pickSender(pool, &poolIdx)
		if !ok {
			// Every identity is out of quota for today. Not fatal: the job
			// parks and the remaining leads stay untouched.
			s.finish(jobID, jobs.StatusPaused,
				fmt.Sprintf("Paused: all sender daily limits reached (%d sent, %d failed)", sent, failed))
			return
		}

		personalized := strings.ReplaceAll(body, "[Business Name]", lead.Name)

		err := s.Sender.Send(ctx, sender, lead.Email, subject, personalized)
		now := s.now().UTC()

		outcome := domain.Outcome{
			LeadID:    lead.ID,
			Recipient: lead.Email,
			Sender:    sender.Address,
		}
		if err != nil {
			failed++
			outcome.Status = domain.OutcomeFailed
			outcome.Error = err.Error()
			log.Printf("[dispatch] job=%s send failed to=%s from=%s err=%v", jobID, lead.Email, sender.Address, err)
		} else {
			sent++
			s.Quota.Increment(sender.Address, now)
			outcome.Status = domain.OutcomeSent
			outcome.SentAt = &now
		}

		if s.Recorder != nil {
			if rerr := s.Recorder.RecordOutcome(ctx, jobID, outcome); rerr != nil {
				log.Printf("[dispatch] job=%s record outcome err=%v", jobID, rerr)
			}
		}

		s.Registry.Mutate(jobID, func(j *jobs.Job) {
			j.Sent = sent
			j.Failed = failed
			j.Progress.Current = sent + failed
			j.Message = fmt.Sprintf("Sending emails... %d/%d sent", sent, len(leads))
		})
		if s.OnProgress != nil {
			s.OnProgress(jobID, sent, failed)
		}

		s.sleep(ctx, randomDelay(cadence))
	}

	s.finish(jobID, jobs.StatusCompleted,
		fmt.Sprintf("Campaign completed: %d sent, %d failed", sent, failed))
}

func (s *Scheduler) finish(jobID, status, msg string) {
	s.Registry.Mutate(jobID, func(j *jobs.Job) {
		j.Status = status
		j.Message = msg
	})
	log.Printf("[dispatch] job=%s %s", jobID, msg)
}

// pickSender advances round-robin from the current index until it finds an
// identity with quota left, trying the whole pool at most once. Strict
// rotation with skip-if-exhausted: identities with more remaining quota
// get no preference.
func (s *Scheduler) pickSender(pool []domain.SenderIdentity, idx *int) (domain.SenderIdentity, bool) {
	now := s.now()
	for tries := 0; tries < len(pool); tries++ {
		cand := pool[*idx%len(pool)]
		*idx++
		if s.Quota.Remaining(cand.Address, now) > 0 {
			return cand, true
		}
	}
	return domain.SenderIdentity{}, false
}

func randomDelay(c Cadence) time.Duration {
	if c.DelayMax <= c.DelayMin {
		return c.DelayMin
	}
	return c.DelayMin + time.Duration(rand.Int63n(int64(c.DelayMax-c.DelayMin)+1))
}
