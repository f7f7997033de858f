// Package followup re-contacts leads that never answered the first
// outreach email. A cron-driven sweep sends due follow-ups through the
// same sender/quota path as dispatch; an IMAP scan retires follow-ups
// whose lead replied.
package followup

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/quota"
	"leadgen-engine/internal/store"
)

type Opts struct {
	Days      int // wait between touches
	MaxCount  int // follow-ups per lead, not counting the initial send
	SendDelay time.Duration
}

func (o Opts) withDefaults() Opts {
	if o.Days <= 0 {
		o.Days = 3
	}
	if o.MaxCount <= 0 {
		o.MaxCount = 2 // 3 emails total including the initial one
	}
	if o.SendDelay <= 0 {
		o.SendDelay = 2 * time.Second
	}
	return o
}

type Sweeper struct {
	Store  *store.Store
	Sender dispatch.MessageSender
	Quota  *quota.Tracker

	// IdentityFor maps a stored sender address back to its configured
	// identity (SMTP host, daily limit). Unknown addresses are skipped.
	IdentityFor func(address string) (domain.SenderIdentity, bool)

	Opts Opts
}

// Track registers a follow-up for a lead right after the initial send
// succeeded.
func (s *Sweeper) Track(ctx context.Context, lead domain.Lead, sender, subject, body string, now time.Time) error {
	opts := s.Opts.withDefaults()
	_, err := s.Store.CreateFollowUp(ctx, store.FollowUp{
		LeadID:         lead.ID,
		LeadEmail:      lead.Email,
		LeadName:       lead.Name,
		Sender:         sender,
		Subject:        subject,
		Body:           body,
		FirstSentAt:    now,
		LastSentAt:     now,
		NextFollowUpAt: now.AddDate(0, 0, opts.Days),
	})
	return err
}

// SweepOnce sends every due follow-up. Per-item failures are logged and
// skipped; the sweep itself only errors when the due query fails.
func (s *Sweeper) SweepOnce(ctx context.Context) (sent int, err error) {
	opts := s.Opts.withDefaults()
	now := time.Now().UTC()

	due, err := s.Store.DueFollowUps(ctx, now, opts.MaxCount)
	if err != nil {
		return 0, fmt.Errorf("list due follow-ups: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	log.Printf("[followup] %d due", len(due))

	for _, f := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		identity, ok := s.IdentityFor(f.Sender)
		if !ok {
			log.Printf("[followup] id=%d sender %s no longer configured, cancelling", f.ID, f.Sender)
			_ = s.Store.SetFollowUpStatus(ctx, f.ID, store.FollowUpCancelled)
			continue
		}
		if s.Quota.Remaining(identity.Address, now) <= 0 {
			// quota resets tomorrow; the row stays due and gets retried
			continue
		}

		subject := fmt.Sprintf("Follow-up #%d: %s", f.FollowUpCount+1, f.Subject)
		if err := s.Sender.Send(ctx, identity, f.LeadEmail, subject, f.Body); err != nil {
			log.Printf("[followup] id=%d send failed: %v", f.ID, err)
			continue
		}

		s.Quota.Increment(identity.Address, now)
		sent++

		if f.FollowUpCount+1 >= opts.MaxCount {
			_ = s.Store.SetFollowUpStatus(ctx, f.ID, store.FollowUpCompleted)
		} else if err := s.Store.BumpFollowUp(ctx, f.ID, now, now.AddDate(0, 0, opts.Days)); err != nil {
			log.Printf("[followup] id=%d bump failed: %v", f.ID, err)
		}

		sleepCtx(ctx, opts.SendDelay)
	}
	return sent, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
