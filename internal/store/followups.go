package store

import (
	"context"
	"time"
)

type FollowUp struct {
	ID             int64     `json:"id"`
	LeadID         int       `json:"lead_id"`
	LeadEmail      string    `json:"lead_email"`
	LeadName       string    `json:"lead_name"`
	Sender         string    `json:"sender"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	FollowUpCount  int       `json:"follow_up_count"`
	Status         string    `json:"status"` // pending / completed / responded / cancelled
	FirstSentAt    time.Time `json:"first_sent_at"`
	LastSentAt     time.Time `json:"last_sent_at"`
	NextFollowUpAt time.Time `json:"next_follow_up_at"`
}

const (
	FollowUpPending   = "pending"
	FollowUpCompleted = "completed"
	FollowUpResponded = "responded"
	FollowUpCancelled = "cancelled"
)

func (s *Store) CreateFollowUp(ctx context.Context, f FollowUp) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.DB.ExecContext(ctx, `
INSERT INTO follow_ups(lead_id, lead_email, lead_name, sender, subject, body,
  follow_up_count, status, first_sent_at, last_sent_at, next_follow_up_at, created_at, updated_at)
VALUES(?,?,?,?,?,?,0,?,?,?,?,?,?);`,
		f.LeadID, f.LeadEmail, f.LeadName, f.Sender, f.Subject, f.Body,
		FollowUpPending,
		f.FirstSentAt.UTC().Format(time.RFC3339),
		f.LastSentAt.UTC().Format(time.RFC3339),
		f.NextFollowUpAt.UTC().Format(time.RFC3339),
		now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DueFollowUps returns pending follow-ups whose next date has passed and
// whose count is still below maxCount.
func (s *Store) DueFollowUps(ctx context.Context, now time.Time, maxCount int) ([]FollowUp, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, lead_id, lead_email, lead_name, sender, subject, body,
       follow_up_count, status, first_sent_at, last_sent_at, next_follow_up_at
FROM follow_ups
WHERE status = ? AND next_follow_up_at <= ? AND follow_up_count < ?
ORDER BY next_follow_up_at;`,
		FollowUpPending, now.UTC().Format(time.RFC3339), maxCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FollowUp
	for rows.Next() {
		var f FollowUp
		var first, last, next string
		if err := rows.Scan(&f.ID, &f.LeadID, &f.LeadEmail, &f.LeadName, &f.Sender,
			&f.Subject, &f.Body, &f.FollowUpCount, &f.Status, &first, &last, &next); err != nil {
			return nil, err
		}
		f.FirstSentAt, _ = time.Parse(time.RFC3339, first)
		f.LastSentAt, _ = time.Parse(time.RFC3339, last)
		f.NextFollowUpAt, _ = time.Parse(time.RFC3339, next)
		out = append(out, f)
	}
	return out, rows.Err()
}

// BumpFollowUp records one follow-up send: count+1, dates advanced.
func (s *Store) BumpFollowUp(ctx context.Context, id int64, now, next time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE follow_ups
SET follow_up_count = follow_up_count + 1,
    last_sent_at = ?,
    next_follow_up_at = ?,
    updated_at = ?
WHERE id = ?;`,
		now.UTC().Format(time.RFC3339), next.UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339), id)
	return err
}

func (s *Store) SetFollowUpStatus(ctx context.Context, id int64, status string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE follow_ups SET status = ?, updated_at = ? WHERE id = ?;`,
		status, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// PendingFollowUps returns every pending row regardless of due date; reply
// detection matches inbox senders against these.
func (s *Store) PendingFollowUps(ctx context.Context) ([]FollowUp, error) {
	return s.DueFollowUps(ctx, time.Now().AddDate(1, 0, 0), 1<<30)
}
