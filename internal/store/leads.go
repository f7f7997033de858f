package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"leadgen-engine/internal/domain"
)

// Store is the persistence capability handed to workers. Writes are
// fire-and-forget from the caller's point of view: an error here gets
// logged upstream and never aborts an in-memory job.
type Store struct {
	DB *sql.DB
}

func (s *Store) RecordLead(ctx context.Context, jobID string, lead domain.Lead) error {
	emailsJSON, _ := json.Marshal(lead.ScrapedEmails)
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO leads(job_id, ordinal, name, email, phone, website, address, status, external_url, category, scraped_emails, created_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?);`,
		jobID, lead.ID, lead.Name, lead.Email, lead.Phone, lead.Website,
		lead.Address, lead.Status, lead.ExternalURL, lead.Category,
		string(emailsJSON), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListLeads(ctx context.Context, jobID string) ([]domain.Lead, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT ordinal, name, email, phone, website, address, status, external_url, category, scraped_emails
FROM leads
WHERE job_id = ?
ORDER BY ordinal;`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		var l domain.Lead
		var emailsJSON string
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.Website,
			&l.Address, &l.Status, &l.ExternalURL, &l.Category, &emailsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(emailsJSON), &l.ScrapedEmails)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) RecordOutcome(ctx context.Context, jobID string, o domain.Outcome) error {
	var sentAt any
	if o.SentAt != nil {
		sentAt = o.SentAt.UTC().Format(time.RFC3339)
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO email_log(job_id, lead_id, recipient, sender, status, error_message, sent_at, created_at)
VALUES(?,?,?,?,?,?,?,?);`,
		jobID, o.LeadID, o.Recipient, o.Sender, o.Status, o.Error,
		sentAt, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListOutcomes(ctx context.Context, jobID string) ([]domain.Outcome, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT lead_id, recipient, sender, status, error_message, sent_at
FROM email_log
WHERE job_id = ?
ORDER BY id;`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var sentAt sql.NullString
		if err := rows.Scan(&o.LeadID, &o.Recipient, &o.Sender, &o.Status, &o.Error, &sentAt); err != nil {
			return nil, err
		}
		if sentAt.Valid {
			if t, err := time.Parse(time.RFC3339, sentAt.String); err == nil {
				o.SentAt = &t
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
