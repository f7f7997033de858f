package domain

import "time"

// SenderIdentity is one outbound account with a daily send cap.
type SenderIdentity struct {
	Address    string `json:"email" yaml:"email"`
	DailyLimit int    `json:"daily_limit" yaml:"daily_limit"`
	SMTPHost   string `json:"smtp_host,omitempty" yaml:"smtp_host"`
	SMTPPort   int    `json:"smtp_port,omitempty" yaml:"smtp_port"`
}

// Outcome is the append-only record of one send attempt. Never mutated
// after creation.
type Outcome struct {
	LeadID    int        `json:"lead_id"`
	Recipient string     `json:"recipient"`
	Sender    string     `json:"sender"`
	Status    string     `json:"status"` // sent / failed
	Error     string     `json:"error,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)
