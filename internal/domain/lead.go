package domain

import "time"

// ScrapedEmail is one address pulled off a crawled page.
//
// Verified means the address passed pattern validation (shape + filter
// lists), NOT that deliverability was confirmed in any way.
type ScrapedEmail struct {
	Address   string    `json:"email"`
	Source    string    `json:"source"` // homepage / contact page / about page / info page
	Category  string    `json:"category"`
	ScrapedAt time.Time `json:"scraped_at"`
	Verified  bool      `json:"verified"`
}

type Lead struct {
	ID            int            `json:"id"` // 1-based ordinal within its search job
	Name          string         `json:"name"`
	Email         string         `json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Website       string         `json:"website,omitempty"`
	Address       string         `json:"address"`
	Status        string         `json:"status"` // always "new" on creation
	ExternalURL   string         `json:"external_url"`
	ScrapedEmails []ScrapedEmail `json:"scraped_emails,omitempty"`
	Category      string         `json:"category"`
	Lat           float64        `json:"lat,omitempty"`
	Lng           float64        `json:"lng,omitempty"`
}

const LeadStatusNew = "new"
