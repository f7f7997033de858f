package httpapi

type searchRequest struct {
	Query      string `json:"query"`
	Location   string `json:"location"`
	MaxResults int    `json:"max_results"`
}

type leadRef struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Website string `json:"website,omitempty"`
}

type sendRequest struct {
	// Either an explicit lead list or a finished search job to pull from.
	Job   string    `json:"job,omitempty"`
	Leads []leadRef `json:"leads,omitempty"`

	Subject string `json:"subject"`
	Body    string `json:"body"`

	// Sender addresses to use; empty means every configured sender.
	Senders []string `json:"senders,omitempty"`

	DelayMinSeconds float64 `json:"delay_min_seconds,omitempty"`
	DelayMaxSeconds float64 `json:"delay_max_seconds,omitempty"`
}

type scrapeSiteRequest struct {
	LeadID   int    `json:"lead_id,omitempty"`
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
}

type jobRef struct {
	JobID string `json:"job_id"`
}
