package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
)

type ScrapeHandler struct {
	Hub       *events.Hub
	CrawlSite func(ctx context.Context, seedURL, category string) []domain.ScrapedEmail

	// Timeout bounds the whole crawl of one site.
	Timeout time.Duration
}

// Run crawls a single website synchronously and returns whatever emails it
// found. An unreachable site is an empty result, not an error.
func (h ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req scrapeSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_url", "url is required")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_url", "url must be absolute http(s)")
		return
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	emails := h.CrawlSite(ctx, req.URL, req.Category)
	if emails == nil {
		emails = []domain.ScrapedEmail{}
	}
	writeJSON(w, map[string]any{
		"lead_id": req.LeadID,
		"url":     req.URL,
		"emails":  emails,
	})
}
