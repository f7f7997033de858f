package search

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/jobs"
)

// Query rewrites tried in order when the primary query comes up short of
// the requested lead count.
var queryVariations = []string{
	"near", "best", "top", "shop", "store", "service", "business",
	"professional", "specialist", "expert", "salon", "center", "studio",
	"local", "services",
}

// SiteCrawler is the contact-email discovery capability invoked per lead
// with a website. Satisfied by *scrape.Crawler.
type SiteCrawler interface {
	Crawl(ctx context.Context, seedURL, category string) []domain.ScrapedEmail
}

// LeadRecorder is the persistence hook for finalized leads. Failures are
// logged and never interrupt the search.
type LeadRecorder interface {
	RecordLead(ctx context.Context, jobID string, lead domain.Lead) error
}

type Opts struct {
	PageDelay     time.Duration // wait before a continuation token is valid
	MaxPages      int           // per query, provider caps around 3
	DetailTimeout time.Duration
	SiteTimeout   time.Duration // whole crawl of one lead's website
}

func (o Opts) withDefaults() Opts {
	if o.PageDelay <= 0 {
		o.PageDelay = 2 * time.Second
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 3
	}
	if o.DetailTimeout <= 0 {
		o.DetailTimeout = 10 * time.Second
	}
	if o.SiteTimeout <= 0 {
		o.SiteTimeout = 45 * time.Second
	}
	return o
}

type Aggregator struct {
	Source   LeadSource
	Crawler  SiteCrawler
	Registry *jobs.Registry
	Recorder LeadRecorder
	Opts     Opts

	// OnLead fires after each lead is appended to the job record, once its
	// progress is already visible to pollers.
	OnLead func(jobID string, lead domain.Lead)
}

// Run executes one search job to completion, writing incremental results
// into the registry. Designed to run on its own goroutine; all failures
// end in a job status, never a panic or a returned error.
func (a *Aggregator) Run(ctx context.Context, jobID, query, location string, target int) {
	opts := a.Opts.withDefaults()

	a.Registry.Mutate(jobID, func(j *jobs.Job) {
		j.Status = jobs.StatusRunning
		j.Message = "Collecting businesses..."
	})

	candidates, collectErr := a.collect(ctx, jobID, query, location, target, opts)
	if collectErr != nil {
		log.Printf("[search] job=%s collection error (continuing with %d candidates): %v",
			jobID, len(candidates), collectErr)
	}

	processed := 0
	for i, cand := range candidates {
		if a.Registry.Stopped(jobID) {
			a.finish(jobID, jobs.StatusStopped, fmt.Sprintf("Search stopped: %d businesses found", processed))
			return
		}
		if ctx.Err() != nil {
			break
		}

		lead := a.buildLead(ctx, i+1, cand, query, opts)

		a.Registry.Mutate(jobID, func(j *jobs.Job) {
			j.Results = append(j.Results, lead)
			j.Progress.Current = len(j.Results)
			j.Message = fmt.Sprintf("Processing businesses... %d/%d", len(j.Results), len(candidates))
		})
		processed++

		if a.Recorder != nil {
			if err := a.Recorder.RecordLead(ctx, jobID, lead); err != nil {
				log.Printf("[search] job=%s record lead id=%d err=%v", jobID, lead.ID, err)
			}
		}
		if a.OnLead != nil {
			a.OnLead(jobID, lead)
		}
	}

	switch {
	case a.Registry.Stopped(jobID):
		a.finish(jobID, jobs.StatusStopped, fmt.Sprintf("Search stopped: %d businesses found", processed))
	case collectErr != nil || ctx.Err() != nil:
		a.finish(jobID, jobs.StatusPartial, fmt.Sprintf("Partial results: %d businesses found", processed))
	default:
		a.finish(jobID, jobs.StatusCompleted, fmt.Sprintf("Search completed: %d businesses found", processed))
	}
}

func (a *Aggregator) finish(jobID, status, msg string) {
	a.Registry.Mutate(jobID, func(j *jobs.Job) {
		j.Status = status
		j.Message = msg
	})
	log.Printf("[search] job=%s %s", jobID, msg)
}

// collect paginates the primary query, then query rewrites, deduplicating
// by provider id, until target unique candidates or everything is
// exhausted. A transport error stops collection but keeps what it has.
func (a *Aggregator) collect(ctx context.Context, jobID, query, location string, target int, opts Opts) ([]RawResult, error) {
	seen := make(map[string]bool)
	var out []RawResult

	queries := append([]string{composeQuery(query, "", location)}, rewriteQueries(query, location)...)

	for _, q := range queries {
		if len(out) >= target {
			break
		}
		if a.Registry.Stopped(jobID) || ctx.Err() != nil {
			return out, ctx.Err()
		}

		token := ""
		for page := 0; page < opts.MaxPages; page++ {
			if token != "" {
				// Continuation tokens need a settle delay before redemption.
				if err := sleepCtx(ctx, opts.PageDelay); err != nil {
					return out, err
				}
			}

			res, err := a.Source.Search(ctx, q, token)
			if err != nil {
				return out, fmt.Errorf("search %q: %w", q, err)
			}

			for _, r := range res.Results {
				if r.PlaceID == "" || seen[r.PlaceID] {
					continue
				}
				seen[r.PlaceID] = true
				out = append(out, r)
				if len(out) >= target {
					return out, nil
				}
			}

			token = res.NextPageToken
			if token == "" {
				break
			}
		}
	}
	return out, nil
}

// buildLead enriches one candidate: detail fetch, then a bounded website
// crawl. Any per-candidate failure degrades to a name/address-only lead
// rather than dropping it.
func (a *Aggregator) buildLead(ctx context.Context, ordinal int, cand RawResult, category string, opts Opts) domain.Lead {
	lead := domain.Lead{
		ID:       ordinal,
		Name:     cand.Name,
		Address:  cand.Address,
		Status:   domain.LeadStatusNew,
		Category: category,
	}

	dctx, cancel := context.WithTimeout(ctx, opts.DetailTimeout)
	det, err := a.Source.Details(dctx, cand.PlaceID)
	cancel()
	if err != nil {
		log.Printf("[search] details failed place=%s err=%v", cand.PlaceID, err)
		return lead
	}

	if det.Name != "" {
		lead.Name = det.Name
	}
	if det.Address != "" {
		lead.Address = det.Address
	}
	lead.Phone = det.Phone
	lead.Website = det.Website
	lead.ExternalURL = det.URL
	lead.Lat, lead.Lng = det.Lat, det.Lng

	if lead.Website != "" && a.Crawler != nil {
		cctx, cancel := context.WithTimeout(ctx, opts.SiteTimeout)
		lead.ScrapedEmails = a.Crawler.Crawl(cctx, lead.Website, category)
		cancel()
		if len(lead.ScrapedEmails) > 0 {
			lead.Email = lead.ScrapedEmails[0].Address
		}
	}
	return lead
}

// composeQuery builds "plumber in Denver" or a rewrite like
// "best plumber in Denver"; the "near" variation reads as a connector
// ("plumber near Denver") rather than a prefix.
func composeQuery(query, variation, location string) string {
	switch {
	case variation == "":
		return fmt.Sprintf("%s in %s", query, location)
	case variation == "near":
		return fmt.Sprintf("%s near %s", query, location)
	default:
		return fmt.Sprintf("%s %s in %s", variation, query, location)
	}
}

func rewriteQueries(query, location string) []string {
	out := make([]string, 0, len(queryVariations))
	for _, v := range queryVariations {
		out = append(out, composeQuery(query, v, location))
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
