package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/jobs"
)

// fakeSource serves canned pages keyed by query, with optional token
// continuation, and records every query it sees.
type fakeSource struct {
	pages    map[string][]Page // query -> page sequence
	details  map[string]Details
	detErr   map[string]error
	queries  []string
	searches int
	failFrom int // fail every Search call once searches >= failFrom (0 = never)
}

func (f *fakeSource) Search(ctx context.Context, query, pageToken string) (Page, error) {
	f.searches++
	if f.failFrom > 0 && f.searches >= f.failFrom {
		return Page{}, errors.New("transport down")
	}
	f.queries = append(f.queries, query)

	seq := f.pages[query]
	if pageToken == "" {
		if len(seq) == 0 {
			return Page{}, nil
		}
		return seq[0], nil
	}
	for i, p := range seq {
		if p.NextPageToken == pageToken && i+1 < len(seq) {
			return seq[i+1], nil
		}
	}
	return Page{}, nil
}

func (f *fakeSource) Details(ctx context.Context, placeID string) (Details, error) {
	if err := f.detErr[placeID]; err != nil {
		return Details{}, err
	}
	if d, ok := f.details[placeID]; ok {
		return d, nil
	}
	return Details{Name: "detail-" + placeID}, nil
}

type fakeCrawler struct{ emails map[string][]domain.ScrapedEmail }

func (f *fakeCrawler) Crawl(ctx context.Context, seedURL, category string) []domain.ScrapedEmail {
	return f.emails[seedURL]
}

func results(n int, prefix string) []RawResult {
	out := make([]RawResult, n)
	for i := range out {
		out[i] = RawResult{PlaceID: fmt.Sprintf("%s%d", prefix, i), Name: prefix}
	}
	return out
}

func fastOpts() Opts {
	return Opts{PageDelay: time.Millisecond, MaxPages: 3, DetailTimeout: time.Second, SiteTimeout: time.Second}
}

func runSearch(t *testing.T, src LeadSource, cr SiteCrawler, target int) (jobs.Job, *jobs.Registry) {
	t.Helper()
	reg := jobs.NewRegistry()
	id := reg.Create(jobs.KindSearch, target)
	agg := &Aggregator{Source: src, Crawler: cr, Registry: reg, Opts: fastOpts()}
	agg.Run(context.Background(), id, "plumber", "Denver", target)
	snap, _ := reg.Snapshot(id)
	return snap, reg
}

// Primary first page has 3 results plus a token; next page and rewrites
// must be walked until 5 unique candidates exist, truncated at 5 with
// ids 1..5.
func TestRun_PaginatesThenRewritesUntilTarget(t *testing.T) {
	src := &fakeSource{
		pages: map[string][]Page{
			"plumber in Denver": {
				{Results: results(3, "p"), NextPageToken: "tok1"},
				{}, // second page: no new ids, no further token
			},
			"plumber near Denver":   {{Results: results(1, "n")}},
			"best plumber in Denver": {{Results: results(4, "b")}},
		},
	}

	snap, _ := runSearch(t, src, nil, 5)

	if snap.Status != jobs.StatusCompleted {
		t.Fatalf("status: got %q, want completed (msg=%q)", snap.Status, snap.Message)
	}
	if len(snap.Results) != 5 {
		t.Fatalf("leads: got %d, want 5", len(snap.Results))
	}
	for i, l := range snap.Results {
		if l.ID != i+1 {
			t.Errorf("lead %d id: got %d, want %d", i, l.ID, i+1)
		}
	}

	// rewrite order: "near" before "best"
	joined := strings.Join(src.queries, "|")
	if !strings.Contains(joined, "plumber near Denver") {
		t.Errorf("missing near rewrite in %v", src.queries)
	}
	if strings.Index(joined, "plumber near Denver") > strings.Index(joined, "best plumber in Denver") &&
		strings.Contains(joined, "best plumber in Denver") {
		t.Errorf("rewrites out of order: %v", src.queries)
	}
}

func TestRun_DeduplicatesByProviderID(t *testing.T) {
	dup := RawResult{PlaceID: "same", Name: "Twice Inc"}
	src := &fakeSource{
		pages: map[string][]Page{
			"plumber in Denver": {
				{Results: []RawResult{dup, dup}, NextPageToken: "t"},
				{Results: []RawResult{dup}, NextPageToken: "t"},
			},
		},
	}

	snap, _ := runSearch(t, src, nil, 10)
	if len(snap.Results) != 1 {
		t.Errorf("leads: got %d, want 1 after dedup", len(snap.Results))
	}
}

func TestRun_DetailFailureYieldsPartialLead(t *testing.T) {
	src := &fakeSource{
		pages: map[string][]Page{
			"plumber in Denver": {{Results: []RawResult{{PlaceID: "x", Name: "Raw Name", Address: "1 Main St"}}}},
		},
		detErr: map[string]error{"x": errors.New("boom")},
	}

	snap, _ := runSearch(t, src, nil, 1)
	if snap.Status != jobs.StatusCompleted {
		t.Fatalf("status: got %q, want completed", snap.Status)
	}
	l := snap.Results[0]
	if l.Name != "Raw Name" || l.Address != "1 Main St" || l.Website != "" {
		t.Errorf("partial lead wrong: %+v", l)
	}
}

func TestRun_TransportFailureKeepsAccumulatedAsPartial(t *testing.T) {
	src := &fakeSource{
		pages: map[string][]Page{
			"plumber in Denver": {{Results: results(2, "p"), NextPageToken: "tok1"}},
		},
		failFrom: 2, // first Search succeeds, everything after blows up
	}

	snap, _ := runSearch(t, src, nil, 10)
	if snap.Status != jobs.StatusPartial {
		t.Fatalf("status: got %q, want partial", snap.Status)
	}
	if len(snap.Results) != 2 {
		t.Errorf("leads: got %d, want the 2 accumulated before the failure", len(snap.Results))
	}
}

func TestRun_CrawlsWebsiteAndSetsFirstEmail(t *testing.T) {
	src := &fakeSource{
		pages: map[string][]Page{
			"plumber in Denver": {{Results: []RawResult{{PlaceID: "x", Name: "Acme"}}}},
		},
		details: map[string]Details{
			"x": {Name: "Acme Plumbing", Website: "https://acme.test", Phone: "555-0100"},
		},
	}
	cr := &fakeCrawler{emails: map[string][]domain.ScrapedEmail{
		"https://acme.test": {
			{Address: "info@acme.test", Source: "homepage", Verified: true},
			{Address: "sales@acme.test", Source: "contact page", Verified: true},
		},
	}}

	snap, _ := runSearch(t, src, cr, 1)
	l := snap.Results[0]
	if l.Email != "info@acme.test" {
		t.Errorf("email: got %q, want first scraped address", l.Email)
	}
	if len(l.ScrapedEmails) != 2 {
		t.Errorf("scraped emails: got %d, want 2", len(l.ScrapedEmails))
	}
}

func TestRun_StopFlagEndsProcessing(t *testing.T) {
	src := &fakeSource{
		pages: map[string][]Page{
			"plumber in Denver": {{Results: results(3, "p")}},
		},
	}

	reg := jobs.NewRegistry()
	id := reg.Create(jobs.KindSearch, 3)
	reg.Stop(id)

	agg := &Aggregator{Source: src, Registry: reg, Opts: fastOpts()}
	agg.Run(context.Background(), id, "plumber", "Denver", 3)

	snap, _ := reg.Snapshot(id)
	if snap.Status != jobs.StatusStopped {
		t.Errorf("status: got %q, want stopped", snap.Status)
	}
	if len(snap.Results) != 0 {
		t.Errorf("leads: got %d, want 0 when stopped before processing", len(snap.Results))
	}
}

func TestComposeQuery(t *testing.T) {
	cases := []struct{ variation, want string }{
		{"", "plumber in Denver"},
		{"near", "plumber near Denver"},
		{"best", "best plumber in Denver"},
	}
	for _, c := range cases {
		if got := composeQuery("plumber", c.variation, "Denver"); got != c.want {
			t.Errorf("composeQuery(%q): got %q, want %q", c.variation, got, c.want)
		}
	}
}
