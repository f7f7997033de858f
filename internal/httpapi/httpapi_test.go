package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/jobs"
	"leadgen-engine/internal/store"
)

func testDeps(t *testing.T) (Deps, *jobs.Registry) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db.Pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var cfg config.Config
	cfg.App.Port = 8090
	cfg.Dispatch.DelayMinSeconds = 0
	cfg.Dispatch.DelayMaxSeconds = 0
	cfg.Dispatch.Senders = []config.Sender{
		{Address: "out@example.com", DailyLimit: 40},
	}
	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	reg := jobs.NewRegistry()
	d := Deps{
		DB:          db.Pool,
		Store:       &store.Store{DB: db.Pool},
		Hub:         events.NewHub(),
		Registry:    reg,
		CfgVal:      &cfgVal,
		StartSearch: func(jobID, query, location string, target int) {},
		StartDispatch: func(jobID string, leads []domain.Lead, pool []domain.SenderIdentity, subject, body string, cadence dispatch.Cadence) {
		},
		CrawlSite: func(ctx context.Context, seedURL, category string) []domain.ScrapedEmail {
			return []domain.ScrapedEmail{{Address: "info@example.com", Source: "homepage", Verified: true}}
		},
	}
	return d, reg
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestSearchStart_Validation(t *testing.T) {
	d, _ := testDeps(t)
	mux := NewMux(d)

	tests := []struct {
		name string
		body searchRequest
	}{
		{"empty query", searchRequest{Location: "Denver", MaxResults: 5}},
		{"empty location", searchRequest{Query: "plumber", MaxResults: 5}},
		{"zero max", searchRequest{Query: "plumber", Location: "Denver"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(t, mux, "/api/search", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestSearchStart_CreatesJob(t *testing.T) {
	d, reg := testDeps(t)
	var startedJob string
	d.StartSearch = func(jobID, query, location string, target int) {
		startedJob = jobID
		if query != "plumber" || location != "Denver" || target != 5 {
			t.Errorf("unexpected start args: %q %q %d", query, location, target)
		}
	}
	mux := NewMux(d)

	rr := postJSON(t, mux, "/api/search", searchRequest{Query: "plumber", Location: "Denver", MaxResults: 5})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body.String())
	}
	var ref jobRef
	if err := json.Unmarshal(rr.Body.Bytes(), &ref); err != nil {
		t.Fatal(err)
	}
	if ref.JobID == "" || ref.JobID != startedJob {
		t.Fatalf("job id mismatch: resp %q started %q", ref.JobID, startedJob)
	}
	if snap, ok := reg.Snapshot(ref.JobID); !ok || snap.Status != jobs.StatusPending {
		t.Fatalf("job not registered pending: %+v ok=%v", snap, ok)
	}
}

func TestSearchProgress_UnknownIsNotStarted(t *testing.T) {
	d, _ := testDeps(t)
	mux := NewMux(d)

	req := httptest.NewRequest(http.MethodGet, "/api/search-progress/search_deadbeef", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var snap jobs.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != jobs.StatusNotStarted {
		t.Fatalf("status = %q, want not_started", snap.Status)
	}
}

func TestSearchStop_UnknownIs404(t *testing.T) {
	d, _ := testDeps(t)
	mux := NewMux(d)
	rr := postJSON(t, mux, "/api/search/stop/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestSend_RequiresRecipientsAndSenders(t *testing.T) {
	d, reg := testDeps(t)
	mux := NewMux(d)

	// no leads at all
	rr := postJSON(t, mux, "/api/send", sendRequest{Subject: "s", Body: "b"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("no leads: status = %d, want 400", rr.Code)
	}

	// leads without email addresses
	rr = postJSON(t, mux, "/api/send", sendRequest{
		Subject: "s", Body: "b",
		Leads: []leadRef{{ID: 1, Name: "Acme"}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("emailless leads: status = %d, want 400", rr.Code)
	}

	// job with no emailable results
	jobID := reg.Create(jobs.KindSearch, 1)
	reg.Mutate(jobID, func(j *jobs.Job) {
		j.Results = []domain.Lead{{ID: 1, Name: "Acme"}}
	})
	rr = postJSON(t, mux, "/api/send", sendRequest{Subject: "s", Body: "b", Job: jobID})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("emailless job: status = %d, want 400", rr.Code)
	}

	// no configured senders
	var cfg config.Config
	cfg.App.Port = 8090
	d.CfgVal.Store(cfg)
	rr = postJSON(t, mux, "/api/send", sendRequest{
		Subject: "s", Body: "b",
		Leads: []leadRef{{ID: 1, Name: "Acme", Email: "acme@example.com"}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("no senders: status = %d, want 400", rr.Code)
	}
}

func TestSend_StartsDispatch(t *testing.T) {
	d, _ := testDeps(t)
	var got struct {
		leads []domain.Lead
		pool  []domain.SenderIdentity
	}
	d.StartDispatch = func(jobID string, leads []domain.Lead, pool []domain.SenderIdentity, subject, body string, cadence dispatch.Cadence) {
		got.leads = leads
		got.pool = pool
	}
	mux := NewMux(d)

	rr := postJSON(t, mux, "/api/send", sendRequest{
		Subject: "Hello [Business Name]", Body: "b",
		Leads: []leadRef{
			{ID: 1, Name: "Acme", Email: "acme@example.com"},
			{ID: 2, Name: "NoMail"},
		},
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body.String())
	}
	if len(got.leads) != 1 || got.leads[0].Email != "acme@example.com" {
		t.Fatalf("leads = %+v", got.leads)
	}
	if len(got.pool) != 1 || got.pool[0].Address != "out@example.com" {
		t.Fatalf("pool = %+v", got.pool)
	}
}

func TestSend_UnknownSenderIs400(t *testing.T) {
	d, _ := testDeps(t)
	mux := NewMux(d)
	rr := postJSON(t, mux, "/api/send", sendRequest{
		Subject: "s", Body: "b",
		Leads:   []leadRef{{ID: 1, Email: "a@example.com"}},
		Senders: []string{"ghost@example.com"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestScrapeWebsite(t *testing.T) {
	d, _ := testDeps(t)
	mux := NewMux(d)

	rr := postJSON(t, mux, "/api/scrape-website", scrapeSiteRequest{URL: "not a url"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad url: status = %d, want 400", rr.Code)
	}

	rr = postJSON(t, mux, "/api/scrape-website", scrapeSiteRequest{LeadID: 7, URL: "https://example.com", Category: "plumber"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		LeadID int                   `json:"lead_id"`
		Emails []domain.ScrapedEmail `json:"emails"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.LeadID != 7 || len(resp.Emails) != 1 || resp.Emails[0].Address != "info@example.com" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestLeadsList_FallsBackToRegistry(t *testing.T) {
	d, reg := testDeps(t)
	mux := NewMux(d)

	jobID := reg.Create(jobs.KindSearch, 1)
	reg.Mutate(jobID, func(j *jobs.Job) {
		j.Results = []domain.Lead{{ID: 1, Name: "Acme", Email: "a@example.com", Status: domain.LeadStatusNew}}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/leads?job="+jobID, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var leads []domain.Lead
	if err := json.Unmarshal(rr.Body.Bytes(), &leads); err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 || leads[0].Name != "Acme" {
		t.Fatalf("leads = %+v", leads)
	}
}

func TestLeadsExport_WritesWorkbook(t *testing.T) {
	d, reg := testDeps(t)
	mux := NewMux(d)

	jobID := reg.Create(jobs.KindSearch, 1)
	reg.Mutate(jobID, func(j *jobs.Job) {
		j.Results = []domain.Lead{{ID: 1, Name: "Acme", Email: "a@example.com"}}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/leads/export?job="+jobID, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", ct)
	}
	if rr.Body.Len() == 0 {
		t.Fatal("empty workbook body")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	d, _ := testDeps(t)
	mux := NewMux(d)
	req := httptest.NewRequest(http.MethodDelete, "/api/search", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}
