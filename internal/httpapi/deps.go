package httpapi

import (
	"context"
	"database/sql"
	"sync/atomic"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/jobs"
	"leadgen-engine/internal/store"
)

type Deps struct {
	DB    *sql.DB
	Store *store.Store

	Hub      *events.Hub
	Registry *jobs.Registry

	// CfgVal stores config.Config and is swapped on reload.
	CfgVal *atomic.Value

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Job entrypoints (injected for testability). Each spawns the worker
	// goroutine for an already-created registry job.
	StartSearch   func(jobID, query, location string, target int)
	StartDispatch func(jobID string, leads []domain.Lead, pool []domain.SenderIdentity, subject, body string, cadence dispatch.Cadence)

	// Synchronous single-site crawl for /api/scrape-website.
	CrawlSite func(ctx context.Context, seedURL, category string) []domain.ScrapedEmail
}
