package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/followup"
	"leadgen-engine/internal/httpapi"
	"leadgen-engine/internal/jobs"
	"leadgen-engine/internal/quota"
	"leadgen-engine/internal/scheduler"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/search"
	"leadgen-engine/internal/secrets"
	"leadgen-engine/internal/store"
)

func main() {
	// Data dir: env wins (the desktop shell passes one), else local folder.
	dataDir := os.Getenv("LEADGEN_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine per data dir; overlapping instances would double-send
	// because quota counters live in memory.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("lock failed: %v", err)
	}
	if !locked {
		log.Fatalf("another engine instance is already running in %s", dataDir)
	}
	defer lock.Unlock()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		return config.Load(userCfgPath)
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	norm, vr := config.NormalizeAndValidate(cfg)
	if !vr.OK() {
		log.Fatalf("config invalid (%s): %v", userCfgPath, vr.Errors)
	}
	for _, warn := range vr.Warnings {
		log.Printf("[config] warning: %s", warn)
	}
	cfgVal.Store(norm)

	db, err := store.Open(filepath.Join(dataDir, "leadgen.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}
	st := &store.Store{DB: db.Pool}

	hub := events.NewHub()
	registry := jobs.NewRegistry()
	tracker := quota.NewTracker()
	applyLimits := func(c config.Config) {
		for _, id := range c.Identities() {
			tracker.SetLimit(id.Address, id.DailyLimit)
		}
	}
	applyLimits(norm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Auto-reload on config file edits; the PUT /api/config path saves
	// through the same file, so both converge here.
	go func() {
		err := config.Watch(ctx, userCfgPath, func(c config.Config) {
			cfgVal.Store(c)
			applyLimits(c)
			hub.Publish(events.MakeEvent("", events.TypeConfigReloaded, 1, nil))
		})
		if err != nil {
			log.Printf("[config] watch unavailable: %v", err)
		}
	}()

	smtpSender := &dispatch.SMTPSender{
		Password: func(address string) (string, error) {
			return secrets.Get(secrets.SMTPAccount(address))
		},
	}

	identityFor := func(address string) (domain.SenderIdentity, bool) {
		c := cfgVal.Load().(config.Config)
		for _, id := range c.Identities() {
			if id.Address == address {
				return id, true
			}
		}
		return domain.SenderIdentity{}, false
	}

	newCrawler := func(c config.Config) *scrape.Crawler {
		return scrape.NewCrawler(scrape.CrawlerOpts{
			PageTimeout:    time.Duration(c.Crawl.PageTimeoutSeconds) * time.Second,
			ProbeTimeout:   time.Duration(c.Crawl.ProbeTimeoutSeconds) * time.Second,
			MaxParallel:    c.Crawl.MaxParallel,
			RequestsPerSec: c.Crawl.RequestsPerSec,
			Burst:          c.Crawl.Burst,
		})
	}

	var sweeper *followup.Sweeper
	if norm.FollowUp.Enabled {
		sweeper = &followup.Sweeper{
			Store:       st,
			Sender:      smtpSender,
			Quota:       tracker,
			IdentityFor: identityFor,
			Opts: followup.Opts{
				Days:      norm.FollowUp.Days,
				MaxCount:  norm.FollowUp.MaxCount,
				SendDelay: time.Duration(norm.FollowUp.SendDelaySeconds) * time.Second,
			},
		}
		c := cron.New()
		_, err := c.AddFunc(norm.FollowUp.Cron, func() {
			sent, err := sweeper.SweepOnce(ctx)
			if err != nil {
				log.Printf("[followup] sweep: %v", err)
			}
			if sent > 0 {
				log.Printf("[followup] sent=%d", sent)
				hub.Publish(events.MakeEvent("", events.TypeFollowUpSent, 1, map[string]any{"sent": sent}))
			}
		})
		if err != nil {
			log.Fatalf("follow_up.cron invalid: %v", err)
		}
		c.Start()
		defer c.Stop()
	}

	if norm.Replies.Enabled {
		checker := &followup.ReplyChecker{
			Store:    st,
			IMAPHost: norm.Replies.IMAPHost,
			IMAPPort: norm.Replies.IMAPPort,
			Username: norm.Replies.Username,
			Mailbox:  norm.Replies.Mailbox,
			Password: func() (string, error) {
				return secrets.Get(secrets.IMAPAccount(norm.Replies.Username, norm.Replies.IMAPHost))
			},
		}
		interval := time.Duration(norm.Replies.CheckSeconds) * time.Second
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go scheduler.Every(ctx, interval, "replies", func(ctx context.Context) error {
			matched, err := checker.CheckOnce(ctx)
			if matched > 0 {
				hub.Publish(events.MakeEvent("", events.TypeReplyDetected, 1, map[string]any{"matched": matched}))
			}
			return err
		})
	}

	startSearch := func(jobID, query, location string, target int) {
		c := cfgVal.Load().(config.Config)
		agg := &search.Aggregator{
			Source:   search.NewPlacesSource(c.Search.PlacesAPIKey),
			Crawler:  newCrawler(c),
			Registry: registry,
			Recorder: st,
			Opts: search.Opts{
				PageDelay:     time.Duration(c.Search.PageDelaySeconds * float64(time.Second)),
				MaxPages:      c.Search.MaxPages,
				DetailTimeout: time.Duration(c.Search.DetailTimeoutSecs) * time.Second,
				SiteTimeout:   time.Duration(c.Search.SiteTimeoutSeconds) * time.Second,
			},
			OnLead: func(jobID string, lead domain.Lead) {
				hub.Publish(events.MakeEvent("", events.TypeSearchLead, 1, map[string]any{
					"job_id": jobID, "id": lead.ID, "name": lead.Name, "email": lead.Email,
				}))
			},
		}
		go func() {
			agg.Run(ctx, jobID, query, location, target)
			snap, _ := registry.Snapshot(jobID)
			hub.Publish(events.JobProgress(events.TypeSearchDone, jobID, snap.Status, snap.Progress.Current, snap.Progress.Total))
		}()
	}

	startDispatch := func(jobID string, leads []domain.Lead, pool []domain.SenderIdentity, subject, body string, cadence dispatch.Cadence) {
		rec := &campaignRecorder{
			store:   st,
			sweeper: sweeper,
			subject: subject,
			body:    body,
			leads:   leadIndex(leads),
		}
		sched := &dispatch.Scheduler{
			Sender:   smtpSender,
			Quota:    tracker,
			Registry: registry,
			Recorder: rec,
			OnProgress: func(jobID string, sent, failed int) {
				hub.Publish(events.MakeEvent("", events.TypeDispatchProgress, 1, map[string]any{
					"job_id": jobID, "sent": sent, "failed": failed,
				}))
			},
		}
		go func() {
			sched.Run(ctx, jobID, leads, pool, subject, body, cadence)
			snap, _ := registry.Snapshot(jobID)
			hub.Publish(events.JobProgress(events.TypeDispatchDone, jobID, snap.Status, snap.Sent+snap.Failed, snap.Progress.Total))
		}()
	}

	crawlSite := func(ctx context.Context, seedURL, category string) []domain.ScrapedEmail {
		return newCrawler(cfgVal.Load().(config.Config)).Crawl(ctx, seedURL, category)
	}

	mux := httpapi.NewMux(httpapi.Deps{
		DB:            db.Pool,
		Store:         st,
		Hub:           hub,
		Registry:      registry,
		CfgVal:        &cfgVal,
		UserCfgPath:   userCfgPath,
		LoadCfg:       loadCfg,
		StartSearch:   startSearch,
		StartDispatch: startDispatch,
		CrawlSite:     crawlSite,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", norm.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{
		Handler: httpapi.Chain(mux,
			httpapi.RequestID,
			httpapi.Recover,
			httpapi.AccessLog,
			httpapi.Cors,
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := randomToken(16)
	if err != nil {
		log.Fatal(err)
	}
	// The desktop shell reads the token back to stop us cleanly.
	tokenPath := filepath.Join(dataDir, "shutdown.token")
	if err := os.WriteFile(tokenPath, []byte(token), 0o600); err != nil {
		log.Fatal(err)
	}
	mux.HandleFunc("/shutdown", shutdownHandler(&token, srv))

	log.Printf("engine listening on http://%s (data=%s)", addr, dataDir)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// leadIndex keys a campaign's leads by ordinal for outcome enrichment.
func leadIndex(leads []domain.Lead) map[int]domain.Lead {
	m := make(map[int]domain.Lead, len(leads))
	for _, l := range leads {
		m[l.ID] = l
	}
	return m
}

// campaignRecorder persists outcomes and registers follow-ups for
// confirmed sends.
type campaignRecorder struct {
	store   *store.Store
	sweeper *followup.Sweeper
	subject string
	body    string
	leads   map[int]domain.Lead
}

func (r *campaignRecorder) RecordOutcome(ctx context.Context, jobID string, o domain.Outcome) error {
	if err := r.store.RecordOutcome(ctx, jobID, o); err != nil {
		return err
	}
	if r.sweeper != nil && o.Status == domain.OutcomeSent {
		if lead, ok := r.leads[o.LeadID]; ok {
			if err := r.sweeper.Track(ctx, lead, o.Sender, r.subject, r.body, time.Now().UTC()); err != nil {
				log.Printf("[followup] track lead=%d: %v", o.LeadID, err)
			}
		}
	}
	return nil
}
