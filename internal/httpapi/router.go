package httpapi

import (
	"net/http"
	"time"
)

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Lead search
	srh := SearchHandler{Registry: d.Registry, StartSearch: d.StartSearch}
	mux.HandleFunc("/api/search", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: srh.Start,
	}))
	mux.HandleFunc("/api/search-progress/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: srh.Progress,
	}))
	mux.HandleFunc("/api/search/stop/", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: srh.Stop,
	}))

	// Leads
	lh := LeadsHandler{Store: d.Store, Registry: d.Registry}
	mux.HandleFunc("/api/leads", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.List,
	}))
	mux.HandleFunc("/api/leads/export", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Export,
	}))

	// Campaign dispatch
	sdh := SendHandler{Registry: d.Registry, CfgVal: d.CfgVal, StartDispatch: d.StartDispatch}
	mux.HandleFunc("/api/send", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sdh.Start,
	}))
	mux.HandleFunc("/api/send-progress/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sdh.Progress,
	}))
	mux.HandleFunc("/api/send/stop/", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sdh.Stop,
	}))

	// One-off site scrape
	sch := ScrapeHandler{Hub: d.Hub, CrawlSite: d.CrawlSite, Timeout: 45 * time.Second}
	mux.HandleFunc("/api/scrape-website", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sch.Run,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/api/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/api/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/api/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/smtp", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetSMTPPassword,
	}))
	mux.HandleFunc("/api/secrets/imap", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetIMAPPassword,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Maintenance
	dbh := DBHandler{DB: d.DB}
	mux.HandleFunc("/api/db/checkpoint", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dbh.Checkpoint,
	}))

	hh := HealthHandler{}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	return mux
}
