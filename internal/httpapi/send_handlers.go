package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/jobs"
)

type SendHandler struct {
	Registry      *jobs.Registry
	CfgVal        *atomic.Value // stores config.Config
	StartDispatch func(jobID string, leads []domain.Lead, pool []domain.SenderIdentity, subject, body string, cadence dispatch.Cadence)
}

// Start validates the campaign synchronously so the caller gets a 400
// instead of a job that instantly fails, then hands off to the worker.
func (h SendHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_field", "subject and body are required")
		return
	}

	leads := h.resolveLeads(req)
	if len(leads) == 0 {
		WriteError(w, r, http.StatusBadRequest, "no_recipients", "no leads with email addresses")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	pool, err := resolveSenders(cfg, req.Senders)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_senders", err.Error())
		return
	}
	if len(pool) == 0 {
		WriteError(w, r, http.StatusBadRequest, "no_senders", "no sender accounts configured")
		return
	}

	cadence := dispatch.Cadence{
		DelayMin: cfg.DispatchDelayMin(),
		DelayMax: cfg.DispatchDelayMax(),
	}
	if req.DelayMinSeconds > 0 {
		cadence.DelayMin = time.Duration(req.DelayMinSeconds * float64(time.Second))
	}
	if req.DelayMaxSeconds > 0 {
		cadence.DelayMax = time.Duration(req.DelayMaxSeconds * float64(time.Second))
	}
	if cadence.DelayMax < cadence.DelayMin {
		WriteError(w, r, http.StatusBadRequest, "bad_delay", "delay_max_seconds must be >= delay_min_seconds")
		return
	}

	jobID := h.Registry.Create(jobs.KindDispatch, len(leads))
	h.StartDispatch(jobID, leads, pool, req.Subject, req.Body, cadence)
	WriteJSON(w, http.StatusAccepted, jobRef{JobID: jobID})
}

// resolveLeads prefers the explicit list; otherwise it pulls emailable
// results from a finished search job.
func (h SendHandler) resolveLeads(req sendRequest) []domain.Lead {
	var out []domain.Lead
	if len(req.Leads) > 0 {
		for _, l := range req.Leads {
			if strings.TrimSpace(l.Email) == "" {
				continue
			}
			out = append(out, domain.Lead{
				ID:      l.ID,
				Name:    l.Name,
				Email:   strings.TrimSpace(l.Email),
				Website: l.Website,
			})
		}
		return out
	}

	if req.Job == "" {
		return nil
	}
	snap, ok := h.Registry.Snapshot(req.Job)
	if !ok {
		return nil
	}
	for _, l := range snap.Results {
		if strings.TrimSpace(l.Email) != "" {
			out = append(out, l)
		}
	}
	return out
}

func resolveSenders(cfg config.Config, addresses []string) ([]domain.SenderIdentity, error) {
	all := cfg.Identities()
	if len(addresses) == 0 {
		return all, nil
	}
	byAddr := make(map[string]domain.SenderIdentity, len(all))
	for _, id := range all {
		byAddr[strings.ToLower(id.Address)] = id
	}
	var pool []domain.SenderIdentity
	for _, a := range addresses {
		id, ok := byAddr[strings.ToLower(strings.TrimSpace(a))]
		if !ok {
			return nil, &unknownSenderError{address: a}
		}
		pool = append(pool, id)
	}
	return pool, nil
}

type unknownSenderError struct{ address string }

func (e *unknownSenderError) Error() string {
	return "unknown sender account: " + e.address
}

func (h SendHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/api/send-progress/")
	snap, _ := h.Registry.Snapshot(id)
	// dispatch jobs carry lead payloads only as input; don't echo them back
	snap.Results = nil
	writeJSON(w, snap)
}

func (h SendHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/api/send/stop/")
	if !h.Registry.Stop(id) {
		WriteError(w, r, http.StatusNotFound, "unknown_job", "no such job")
		return
	}
	writeJSON(w, map[string]any{"ok": true, "job_id": id})
}
