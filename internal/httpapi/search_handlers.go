package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"leadgen-engine/internal/jobs"
)

type SearchHandler struct {
	Registry    *jobs.Registry
	StartSearch func(jobID, query, location string, target int)
}

func (h SearchHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	req.Location = strings.TrimSpace(req.Location)
	if req.Query == "" || req.Location == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_field", "query and location are required")
		return
	}
	if req.MaxResults <= 0 {
		WriteError(w, r, http.StatusBadRequest, "bad_max_results", "max_results must be > 0")
		return
	}

	jobID := h.Registry.Create(jobs.KindSearch, req.MaxResults)
	h.StartSearch(jobID, req.Query, req.Location, req.MaxResults)
	WriteJSON(w, http.StatusAccepted, jobRef{JobID: jobID})
}

// Progress reports a snapshot. Unknown ids are not an error: pollers may
// race job creation, so they get a not_started record and keep polling.
func (h SearchHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/api/search-progress/")
	snap, _ := h.Registry.Snapshot(id)
	writeJSON(w, snap)
}

func (h SearchHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/api/search/stop/")
	if !h.Registry.Stop(id) {
		WriteError(w, r, http.StatusNotFound, "unknown_job", "no such job")
		return
	}
	writeJSON(w, map[string]any{"ok": true, "job_id": id})
}
