package httpapi

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/jobs"
	"leadgen-engine/internal/store"
)

type LeadsHandler struct {
	Store    *store.Store
	Registry *jobs.Registry
}

// leadsFor prefers the persisted rows; a still-running job only exists in
// the registry.
func (h LeadsHandler) leadsFor(r *http.Request, jobID string) ([]domain.Lead, error) {
	leads, err := h.Store.ListLeads(r.Context(), jobID)
	if err != nil {
		return nil, err
	}
	if len(leads) > 0 {
		return leads, nil
	}
	snap, _ := h.Registry.Snapshot(jobID)
	return snap.Results, nil
}

func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.URL.Query().Get("job"))
	if jobID == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_job", "job query parameter is required")
		return
	}
	leads, err := h.leadsFor(r, jobID)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	writeJSON(w, leads)
}

var exportColumns = []string{"ID", "Name", "Email", "Phone", "Website", "Address", "Category", "Status"}

func (h LeadsHandler) Export(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.URL.Query().Get("job"))
	if jobID == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_job", "job query parameter is required")
		return
	}
	leads, err := h.leadsFor(r, jobID)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("[export] close workbook: %v", err)
		}
	}()

	const sheet = "Leads"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "export_error", err.Error())
		return
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	for col, name := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, name)
	}
	for row, l := range leads {
		values := []any{l.ID, l.Name, l.Email, l.Phone, l.Website, l.Address, l.Category, l.Status}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "leads_"+jobID+".xlsx"))
	if err := f.Write(w); err != nil {
		log.Printf("[export] write workbook: %v", err)
	}
}
