package events

import (
	"encoding/json"
	"time"
)

// Event types published over the SSE stream.
const (
	TypeSearchLead       = "search_lead"
	TypeSearchDone       = "search_done"
	TypeDispatchProgress = "dispatch_progress"
	TypeDispatchDone     = "dispatch_done"
	TypeFollowUpSent     = "followup_sent"
	TypeReplyDetected    = "reply_detected"
	TypeConfigReloaded   = "config_reloaded"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// JobEvent is the payload shape for job-scoped events.
type JobEvent struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status,omitempty"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// JobProgress builds a job-scoped event string without a request id,
// for events emitted from background workers.
func JobProgress(typ, jobID, status string, current, total int) string {
	return MakeEvent("", typ, 1, JobEvent{
		JobID:   jobID,
		Status:  status,
		Current: current,
		Total:   total,
	})
}
