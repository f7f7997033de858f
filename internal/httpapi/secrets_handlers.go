package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setSMTPPasswordReq struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// SetSMTPPassword stores an app password for one configured sender. The
// address must already exist in the config so typos don't create orphan
// keychain entries.
func (h SecretsHandler) SetSMTPPassword(w http.ResponseWriter, r *http.Request) {
	var req setSMTPPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	addr := strings.ToLower(strings.TrimSpace(req.Address))
	cfg := h.CfgVal.Load().(config.Config)
	known := false
	for _, s := range cfg.Dispatch.Senders {
		if strings.EqualFold(s.Address, addr) {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, "unknown sender account: "+req.Address, http.StatusBadRequest)
		return
	}

	if err := secrets.Set(secrets.SMTPAccount(addr), req.Password); err != nil {
		http.Error(w, "failed to store password: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setIMAPPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setIMAPPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	account := secrets.IMAPAccount(cfg.Replies.Username, cfg.Replies.IMAPHost)
	if err := secrets.Set(account, req.Password); err != nil {
		http.Error(w, "failed to store password: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
