package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/spin-tracker/ledger"
	"github.com/onnwee/spin-tracker/resolver"
)

// HandleSpins returns the derived spin credit list.
func (h *Handlers) HandleSpins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	items, err := h.deps.Ledger.Credits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spins": items})
}

// HandleSpinsDispatcher routes the /spins/ subtree:
//
//	GET  /spins/export.csv        spin tracker CSV download
//	POST /spins/clear-completed   reset every completed count
//	POST /spins/{id}/complete     complete one spin on a record
//	POST /spins/{id}/reset        reset one record's completed count
func (h *Handlers) HandleSpinsDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/spins/")

	switch rest {
	case "export.csv":
		h.handleSpinsExportCSV(w, r)
		return
	case "clear-completed":
		h.handleSpinsClearCompleted(w, r)
		return
	}

	idStr, action, ok := strings.Cut(rest, "/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	id, err := ledger.ParseSpinID(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch action {
	case "complete":
		h.handleSpinMutation(w, r, func() ([]ledger.CreditItem, error) {
			return h.deps.Ledger.CompleteOne(r.Context(), id)
		})
	case "reset":
		h.handleSpinMutation(w, r, func() ([]ledger.CreditItem, error) {
			return h.deps.Ledger.ResetOne(r.Context(), id)
		})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handlers) handleSpinMutation(w http.ResponseWriter, r *http.Request, mutate func() ([]ledger.CreditItem, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	items, err := mutate()
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spins": items})
}

func (h *Handlers) handleSpinsClearCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.deps.Ledger.ClearAllCompleted(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items, err := h.deps.Ledger.Credits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spins": items})
}

func (h *Handlers) handleSpinsExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="spin_tracker.csv"`)
	if err := h.deps.Ledger.WriteCreditsCSV(r.Context(), w); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleResolve marks a user's latest record for a spin, the HTTP
// counterpart of the moderator "!spin <user>" chat command.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Issuer string `json:"issuer"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Target) == "" {
		writeError(w, http.StatusBadRequest, "target username required")
		return
	}
	if body.Issuer == "" {
		body.Issuer = "api"
	}
	res, err := h.deps.Resolver.Resolve(r.Context(), body.Issuer, body.Target)
	if err != nil {
		if errors.Is(err, resolver.ErrNoQualifyingRecord) {
			writeError(w, http.StatusNotFound, "no recent donations or gift subs found for "+body.Target)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
