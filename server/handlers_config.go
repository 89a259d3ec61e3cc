package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HandleConfig handles GET and PUT requests for the settings document.
// Saves are merges: keys absent from the body keep their stored values, so a
// dashboard can update one field without clobbering the rest. Secrets (the
// bot OAuth token) live in the environment and are never exposed here.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		doc, err := h.deps.Settings.Document()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodPut, http.MethodPost:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := h.deps.Settings.Save(body); err != nil {
			slog.Error("failed to save settings", slog.Any("err", err))
			writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
		doc, err := h.deps.Settings.Document()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleStatus returns a lightweight status summary: record counts, pending
// spins, chat connection state, and uptime.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]any{
		"version":        appVersion,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	}

	if settings, err := h.deps.Settings.Snapshot(); err == nil {
		resp["channel"] = settings.ChannelName
		resp["bit_threshold"] = settings.BitThreshold
		resp["gift_sub_threshold"] = settings.GiftSubThreshold
	}

	if _, stats, err := h.deps.Store.Donations(); err == nil {
		resp["donations"] = stats
	}
	if _, stats, err := h.deps.Store.GiftSubs(); err == nil {
		resp["gift_subs"] = stats
	}
	if _, stats, err := h.deps.Store.Commands(); err == nil {
		resp["commands"] = stats
	}

	pending := 0
	if items, err := h.deps.Ledger.Credits(r.Context()); err == nil {
		for _, it := range items {
			if p := it.Pending(); p > 0 {
				pending += p
			}
		}
	}
	resp["pending_spins"] = pending

	chatStatus := h.lastChatStatus()
	resp["chat"] = map[string]any{
		"connected": chatStatus.Connected,
		"channel":   chatStatus.Channel,
	}

	writeJSON(w, http.StatusOK, resp)
}
