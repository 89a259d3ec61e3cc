package server

import (
	"encoding/json"
	"net/http"
)

// HandleDonations lists bit donations with aggregate stats, or creates a
// test donation (POST) for development.
func (h *Handlers) HandleDonations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		donations, stats, err := h.deps.Store.Donations()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"donations": donations, "stats": stats})
	case http.MethodPost:
		var body struct {
			Username      string `json:"username"`
			Bits          int    `json:"bits"`
			Message       string `json:"message"`
			SpinTriggered *bool  `json:"spinTriggered"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Username == "" {
			body.Username = "TestUser"
		}
		if body.Bits == 0 {
			body.Bits = 1000
		}
		d, err := h.deps.Ledger.RecordDonation(r.Context(), body.Username, body.Bits, body.Message, body.SpinTriggered)
		if err != nil {
			writeRecordError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGiftSubs lists gift sub bundles with aggregate stats, or creates a
// test bundle (POST) for development.
func (h *Handlers) HandleGiftSubs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		giftSubs, stats, err := h.deps.Store.GiftSubs()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"giftSubs": giftSubs, "stats": stats})
	case http.MethodPost:
		var body struct {
			Username      string   `json:"username"`
			SubCount      int      `json:"subCount"`
			Recipients    []string `json:"recipients"`
			SpinTriggered *bool    `json:"spinTriggered"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Username == "" {
			body.Username = "TestUser"
		}
		if body.SubCount == 0 {
			body.SubCount = 3
		}
		g, err := h.deps.Ledger.RecordGiftSub(r.Context(), body.Username, body.SubCount, body.Recipients, body.SpinTriggered)
		if err != nil {
			writeRecordError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCommands lists the spin command audit log with aggregate stats, or
// creates a test entry (POST) for development.
func (h *Handlers) HandleCommands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		commands, stats, err := h.deps.Store.Commands()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commands": commands, "stats": stats})
	case http.MethodPost:
		var body struct {
			Username string `json:"username"`
			Command  string `json:"command"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Username == "" {
			body.Username = "TestMod"
		}
		if body.Command == "" {
			body.Command = "!spin TestUser"
		}
		c, err := h.deps.Ledger.RecordCommand(r.Context(), body.Username, body.Command)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, c)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
