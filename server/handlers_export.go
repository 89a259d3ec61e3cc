package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/spin-tracker/store"
)

// HandleExportArchive streams a zip of all three store files plus a
// metadata manifest, suitable for backup and later re-import.
func (h *Handlers) HandleExportArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	meta := store.ArchiveMeta{
		ExportDate: time.Now().UTC().Format(time.RFC3339),
		AppVersion: appVersion,
	}
	if settings, err := h.deps.Settings.Snapshot(); err == nil {
		meta.ChannelName = settings.ChannelName
		meta.BitThreshold = settings.BitThreshold
		meta.GiftSubThreshold = settings.GiftSubThreshold
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="spin_tracker_export.zip"`)
	if err := h.deps.Store.ExportArchive(w, meta); err != nil {
		// Headers are already gone; all we can do is drop the connection.
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleExportDispatcher serves one raw store file:
// GET /export/{kind} returns the file byte-for-byte, so an unmodified export
// re-imports with zero novel rows.
func (h *Handlers) HandleExportDispatcher(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kindStr := strings.TrimPrefix(r.URL.Path, "/export/")
	kind, ok := store.ParseKind(kindStr)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown store kind "+kindStr)
		return
	}
	data, err := h.deps.Store.Snapshot(kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+store.FileName(kind)+`"`)
	_, _ = w.Write(data)
}
