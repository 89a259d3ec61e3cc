package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/spin-tracker/store"
)

// maxImportBytes bounds uploaded import buffers.
const maxImportBytes = 32 << 20

// HandleAdminImport merges an uploaded CSV buffer into one store:
// POST /admin/import/{kind} with the raw CSV as the request body. Rows whose
// timestamp already exists are skipped; a .bak copy of the previous file is
// left alongside the store.
func (h *Handlers) HandleAdminImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kindStr := strings.TrimPrefix(r.URL.Path, "/admin/import/")
	kind, ok := store.ParseKind(kindStr)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown store kind "+kindStr)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	imported, err := h.deps.Store.Import(kind, raw)
	if err != nil {
		writeRecordError(w, err)
		return
	}
	slog.Info("import merged", slog.String("kind", string(kind)), slog.Int("rows", imported))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "kind": kind, "imported": imported})
}

// HandleAdminDeleteAll truncates stores back to header-only files. With no
// kind parameters every store is cleared; ?kind= may be repeated to narrow it.
func (h *Handlers) HandleAdminDeleteAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kinds := store.Kinds()
	if params := r.URL.Query()["kind"]; len(params) > 0 {
		kinds = kinds[:0]
		for _, p := range params {
			kind, ok := store.ParseKind(p)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown store kind "+p)
				return
			}
			kinds = append(kinds, kind)
		}
	}

	if err := h.deps.Store.DeleteAll(kinds...); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Warn("store data deleted", slog.Any("kinds", kinds))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "deleted": kinds})
}
