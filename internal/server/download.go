// download.go - Resolve an archive id to its blob and stream it back.
package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
)

// downloadHandler handles GET /api/download/{id}. A record whose blob
// is missing from disk is reported as not found rather than a server
// error: it is a detectable data-integrity state, not an I/O failure.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, ok, err := s.store.FindByID(id)
	if err != nil {
		logError("download_lookup_failed", map[string]any{"rid": RequestIDFromContext(r.Context()), "id": id}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	path := filepath.Join(s.cfg.UploadsDir, rec.Filename)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "file missing")
			return
		}
		logError("download_stat_failed", map[string]any{"rid": RequestIDFromContext(r.Context()), "id": id}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		logError("download_open_failed", map[string]any{"rid": RequestIDFromContext(r.Context()), "id": id}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rec.OriginalName))
	w.WriteHeader(http.StatusOK)

	n, _ := io.Copy(w, f)
	metricsInstance().RecordDownload(n)
}

// listHandler handles GET /api/zips, newest first.
func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	zips, err := s.store.ListAll()
	if err != nil {
		logError("list_failed", map[string]any{"rid": RequestIDFromContext(r.Context())}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "zips": zips})
}
