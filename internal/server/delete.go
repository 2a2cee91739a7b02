// delete.go - Admin-only archive deletion.
package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
)

// deleteHandler handles POST /api/delete/{id}. The gate only proves
// the caller is authenticated; deletion additionally requires the
// admin role, and a non-admin is told forbidden, not not-found.
//
// Metadata removal is authoritative: the record is removed first, and
// the blob unlink afterwards is best effort. A blob that fails to
// unlink is logged and left behind as a tolerated orphan.
func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !ident.Role.CanDelete() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id := mux.Vars(r)["id"]
	removed, ok, err := s.store.RemoveByID(id)
	if err != nil {
		logError("delete_remove_failed", map[string]any{"rid": RequestIDFromContext(r.Context()), "id": id}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	path := filepath.Join(s.cfg.UploadsDir, removed.Filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logWarn("blob_unlink_failed", map[string]any{
			"rid": RequestIDFromContext(r.Context()),
			"id":  id,
		})
	}

	metricsInstance().RecordDelete()
	logInfo("delete", map[string]any{"id": id, "username": ident.Username})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
