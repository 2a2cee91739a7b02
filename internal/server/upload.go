// upload.go - Multipart ZIP upload: validate, store blob, append metadata.
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxMultipartMemory bounds how much of the form is held in memory
// before spilling to temp files.
const maxMultipartMemory = 32 << 20

// uploadHandler handles POST /api/upload. The form must carry the file
// under the "zipfile" field; creatorName, channel, repo, moreDetails
// and description are optional metadata fields.
//
// The original filename extension is the authoritative type check: it
// must be ".zip" case-insensitively. The declared content type is
// informational only and never causes rejection by itself. The body is
// capped before anything is persisted, and the blob is fully written
// and renamed into place before the metadata record is inserted, so no
// record can ever reference a partial blob.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if s.cfg.MaxUploadBytes > 0 {
		if r.ContentLength > s.cfg.MaxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "no file")
		return
	}

	file, header, err := r.FormFile("zipfile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file")
		return
	}
	defer func() { _ = file.Close() }()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".zip") {
		writeError(w, http.StatusBadRequest, "only .zip allowed")
		return
	}

	id := uuid.NewString()
	rec, err := s.storeBlob(id, header.Filename, file)
	if err != nil {
		logError("blob_write_failed", map[string]any{
			"rid": RequestIDFromContext(r.Context()),
			"id":  id,
		}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}

	rec.CreatorName = formValueDefault(r, "creatorName", "Unknown")
	rec.Channel = r.FormValue("channel")
	rec.Repo = r.FormValue("repo")
	rec.MoreDetails = r.FormValue("moreDetails")
	rec.Description = r.FormValue("description")
	rec.UploadedBy = ident.Username
	rec.CreatedAt = time.Now().UTC()

	if err := s.store.InsertFront(*rec); err != nil {
		// The blob stays behind as a tolerated orphan; the integrity
		// scan will report it.
		logError("metadata_insert_failed", map[string]any{
			"rid": RequestIDFromContext(r.Context()),
			"id":  id,
		}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}

	metricsInstance().RecordUpload(rec.Size)
	logInfo("upload", map[string]any{
		"id":       rec.ID,
		"name":     rec.OriginalName,
		"size":     rec.Size,
		"username": ident.Username,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "entry": rec})
}

// storeBlob streams the upload to a temp file in the blob directory
// while hashing it, then renames it to <id>.zip. The rename makes the
// blob visible atomically; a failure at any point leaves at most a
// temp file behind, never a half-written blob under its final name.
func (s *Server) storeBlob(id, originalName string, src io.Reader) (*Archive, error) {
	tmp, err := os.CreateTemp(s.cfg.UploadsDir, ".upload-*")
	if err != nil {
		return nil, storageErr("create_blob_temp", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		return nil, storageErr("write_blob", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, storageErr("sync_blob", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, storageErr("close_blob", err)
	}

	filename := id + ".zip"
	if err := os.Rename(tmpPath, filepath.Join(s.cfg.UploadsDir, filename)); err != nil {
		return nil, storageErr("rename_blob", err)
	}

	return &Archive{
		ID:           id,
		Filename:     filename,
		OriginalName: originalName,
		Size:         size,
		SHA256:       hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func formValueDefault(r *http.Request, key, def string) string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return v
	}
	return def
}
