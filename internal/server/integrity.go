// integrity.go - Reconciliation report over records and blobs.
//
// The scan is strictly read-only. Orphan blobs are tolerated and never
// cleaned up automatically; a record without its blob is the one
// corruption state the write paths are built to avoid, so finding one
// here means something outside the process touched the disk.
package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// IntegrityReport summarizes one reconciliation pass.
type IntegrityReport struct {
	CheckedAt      time.Time `json:"checkedAt"`
	Records        int       `json:"records"`
	Blobs          int       `json:"blobs"`
	MissingBlobs   []string  `json:"missingBlobs"`   // record ids whose blob is absent
	OrphanBlobs    []string  `json:"orphanBlobs"`    // blob filenames with no record
	UnreadableZips []string  `json:"unreadableZips"` // record ids whose blob does not open as a ZIP
}

// scanIntegrity walks the archive collection and the blob directory
// and cross-checks them. Each present blob is additionally opened with
// the ZIP reader; an unreadable archive is reported, never rejected or
// removed, since the upload-time extension check remains the only
// authoritative acceptance rule.
func (s *Server) scanIntegrity() (*IntegrityReport, error) {
	report := &IntegrityReport{
		CheckedAt:      time.Now().UTC(),
		MissingBlobs:   []string{},
		OrphanBlobs:    []string{},
		UnreadableZips: []string{},
	}

	zips, err := s.store.ListAll()
	if err != nil {
		return nil, err
	}
	report.Records = len(zips)

	known := make(map[string]bool, len(zips))
	for _, rec := range zips {
		known[rec.Filename] = true

		path := filepath.Join(s.cfg.UploadsDir, rec.Filename)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				report.MissingBlobs = append(report.MissingBlobs, rec.ID)
				continue
			}
			return nil, storageErr("stat_blob", err)
		}

		rc, err := zip.OpenReader(path)
		if err != nil {
			report.UnreadableZips = append(report.UnreadableZips, rec.ID)
			continue
		}
		_ = rc.Close()
	}

	entries, err := os.ReadDir(s.cfg.UploadsDir)
	if err != nil {
		return nil, storageErr("read_uploads_dir", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			// Dot-prefixed files are in-flight upload temps.
			continue
		}
		report.Blobs++
		if !known[entry.Name()] {
			report.OrphanBlobs = append(report.OrphanBlobs, entry.Name())
		}
	}

	return report, nil
}

// integrityHandler handles GET /api/admin/integrity. Admin only.
func (s *Server) integrityHandler(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	if ident == nil || !ident.Role.CanInspect() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	report, err := s.scanIntegrity()
	if err != nil {
		logError("integrity_scan_failed", map[string]any{"rid": RequestIDFromContext(r.Context())}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}

	logInfo("integrity_scan", map[string]any{
		"records":    report.Records,
		"blobs":      report.Blobs,
		"missing":    len(report.MissingBlobs),
		"orphans":    len(report.OrphanBlobs),
		"unreadable": len(report.UnreadableZips),
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": report})
}
