// metrics.go - In-process counters surfaced on the admin stats endpoint.
package server

import (
	"net/http"
	"sync"
)

// Metrics holds application counters. All methods are safe for
// concurrent use.
type Metrics struct {
	mu sync.Mutex

	uploadsTotal       int64
	uploadBytesTotal   int64
	downloadsTotal     int64
	downloadBytesTotal int64
	deletesTotal       int64

	loginSuccessTotal int64
	loginFailureTotal int64

	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64
}

var globalMetrics = &Metrics{}

func metricsInstance() *Metrics {
	return globalMetrics
}

// RecordRequest records one served request by response status class.
func (m *Metrics) RecordRequest(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case status >= 500:
		m.requestErrors5xx++
	case status >= 400:
		m.requestErrors4xx++
	}
}

// RecordUpload records a successful upload.
func (m *Metrics) RecordUpload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
}

// RecordDownload records a successful download.
func (m *Metrics) RecordDownload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
}

// RecordDelete records a successful archive deletion.
func (m *Metrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletesTotal++
}

// RecordLogin records a login attempt outcome.
func (m *Metrics) RecordLogin(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailureTotal++
	}
}

// Snapshot returns a copy of all counters keyed by metric name.
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int64{
		"uploads_total":        m.uploadsTotal,
		"upload_bytes_total":   m.uploadBytesTotal,
		"downloads_total":      m.downloadsTotal,
		"download_bytes_total": m.downloadBytesTotal,
		"deletes_total":        m.deletesTotal,
		"login_success_total":  m.loginSuccessTotal,
		"login_failure_total":  m.loginFailureTotal,
		"requests_total":       m.requestsTotal,
		"request_errors_4xx":   m.requestErrors4xx,
		"request_errors_5xx":   m.requestErrors5xx,
	}
}

// statsHandler returns the counter snapshot plus current archive totals.
// Admin only.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	if ident == nil || !ident.Role.CanInspect() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	zips, err := s.store.ListAll()
	if err != nil {
		logError("stats_list_failed", map[string]any{"rid": RequestIDFromContext(r.Context())}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}

	var totalBytes int64
	for _, z := range zips {
		totalBytes += z.Size
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"stats": map[string]any{
			"counters":     metricsInstance().Snapshot(),
			"archiveCount": len(zips),
			"archiveBytes": totalBytes,
		},
	})
}
