package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownload_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s, "admin", "JamesTech123")
	content := zipBytes(t, "payload.bin", "round trip me")

	entry := uploadEntry(t, doUpload(t, s, cookie, "payload.zip", "application/zip", content, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/download/"+entry.ID, nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !bytes.Equal(rr.Body.Bytes(), content) {
		t.Error("downloaded bytes differ from uploaded content")
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="payload.zip"` {
		t.Errorf("unexpected disposition %q", got)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("unexpected content type %q", got)
	}
}

func TestDownload_UnknownID(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s, "admin", "JamesTech123")

	req := httptest.NewRequest(http.MethodGet, "/api/download/no-such-id", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if errorBody(t, rr) != "not found" {
		t.Errorf("expected %q, got %q", "not found", errorBody(t, rr))
	}
}

// A record whose blob vanished is a detectable integrity state and is
// reported as not found, not as a server error.
func TestDownload_BlobMissing(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s, "admin", "JamesTech123")
	entry := uploadEntry(t, doUpload(t, s, cookie, "gone.zip", "application/zip", zipBytes(t, "g", "bye"), nil))

	if err := os.Remove(filepath.Join(s.cfg.UploadsDir, entry.Filename)); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/download/"+entry.ID, nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if errorBody(t, rr) != "file missing" {
		t.Errorf("expected %q, got %q", "file missing", errorBody(t, rr))
	}
}

func TestListAndDownload_Idempotent(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s, "admin", "JamesTech123")
	entry := uploadEntry(t, doUpload(t, s, cookie, "stable.zip", "application/zip", zipBytes(t, "s", "same"), nil))

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)
		return rr
	}

	list1 := get("/api/zips")
	list2 := get("/api/zips")
	if list1.Body.String() != list2.Body.String() {
		t.Error("repeated listing returned different results")
	}

	dl1 := get("/api/download/" + entry.ID)
	dl2 := get("/api/download/" + entry.ID)
	if !bytes.Equal(dl1.Body.Bytes(), dl2.Body.Bytes()) {
		t.Error("repeated download returned different bytes")
	}
}

func TestList_EmptyCollection(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s, "admin", "JamesTech123")

	req := httptest.NewRequest(http.MethodGet, "/api/zips", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		OK   bool      `json:"ok"`
		Zips []Archive `json:"zips"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || len(resp.Zips) != 0 {
		t.Errorf("expected empty ok listing, got %s", rr.Body.String())
	}
}
