package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func postDelete(t *testing.T, s *Server, cookie *http.Cookie, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/delete/"+id, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestDelete_NonAdminForbidden(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s, "admin", "JamesTech123")
	entry := uploadEntry(t, doUpload(t, s, admin, "keep.zip", "application/zip", zipBytes(t, "k", "v"), nil))

	addUser(t, s, "bob", "bobpass", RoleMember)
	bob := login(t, s, "bob", "bobpass")

	rr := postDelete(t, s, bob, entry.ID)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if errorBody(t, rr) != "forbidden" {
		t.Errorf("expected %q, got %q", "forbidden", errorBody(t, rr))
	}

	// Record and blob must be untouched.
	if _, ok, _ := s.store.FindByID(entry.ID); !ok {
		t.Error("record removed by a forbidden delete")
	}
	if _, err := os.Stat(filepath.Join(s.cfg.UploadsDir, entry.Filename)); err != nil {
		t.Error("blob removed by a forbidden delete")
	}
}

func TestDelete_AdminRemovesRecordAndBlob(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s, "admin", "JamesTech123")
	entry := uploadEntry(t, doUpload(t, s, admin, "doomed.zip", "application/zip", zipBytes(t, "d", "x"), nil))

	rr := postDelete(t, s, admin, entry.ID)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	if _, ok, _ := s.store.FindByID(entry.ID); ok {
		t.Error("record still present after delete")
	}
	if _, err := os.Stat(filepath.Join(s.cfg.UploadsDir, entry.Filename)); !os.IsNotExist(err) {
		t.Error("blob still present after delete")
	}
}

func TestDelete_UnknownIDNotFound(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s, "admin", "JamesTech123")
	entry := uploadEntry(t, doUpload(t, s, admin, "stay.zip", "application/zip", zipBytes(t, "s", "x"), nil))

	rr := postDelete(t, s, admin, "does-not-exist")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if errorBody(t, rr) != "not found" {
		t.Errorf("expected %q, got %q", "not found", errorBody(t, rr))
	}

	if _, ok, _ := s.store.FindByID(entry.ID); !ok {
		t.Error("unrelated record mutated by failed delete")
	}
}

// Metadata removal is authoritative: a blob that is already gone does
// not fail the request.
func TestDelete_BlobAlreadyGone(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s, "admin", "JamesTech123")
	entry := uploadEntry(t, doUpload(t, s, admin, "half.zip", "application/zip", zipBytes(t, "h", "x"), nil))

	if err := os.Remove(filepath.Join(s.cfg.UploadsDir, entry.Filename)); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	rr := postDelete(t, s, admin, entry.ID)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if _, ok, _ := s.store.FindByID(entry.ID); ok {
		t.Error("record still present after delete")
	}
}
