// server.go - HTTP server construction, routing, and lifecycle.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
)

// Server ties the stores and configuration to the HTTP surface.
type Server struct {
	cfg      Config
	users    *UserStore
	sessions *SessionStore
	store    *ArchiveStore

	handler    http.Handler
	httpServer *http.Server
}

// New prepares the on-disk layout (data dir, uploads dir, sessions
// dir, seeded admin) and wires up the router. Protected routes sit
// behind the access control gate; admin-only routes additionally check
// the role inside their handlers.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.DataDir, cfg.UploadsDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, storageErr("create_dir", err)
		}
	}

	sessions, err := NewSessionStore(filepath.Join(cfg.DataDir, "sessions"), time.Duration(cfg.SessionTTL))
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		users:    NewUserStore(filepath.Join(cfg.DataDir, "users.json")),
		sessions: sessions,
		store:    NewArchiveStore(filepath.Join(cfg.DataDir, "zips.json")),
	}

	if err := s.users.Seed(); err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.HandleFunc("/ping", s.pingHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", s.loginHandler).Methods(http.MethodPost)
	api.Handle("/logout", s.requireAuth(http.HandlerFunc(s.logoutHandler))).Methods(http.MethodPost)
	api.Handle("/upload", s.requireAuth(http.HandlerFunc(s.uploadHandler))).Methods(http.MethodPost)
	api.Handle("/zips", s.requireAuth(http.HandlerFunc(s.listHandler))).Methods(http.MethodGet)
	api.Handle("/download/{id}", s.requireAuth(http.HandlerFunc(s.downloadHandler))).Methods(http.MethodGet)
	api.Handle("/delete/{id}", s.requireAuth(http.HandlerFunc(s.deleteHandler))).Methods(http.MethodPost)
	api.Handle("/admin/integrity", s.requireAuth(http.HandlerFunc(s.integrityHandler))).Methods(http.MethodGet)
	api.Handle("/admin/stats", s.requireAuth(http.HandlerFunc(s.statsHandler))).Methods(http.MethodGet)

	var handler http.Handler = r
	if cfg.AllowCORS {
		handler = corsMiddleware(handler)
	}
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Start listens and serves until Shutdown or a listener error.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	logInfo("listening", map[string]any{"addr": s.httpServer.Addr, "version": s.cfg.Version})
	return s.httpServer.Serve(ln)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
