// auth.go - File-backed sessions and the access control gate.
//
// A login issues an opaque session id (32 random bytes, hex) stored in
// an HttpOnly cookie. Session state lives in one JSON file per session
// under the sessions directory, with a fixed absolute expiry and no
// sliding renewal. Sessions are immutable after creation except for
// destruction, so requests resolve them without any cross-request
// locking.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const sessionCookieName = "ziphub_session"

const identityKey ctxKey = "identity"

var errNoSession = fmt.Errorf("%w: session not found or expired", ErrUnauthorized)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Session is the durable record behind one session cookie.
type Session struct {
	ID string `json:"id"`
	Identity
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore persists sessions as individual files keyed by id.
type SessionStore struct {
	dir string
	ttl time.Duration
}

// NewSessionStore returns a store writing session files under dir.
func NewSessionStore(dir string, ttl time.Duration) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, storageErr("create_sessions_dir", err)
	}
	return &SessionStore{dir: dir, ttl: ttl}, nil
}

func newSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// validSessionID rejects anything that is not 64 hex characters, which
// also keeps ids from escaping the sessions directory.
func validSessionID(id string) bool {
	raw, err := hex.DecodeString(id)
	return err == nil && len(raw) == 32
}

func (s *SessionStore) filePath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create issues a new session for the identity.
func (s *SessionStore) Create(ident Identity) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        newSessionID(),
		Identity:  ident,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, storageErr("encode_session", err)
	}
	if err := os.WriteFile(s.filePath(sess.ID), data, 0o600); err != nil {
		return nil, storageErr("write_session", err)
	}
	return sess, nil
}

// Resolve loads the session for id. Expired or corrupt session files
// are removed and resolve as not found.
func (s *SessionStore) Resolve(id string) (*Session, error) {
	if !validSessionID(id) {
		return nil, errNoSession
	}

	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNoSession
		}
		return nil, storageErr("read_session", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		_ = os.Remove(s.filePath(id))
		return nil, errNoSession
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = os.Remove(s.filePath(id))
		return nil, errNoSession
	}
	return &sess, nil
}

// Destroy removes the session file. Destroying an unknown id is not an
// error.
func (s *SessionStore) Destroy(id string) error {
	if !validSessionID(id) {
		return nil
	}
	if err := os.Remove(s.filePath(id)); err != nil && !os.IsNotExist(err) {
		return storageErr("remove_session", err)
	}
	return nil
}

// IdentityFromContext returns the authenticated identity, or nil when
// the request did not pass the gate.
func IdentityFromContext(ctx context.Context) *Identity {
	if ident, ok := ctx.Value(identityKey).(*Identity); ok {
		return ident
	}
	return nil
}

func contextWithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// requireAuth is the access control gate: it resolves the session
// cookie and rejects unauthenticated callers before any handler logic
// runs. Admin-only operations perform their role check inside the
// handler.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sess, err := s.sessions.Resolve(c.Value)
		if err != nil {
			if !errors.Is(err, errNoSession) {
				logError("session_resolve_failed", map[string]any{"rid": RequestIDFromContext(r.Context())}, err)
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ident := sess.Identity
		ctx := contextWithIdentity(r.Context(), &ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loginHandler handles POST /api/login.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	user, ok := s.users.Lookup(body.Username)
	if !ok || !s.users.Verify(user, body.Password) {
		metricsInstance().RecordLogin(false)
		writeError(w, http.StatusUnauthorized, "invalid")
		return
	}

	ident := Identity{Username: user.Username, Name: user.Name, Role: user.EffectiveRole()}
	sess, err := s.sessions.Create(ident)
	if err != nil {
		logError("session_create_failed", map[string]any{"rid": RequestIDFromContext(r.Context())}, err)
		writeError(w, http.StatusInternalServerError, "server")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	metricsInstance().RecordLogin(true)
	logInfo("login", map[string]any{"username": ident.Username})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": ident})
}

// logoutHandler handles POST /api/logout. The gate has already
// resolved the session, so a missing cookie cannot happen here.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.sessions.Destroy(c.Value); err != nil {
		logError("session_destroy_failed", map[string]any{"rid": RequestIDFromContext(r.Context())}, err)
		writeError(w, http.StatusInternalServerError, "logout")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
