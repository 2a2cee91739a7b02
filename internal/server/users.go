// users.go - Credential store backed by a single JSON document.
//
// The users document is a JSON object keyed by username. Every lookup
// re-reads the file, so edits made to it out of band take effect on the
// next request. Malformed contents degrade to an empty store.
package server

import (
	"encoding/json"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Role is the privilege level carried by a user and their sessions.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// CanDelete reports whether the role may delete archives.
func (r Role) CanDelete() bool {
	return r == RoleAdmin
}

// CanInspect reports whether the role may read admin reports.
func (r Role) CanInspect() bool {
	return r == RoleAdmin
}

// User is one credential record. Records without a role (files written
// by older deployments or by hand) count as members.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	Name         string `json:"name"`
	Role         Role   `json:"role,omitempty"`
}

// EffectiveRole returns the user's role, defaulting to member.
func (u *User) EffectiveRole() Role {
	if u.Role == "" {
		return RoleMember
	}
	return u.Role
}

// Bootstrap administrator, created on first boot. The plaintext is
// logged once so the operator can log in before rotating it.
const (
	defaultAdminUser = "admin"
	defaultAdminPass = "JamesTech123"
	defaultAdminName = "James (Admin)"
)

// UserStore maps usernames to credential records in a single JSON file.
type UserStore struct {
	path string
}

// NewUserStore returns a store reading and writing the given file.
func NewUserStore(path string) *UserStore {
	return &UserStore{path: path}
}

func (s *UserStore) load() map[string]User {
	users := make(map[string]User)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return users
	}
	// A file that does not parse is treated as empty, never fatal.
	_ = json.Unmarshal(data, &users)
	return users
}

// Lookup re-reads the users document and returns the named record.
func (s *UserStore) Lookup(username string) (*User, bool) {
	users := s.load()
	u, ok := users[username]
	if !ok {
		return nil, false
	}
	return &u, true
}

// Verify checks a plaintext password against the user's bcrypt hash.
func (s *UserStore) Verify(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Seed creates the default administrator if no admin entry exists yet.
// Run once at startup.
func (s *UserStore) Seed() error {
	users := s.load()
	if _, ok := users[defaultAdminUser]; ok {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPass), bcrypt.DefaultCost)
	if err != nil {
		return storageErr("seed_admin", err)
	}
	users[defaultAdminUser] = User{
		Username:     defaultAdminUser,
		PasswordHash: string(hash),
		Name:         defaultAdminName,
		Role:         RoleAdmin,
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return storageErr("seed_admin", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return storageErr("seed_admin", err)
	}

	logWarn("default_admin_created", map[string]any{
		"username": defaultAdminUser,
		"password": defaultAdminPass,
	})
	return nil
}
