// Package session owns the client's authenticated identity: decoding the
// access token, persisting it across restarts, and gating role-specific
// views.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/feedbackhq/pulse/internal/api"
)

// Role is the viewer's role as claimed by the access token.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// Session is the decoded identity plus the raw credential. The client holds
// exactly one, created by Login and destroyed by Logout.
type Session struct {
	Token  string
	UserID int
	Role   Role
}

// claims is the token payload shape the server mints. The client never
// verifies the signature; it only reads the claims, and the server re-checks
// them on every call.
type claims struct {
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// credentials models the on-disk token file.
type credentials struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds the current session and mirrors the token to a credentials
// file so the session survives a restart. Reads can come from command
// goroutines, so access is guarded; writes only ever happen from
// user-triggered login/logout.
type Store struct {
	mu      sync.RWMutex
	session *Session

	path string
	log  *zap.Logger
}

// NewStore creates a store persisting to the given credentials path.
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Login decodes the raw token and establishes the session. A token whose
// payload cannot be decoded or that lacks the role or user id claim leaves
// the store unchanged and returns an invalid-token error; the caller must
// surface it without navigating.
func (s *Store) Login(rawToken string) (Session, error) {
	sess, err := decode(rawToken)
	if err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()

	if err := s.persist(sess.Token); err != nil {
		// The in-memory session is valid either way; persistence failure
		// only costs the next restart.
		s.log.Warn("persist credentials failed", zap.Error(err))
	}
	s.log.Info("session established", zap.Int("user_id", sess.UserID), zap.String("role", string(sess.Role)))
	return sess, nil
}

// Logout clears the session and removes the credentials file. Idempotent.
func (s *Store) Logout() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("remove credentials failed", zap.Error(err))
	}
	s.log.Info("session cleared")
}

// Current returns the session, if any. Synchronous and never blocks on I/O.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Token implements api.TokenSource. Empty when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

// Restore attempts to rebuild the session from the persisted token at
// startup. A missing, malformed, or expired token is treated identically to
// no session; nothing is surfaced to the user.
func (s *Store) Restore() (Session, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Session{}, false
	}
	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		s.log.Warn("malformed credentials file", zap.Error(err))
		return Session{}, false
	}
	sess, err := decode(strings.TrimSpace(creds.Token))
	if err != nil {
		s.log.Info("persisted token unusable", zap.Error(err))
		return Session{}, false
	}
	if expired(creds.Token) {
		s.log.Info("persisted token expired")
		return Session{}, false
	}
	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()
	s.log.Info("session restored", zap.Int("user_id", sess.UserID), zap.String("role", string(sess.Role)))
	return sess, true
}

// decode reads the token payload without verifying the signature. The client
// holds no signing secret; the server authenticates every request anyway.
func decode(rawToken string) (Session, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Session{}, api.NewInvalidTokenError("empty token", nil)
	}
	var parsed claims
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, &parsed); err != nil {
		return Session{}, api.NewInvalidTokenError("undecodable token payload", err)
	}
	role := Role(parsed.Role)
	if role != RoleEmployee && role != RoleManager {
		return Session{}, api.NewInvalidTokenError(fmt.Sprintf("token missing role claim (got %q)", parsed.Role), nil)
	}
	if parsed.UserID == 0 {
		return Session{}, api.NewInvalidTokenError("token missing user_id claim", nil)
	}
	return Session{Token: rawToken, UserID: parsed.UserID, Role: role}, nil
}

// expired reports whether the token carries an exp claim in the past.
func expired(rawToken string) bool {
	var parsed claims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(rawToken), &parsed); err != nil {
		return true
	}
	if parsed.ExpiresAt == nil {
		return false
	}
	return parsed.ExpiresAt.Before(time.Now())
}

// persist writes the token file with owner-only permissions.
func (s *Store) persist(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: ensure credentials dir: %w", err)
	}
	creds := credentials{Token: token, CreatedAt: time.Now()}
	encoded, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, encoded, 0o600); err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	return nil
}
