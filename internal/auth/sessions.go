package auth

import (
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/markit/attendance/internal/config"
)

// Session data keys
const (
	SessionKeyIDToken = "id_token"
	SessionKeyLoginAt = "login_at"
	SessionKeyNotice  = "notice"
)

func init() {
	gob.Register(time.Time{})
}

// SessionManager keeps each browser's ID token in a server-side session.
// The token is the source of truth; the identity is re-derived from it on
// every request.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a configured session manager.
// The sqlDB parameter should be the underlying *sql.DB from GORM.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)
	sm.Lifetime = cfg.SessionLifetime
	sm.IdleTimeout = cfg.SessionLifetime / 2

	sm.Cookie.Name = "markit_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	// Lax so the session survives the redirect back from a reset email link.
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// StartSession stores the token of a fresh sign-in.
func (sm *SessionManager) StartSession(r *http.Request, cred *Credential) error {
	// Renew token to prevent session fixation
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}
	sm.Put(r.Context(), SessionKeyIDToken, cred.IDToken)
	sm.Put(r.Context(), SessionKeyLoginAt, time.Now())
	return nil
}

// IDToken returns the stored token, or "" when signed out.
func (sm *SessionManager) IDToken(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyIDToken)
}

// LoginAt returns when the current session signed in.
func (sm *SessionManager) LoginAt(r *http.Request) time.Time {
	t, _ := sm.Get(r.Context(), SessionKeyLoginAt).(time.Time)
	return t
}

// ClearIdentity forgets the token but keeps the session itself, so a notice
// flashed during sign-out is still shown on the next page.
func (sm *SessionManager) ClearIdentity(r *http.Request) error {
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}
	sm.Remove(r.Context(), SessionKeyIDToken)
	sm.Remove(r.Context(), SessionKeyLoginAt)
	return nil
}

// Flash stores a one-time notice for the next rendered page.
func (sm *SessionManager) Flash(r *http.Request, message string) {
	sm.Put(r.Context(), SessionKeyNotice, message)
}

// PopNotice returns and clears the pending notice.
func (sm *SessionManager) PopNotice(r *http.Request) string {
	return sm.PopString(r.Context(), SessionKeyNotice)
}
