package http

import (
	"github.com/markit/attendance/internal/accounts"
	"github.com/markit/attendance/internal/auth"
	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/database"
	"github.com/markit/attendance/internal/events"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Accounts *accounts.Service
	Events   *events.Service
	Users    UserCounter
	Audit    AuditTrail

	// Authentication
	Verifier       *auth.Verifier
	SessionManager *auth.SessionManager
	AuthConfig     config.Auth

	// CSRF protection is off when the secret is empty.
	CSRFSecret    []byte
	SecureCookies bool

	// Application info
	AppName string
	Version string
}
