package interfaces

import (
	"github.com/markit/attendance/internal/accounts"
	"github.com/markit/attendance/internal/auth"
	"github.com/markit/attendance/internal/database/requests"
	"github.com/markit/attendance/internal/database/users"
	"github.com/markit/attendance/internal/events"
	"github.com/markit/attendance/internal/gate"
	http_controllers "github.com/markit/attendance/internal/http"
	"github.com/markit/attendance/internal/identity"
	"github.com/markit/attendance/internal/mail"
	"github.com/markit/attendance/internal/scheduler"
	"github.com/markit/attendance/internal/tasks"
)

// =============================================================================
// Identity
// =============================================================================

var _ auth.TokenAuthority = (*identity.Provider)(nil)
var _ accounts.UserCreator = (*identity.Provider)(nil)

var _ gate.RoleResolver = (*auth.ClaimCache)(nil)
var _ gate.RoleResolver = gate.CachedRole

// =============================================================================
// Storage
// =============================================================================

var _ accounts.RequestStore = (*requests.Repository)(nil)
var _ http_controllers.UserCounter = (*users.Repository)(nil)

// =============================================================================
// Delivery
// =============================================================================

var _ mail.Sender = (*mail.SendGridSender)(nil)
var _ mail.Sender = (*mail.ConsoleSender)(nil)

var _ auth.ResetMailer = (*tasks.Mailer)(nil)
var _ accounts.ApprovalNotifier = (*tasks.Mailer)(nil)

// =============================================================================
// Pages
// =============================================================================

var _ auth.Renderer = (*http_controllers.Renderer)(nil)
var _ http_controllers.Flasher = (*auth.SessionManager)(nil)
var _ http_controllers.PageNotice = (*auth.SessionManager)(nil)

// =============================================================================
// Background jobs
// =============================================================================

var _ scheduler.ResetCodePurger = (*identity.Provider)(nil)
var _ scheduler.EventCompleter = (*events.Service)(nil)
