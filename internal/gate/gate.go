// Package gate guards a protected view behind a required role.
//
// A Gate subscribes to a session.Store when mounted. Every identity it
// receives is re-evaluated from Loading:
//
//   - no identity, or the role cannot be resolved: sign out, redirect to /login
//   - role matches: render the view (once per mount)
//   - role differs: show a notice, sign out, redirect to the fallback path
//
// A gate redirects at most once per mount and ignores later identities after
// redirecting. Unmount unsubscribes and cancels any redirect still pending.
package gate

import (
	"context"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/session"
)

// LoginPath is where anonymous viewers are sent.
const LoginPath = "/login"

// MismatchNotice is shown to a viewer whose role does not match the gate.
const MismatchNotice = "You don't have permission to access this page"

type State int

const (
	Loading State = iota
	Authorized
	Unauthorized
	Anonymous
)

func (s State) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	case Anonymous:
		return "anonymous"
	default:
		return "loading"
	}
}

// RoleResolver resolves the authoritative role of an identity, typically by
// verifying the role claim of the identity's token.
type RoleResolver interface {
	ResolveRole(ctx context.Context, identity *entities.Identity) (entities.Role, error)
}

// RoleResolverFunc adapts a function to RoleResolver.
type RoleResolverFunc func(ctx context.Context, identity *entities.Identity) (entities.Role, error)

func (f RoleResolverFunc) ResolveRole(ctx context.Context, identity *entities.Identity) (entities.Role, error) {
	return f(ctx, identity)
}

// CachedRole trusts the role cached on the identity.
var CachedRole = RoleResolverFunc(func(_ context.Context, identity *entities.Identity) (entities.Role, error) {
	if identity.Role.Valid() {
		return identity.Role, nil
	}
	return entities.DefaultRole, nil
})

type Navigator interface {
	Navigate(path string)
}

type Notifier interface {
	Notify(message string)
}

// SignOuter ends the current session. It must be idempotent.
type SignOuter interface {
	SignOut(ctx context.Context)
}

// DefaultFallback sends a mismatched viewer to the login page with the home
// of the role they actually hold as the next path.
func DefaultFallback(actual entities.Role) string {
	return LoginPath + "?next=" + url.QueryEscape(actual.HomePath())
}

type Config struct {
	Required  entities.Role
	Store     *session.Store
	Resolver  RoleResolver // CachedRole when nil
	Navigator Navigator
	Notifier  Notifier
	SignOuter SignOuter
	Fallback  func(actual entities.Role) string // DefaultFallback when nil
	View      func()
}

type Gate struct {
	cfg Config

	mu          sync.Mutex
	state       State
	role        entities.Role
	mounted     bool
	rendered    bool
	redirected  bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

func New(cfg Config) *Gate {
	if cfg.Resolver == nil {
		cfg.Resolver = CachedRole
	}
	if cfg.Fallback == nil {
		cfg.Fallback = DefaultFallback
	}
	return &Gate{cfg: cfg}
}

// Mount subscribes the gate to its store. If the store has resolved, the
// identity is evaluated before Mount returns.
func (g *Gate) Mount(ctx context.Context) {
	g.mu.Lock()
	if g.mounted {
		g.mu.Unlock()
		return
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.mounted = true
	g.state = Loading
	g.role = ""
	g.rendered = false
	g.redirected = false
	g.mu.Unlock()

	unsubscribe := g.cfg.Store.Subscribe(g.onIdentity)

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.mounted {
		// unmounted while the first identity was being evaluated
		unsubscribe()
		return
	}
	g.unsubscribe = unsubscribe
}

// Unmount unsubscribes and cancels anything still in flight.
func (g *Gate) Unmount() {
	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}
	g.mounted = false
	unsubscribe, cancel := g.unsubscribe, g.cancel
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	cancel()
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Role is the role resolved from the last identity, empty if none resolved.
func (g *Gate) Role() entities.Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.role
}

// Rendered reports whether the view ran during the current mount.
func (g *Gate) Rendered() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rendered
}

// onIdentity runs serialized by the store.
func (g *Gate) onIdentity(identity *entities.Identity) {
	g.mu.Lock()
	if !g.mounted || g.redirected {
		g.mu.Unlock()
		return
	}
	g.state = Loading
	g.role = ""
	ctx := g.ctx
	g.mu.Unlock()

	if identity == nil {
		g.deny(ctx, Anonymous, "")
		return
	}

	role, err := g.cfg.Resolver.ResolveRole(ctx, identity)
	if err != nil {
		log.Debug().Err(err).Str("user_id", identity.ID).Msg("Role resolution failed, treating viewer as anonymous")
		g.deny(ctx, Anonymous, "")
		return
	}
	if role != g.cfg.Required {
		g.deny(ctx, Unauthorized, role)
		return
	}

	g.mu.Lock()
	if !g.mounted || ctx.Err() != nil {
		g.mu.Unlock()
		return
	}
	g.state = Authorized
	g.role = role
	render := !g.rendered
	g.rendered = true
	g.mu.Unlock()

	if render && g.cfg.View != nil {
		g.cfg.View()
	}
}

func (g *Gate) deny(ctx context.Context, state State, actual entities.Role) {
	g.mu.Lock()
	if !g.mounted || g.redirected || ctx.Err() != nil {
		g.mu.Unlock()
		return
	}
	g.state = state
	g.role = actual
	g.redirected = true
	g.mu.Unlock()

	target := LoginPath
	if state == Unauthorized {
		target = g.cfg.Fallback(actual)
		if g.cfg.Notifier != nil {
			g.cfg.Notifier.Notify(MismatchNotice)
		}
		log.Info().
			Str("required", g.cfg.Required.String()).
			Str("actual", actual.String()).
			Msg("Role mismatch, signing out")
	}

	if g.cfg.SignOuter != nil {
		g.cfg.SignOuter.SignOut(ctx)
	}

	g.mu.Lock()
	live := g.mounted && ctx.Err() == nil
	g.mu.Unlock()
	if live && g.cfg.Navigator != nil {
		g.cfg.Navigator.Navigate(target)
	}
}
