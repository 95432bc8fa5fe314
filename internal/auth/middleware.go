package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/gate"
	"github.com/markit/attendance/internal/session"
)

// ContextKeyClient holds the *Client of the current request.
const ContextKeyClient = "auth_client"

// ErrorResponse is the JSON body of a denied API request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Redirect string `json:"redirect,omitempty"`
}

// Client is one browser session as seen by a single request: its session
// store and the cached verification of its ID token.
type Client struct {
	Store  *session.Store
	Claims *ClaimCache

	signOutOnce sync.Once
}

// Middleware resolves the client of every request and guards role-protected
// routes with a gate.
type Middleware struct {
	verifier *Verifier
	sessions *SessionManager
}

func NewMiddleware(verifier *Verifier, sessions *SessionManager) *Middleware {
	return &Middleware{verifier: verifier, sessions: sessions}
}

// ClientSession creates the client's session store and resolves it from the
// stored ID token. A token that fails verification resolves to signed out.
func (m *Middleware) ClientSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.sessions.IDToken(c.Request)
		client := &Client{
			Store:  session.NewStore(),
			Claims: m.verifier.NewClaimCache(token),
		}
		defer client.Store.Close()
		c.Set(ContextKeyClient, client)

		if token == "" {
			client.Store.Publish(nil)
			c.Next()
			return
		}

		who, err := client.Claims.Identity(c.Request.Context())
		if err != nil {
			log.Debug().Err(err).Msg("Stored ID token rejected")
			m.sessions.Remove(c.Request.Context(), SessionKeyIDToken)
			who = nil
		}
		client.Store.Publish(who)
		c.Next()
	}
}

// RequireRole guards the rest of the handler chain with a gate requiring
// role. The chain runs only once the gate is Authorized. A gate still
// Loading when it is evaluated fails closed with 401.
func (m *Middleware) RequireRole(role entities.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := GetClient(c)
		if client == nil {
			m.denyAPI(c, http.StatusUnauthorized, "authentication required", "unauthenticated", gate.LoginPath)
			return
		}

		api := isAPIRequest(c)
		nav := &ginNavigator{c: c, api: api}
		g := gate.New(gate.Config{
			Required:  role,
			Store:     client.Store,
			Resolver:  client.Claims,
			Navigator: nav,
			Notifier:  &flashNotifier{sessions: m.sessions, c: c},
			SignOuter: signOuterFunc(func(ctx context.Context) { m.SignOut(c, client) }),
			View:      c.Next,
		})
		g.Mount(c.Request.Context())
		defer g.Unmount()

		switch g.State() {
		case gate.Authorized:
			return
		case gate.Unauthorized:
			if api {
				authzErr := &AuthorizationError{Kind: KindRoleMismatch, Required: role.String(), Actual: g.Role().String()}
				m.denyAPI(c, http.StatusForbidden, authzErr.Error(), string(authzErr.Kind), nav.target)
				return
			}
		case gate.Anonymous:
			if api {
				m.denyAPI(c, http.StatusUnauthorized, "authentication required", "unauthenticated", nav.target)
				return
			}
		default:
			m.denyAPI(c, http.StatusUnauthorized, "authentication required", "unauthenticated", gate.LoginPath)
			return
		}
		c.Abort()
	}
}

// SignOut revokes the client's tokens, drops the token from the browser
// session and publishes the signed-out state. Only the first call per
// request has any effect. Without a stored token the browser session is left
// untouched, so anonymous visitors never get a session row.
func (m *Middleware) SignOut(c *gin.Context, client *Client) {
	client.signOutOnce.Do(func() {
		if token := m.sessions.IDToken(c.Request); token != "" {
			m.verifier.SignOut(c.Request.Context(), token)
			if err := m.sessions.ClearIdentity(c.Request); err != nil {
				log.Warn().Err(err).Msg("Failed to clear session identity")
			}
		}
		client.Store.Publish(nil)
	})
}

func (m *Middleware) denyAPI(c *gin.Context, status int, message, code, redirect string) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code, Redirect: redirect})
}

// GetClient returns the client resolved by ClientSession, or nil.
func GetClient(c *gin.Context) *Client {
	if v, exists := c.Get(ContextKeyClient); exists {
		if client, ok := v.(*Client); ok {
			return client
		}
	}
	return nil
}

// CurrentIdentity returns the signed-in identity of the request, or nil.
func CurrentIdentity(c *gin.Context) *entities.Identity {
	client := GetClient(c)
	if client == nil {
		return nil
	}
	return client.Store.Current()
}

// isAPIRequest determines if this is an API request vs web browser request.
func isAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return c.GetHeader("Authorization") != ""
}

// ginNavigator redirects browser requests. For API requests it only records
// the target so the caller can report it in JSON.
type ginNavigator struct {
	c      *gin.Context
	api    bool
	target string
}

func (n *ginNavigator) Navigate(path string) {
	if n.target != "" || n.c.Writer.Written() {
		return
	}
	n.target = path
	if !n.api {
		n.c.Redirect(http.StatusFound, path)
	}
}

type flashNotifier struct {
	sessions *SessionManager
	c        *gin.Context
}

func (f *flashNotifier) Notify(message string) {
	f.sessions.Flash(f.c.Request, message)
}

type signOuterFunc func(ctx context.Context)

func (f signOuterFunc) SignOut(ctx context.Context) { f(ctx) }
