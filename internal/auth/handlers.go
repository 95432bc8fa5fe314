package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/identity"
)

// Renderer renders a named page template. Implementations add the fields
// every page shares (CSRF field, pending notice, current identity).
type Renderer interface {
	HTML(c *gin.Context, status int, name string, data gin.H)
}

// RouteLookup reports the role required by the route serving path. found is
// false for unknown paths; required is empty for public routes.
type RouteLookup func(path string) (required entities.Role, found bool)

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
func isLocalPath(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	// protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}
	return !strings.Contains(path, "://") && !strings.Contains(path, "\\")
}

// sanitizeRedirectPath returns path if it is a safe local redirect, else "".
func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return ""
}

// AuthController serves sign-in, sign-out and password reset.
type AuthController struct {
	verifier   *Verifier
	sessions   *SessionManager
	middleware *Middleware
	renderer   Renderer
	limiter    *RateLimiter
	routes     RouteLookup
}

func NewAuthController(verifier *Verifier, sessions *SessionManager, middleware *Middleware, renderer Renderer, routes RouteLookup, cfg config.Auth) *AuthController {
	return &AuthController{
		verifier:   verifier,
		sessions:   sessions,
		middleware: middleware,
		renderer:   renderer,
		limiter:    NewRateLimiter(cfg),
		routes:     routes,
	}
}

// RegisterRoutes registers the form posts. The pages themselves are served
// through the route table.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	router.POST("/login", ac.Login)
	router.POST("/logout", ac.Logout)
	router.POST("/password-reset", ac.PasswordReset)
	router.POST("/password-reset/confirm", ac.PasswordResetConfirm)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	ac.limiter.Stop()
}

// destination picks where a fresh sign-in lands: next when it is a known
// local path the role may open, otherwise the role's home.
func (ac *AuthController) destination(next string, role entities.Role) string {
	next = sanitizeRedirectPath(next)
	if next == "" || ac.routes == nil {
		return role.HomePath()
	}
	path, _, _ := strings.Cut(next, "?")
	required, found := ac.routes(path)
	if !found || (required != "" && required != role) {
		return role.HomePath()
	}
	return next
}

// LoginPage renders the login form. Signed-in users go straight home.
func (ac *AuthController) LoginPage(c *gin.Context) {
	next := sanitizeRedirectPath(c.Query("next"))
	if who := CurrentIdentity(c); who != nil {
		c.Redirect(http.StatusFound, ac.destination(next, who.Role))
		return
	}

	ac.renderer.HTML(c, http.StatusOK, "login.html", gin.H{
		"Title": "Login",
		"Next":  next,
		"Error": c.Query("error"),
	})
}

// Login handles the login form submission.
func (ac *AuthController) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	next := sanitizeRedirectPath(c.PostForm("next"))
	clientIP := c.ClientIP()

	fail := func(status int, message string) {
		ac.renderer.HTML(c, status, "login.html", gin.H{
			"Title": "Login",
			"Next":  next,
			"Email": email,
			"Error": message,
		})
	}

	if allowed, retryAfter := ac.limiter.Allow(clientIP, email); !allowed {
		c.Header("Retry-After", retryAfter.String())
		fail(http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		return
	}

	cred, err := ac.verifier.SignIn(c.Request.Context(), email, password)
	if err != nil {
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			authErr = &AuthError{Kind: KindNetwork, Err: err}
		}
		status := http.StatusUnauthorized
		if authErr.Kind == KindNetwork {
			status = http.StatusServiceUnavailable
			log.Error().Err(err).Msg("Sign-in failed")
		} else {
			ac.limiter.RecordFailure(clientIP, email)
		}
		fail(status, authErr.Message())
		return
	}
	ac.limiter.RecordSuccess(clientIP, email)

	if err := ac.sessions.StartSession(c.Request, cred); err != nil {
		log.Error().Err(err).Msg("Failed to start session")
		fail(http.StatusInternalServerError, "Failed to create session")
		return
	}
	if client := GetClient(c); client != nil {
		client.Store.Publish(cred.Identity)
	}

	c.Redirect(http.StatusSeeOther, ac.destination(next, cred.Identity.Role))
}

// Logout signs the client out and returns to the login page.
func (ac *AuthController) Logout(c *gin.Context) {
	if client := GetClient(c); client != nil {
		ac.middleware.SignOut(c, client)
	} else {
		ac.verifier.SignOut(c.Request.Context(), ac.sessions.IDToken(c.Request))
		_ = ac.sessions.ClearIdentity(c.Request)
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

// PasswordResetPage renders the "forgot password" form.
func (ac *AuthController) PasswordResetPage(c *gin.Context) {
	ac.renderer.HTML(c, http.StatusOK, "password_reset.html", gin.H{
		"Title": "Reset password",
		"Error": c.Query("error"),
	})
}

// PasswordReset mails a reset link.
func (ac *AuthController) PasswordReset(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	err := ac.verifier.SendPasswordReset(c.Request.Context(), email)
	if err != nil {
		status, message := http.StatusServiceUnavailable, "Could not send the reset email. Please try again."
		if IsAuthError(err, KindUserNotFound) {
			status, message = http.StatusNotFound, "No account found for this email"
		} else {
			log.Error().Err(err).Msg("Password reset failed")
		}
		ac.renderer.HTML(c, status, "password_reset.html", gin.H{
			"Title": "Reset password",
			"Email": email,
			"Error": message,
		})
		return
	}

	ac.renderer.HTML(c, http.StatusOK, "password_reset.html", gin.H{
		"Title": "Reset password",
		"Email": email,
		"Sent":  true,
	})
}

// PasswordResetConfirmPage renders the new-password form for a reset code.
func (ac *AuthController) PasswordResetConfirmPage(c *gin.Context) {
	ac.renderer.HTML(c, http.StatusOK, "password_reset_confirm.html", gin.H{
		"Title": "Choose a new password",
		"Code":  c.Query("code"),
	})
}

// PasswordResetConfirm applies a new password.
func (ac *AuthController) PasswordResetConfirm(c *gin.Context) {
	code := c.PostForm("code")
	password := c.PostForm("password")

	fail := func(message string) {
		ac.renderer.HTML(c, http.StatusBadRequest, "password_reset_confirm.html", gin.H{
			"Title": "Choose a new password",
			"Code":  code,
			"Error": message,
		})
	}

	if password != c.PostForm("confirm_password") {
		fail("Passwords do not match")
		return
	}

	err := ac.verifier.ConfirmPasswordReset(c.Request.Context(), code, password)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrPasswordTooShort):
		fail("Password must be at least 6 characters")
		return
	case errors.Is(err, identity.ErrPasswordTooLong):
		fail("Password exceeds maximum length of 72 characters")
		return
	case errors.Is(err, identity.ErrInvalidResetCode):
		fail("This reset link is invalid or has expired")
		return
	default:
		log.Error().Err(err).Msg("Password reset confirmation failed")
		fail("Could not update the password. Please try again.")
		return
	}

	ac.sessions.Flash(c.Request, "Password updated. Please sign in.")
	c.Redirect(http.StatusSeeOther, "/login")
}
