package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/auth"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/router"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// Router is the configured engine plus the route table it serves.
type Router struct {
	*gin.Engine
	Table *router.Table

	authController *auth.AuthController
}

// Close stops background work owned by the router.
func (r *Router) Close() {
	r.authController.Stop()
}

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) (*Router, error) {
	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	// Apply security headers to all responses
	engine.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		engine.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		engine.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	engine.Use(cfg.SessionManager.SessionLoadSave())

	// Every request gets its own client session store
	middleware := auth.NewMiddleware(cfg.Verifier, cfg.SessionManager)
	engine.Use(middleware.ClientSession())

	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	engine.SetHTMLTemplate(tmpl)

	renderer := NewRenderer(cfg.SessionManager, cfg.AppName)

	// The auth controller validates "next" against the table built from its own views.
	var table *router.Table
	lookup := func(path string) (entities.Role, bool) {
		return table.Lookup(path)
	}
	authController := auth.NewAuthController(cfg.Verifier, cfg.SessionManager, middleware, renderer, lookup, cfg.AuthConfig)
	authController.RegisterRoutes(engine)

	cs := &controllers{
		health:    NewHealthController(cfg.Database, cfg.Version),
		auth:      authController,
		public:    NewPublicController(cfg.Events, cfg.Accounts, renderer),
		student:   NewStudentController(cfg.Events, renderer, cfg.SessionManager),
		organizer: NewOrganizerController(cfg.Events, cfg.Audit, renderer, cfg.SessionManager),
		admin:     NewAdminController(cfg.Accounts, cfg.Users, cfg.Audit, renderer, cfg.SessionManager),
		api:       NewAPIController(cfg.Accounts, cfg.Audit),
		audit:     NewAuditController(cfg.Audit),
	}

	table, err = router.New(renderer.NotFound, cs.routes()...)
	if err != nil {
		authController.Stop()
		return nil, err
	}
	table.Mount(engine, middleware.RequireRole)

	return &Router{Engine: engine, Table: table, authController: authController}, nil
}
