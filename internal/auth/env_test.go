package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/database/users"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/identity"
)

// countingAuthority counts token verifications.
type countingAuthority struct {
	TokenAuthority
	mu       sync.Mutex
	verifies int
}

func (a *countingAuthority) VerifyIDToken(ctx context.Context, raw string) (*identity.Claims, error) {
	a.mu.Lock()
	a.verifies++
	a.mu.Unlock()
	return a.TokenAuthority.VerifyIDToken(ctx, raw)
}

func (a *countingAuthority) reset() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.verifies
	a.verifies = 0
	return n
}

type fakeMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[email] = code
	return nil
}

// jsonRenderer writes page data as JSON so tests can inspect it.
type jsonRenderer struct {
	sessions *SessionManager
}

func (r jsonRenderer) HTML(c *gin.Context, status int, name string, data gin.H) {
	data["Template"] = name
	data["Notice"] = r.sessions.PopNotice(c.Request)
	c.JSON(status, data)
}

type testEnv struct {
	router    *gin.Engine
	provider  *identity.Provider
	authority *countingAuthority
	verifier  *Verifier
	sessions  *SessionManager
	mailer    *fakeMailer
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&entities.User{}, &entities.PasswordResetCode{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	provider, err := identity.NewProvider(users.NewRepository(db), config.Identity{
		TokenSecret: "test-secret",
		Issuer:      "test",
		TokenTTL:    time.Hour,
		ResetTTL:    time.Hour,
		BcryptCost:  bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	authCfg := config.Auth{
		SessionLifetime:  time.Hour,
		MaxLoginAttempts: 3,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}
	sessions, err := NewSessionManager(sqlDB, authCfg)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}

	authority := &countingAuthority{TokenAuthority: provider}
	mailer := &fakeMailer{}
	verifier := NewVerifier(authority, mailer)
	mw := NewMiddleware(verifier, sessions)

	routes := func(path string) (entities.Role, bool) {
		for _, role := range entities.Roles {
			if path == role.HomePath() || strings.HasPrefix(path, role.HomePath()+"/") {
				return role, true
			}
		}
		return "", path == "/"
	}
	ac := NewAuthController(verifier, sessions, mw, jsonRenderer{sessions: sessions}, routes, authCfg)
	t.Cleanup(ac.Stop)

	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok "+c.FullPath()) }

	router := gin.New()
	router.Use(sessions.SessionLoadSave(), mw.ClientSession())
	router.GET("/", ok)
	router.GET("/login", ac.LoginPage)
	router.GET("/password-reset", ac.PasswordResetPage)
	router.GET("/password-reset/confirm", ac.PasswordResetConfirmPage)
	ac.RegisterRoutes(router)

	router.GET("/admin", mw.RequireRole(entities.RoleAdmin), ok)
	router.GET("/student", mw.RequireRole(entities.RoleStudent), ok)
	router.GET("/organizer", mw.RequireRole(entities.RoleOrganizer), ok)
	router.GET("/organizer/events/:id", mw.RequireRole(entities.RoleOrganizer), mw.RequireRole(entities.RoleOrganizer), ok)
	router.GET("/api/admin/ping", mw.RequireRole(entities.RoleAdmin), ok)
	router.GET("/_token", func(c *gin.Context) { c.String(http.StatusOK, sessions.IDToken(c.Request)) })

	return &testEnv{
		router:    router,
		provider:  provider,
		authority: authority,
		verifier:  verifier,
		sessions:  sessions,
		mailer:    mailer,
	}
}

func (e *testEnv) createUser(t *testing.T, email, password string, role entities.Role) *entities.User {
	t.Helper()
	user, err := e.provider.CreateUser(context.Background(), identity.UserToCreate{
		Email: email, Password: password, DisplayName: strings.Split(email, "@")[0], Role: role,
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// browser keeps the session cookie between requests.
type browser struct {
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) browser() *browser {
	return &browser{env: e, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, cookie := range b.cookies {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	b.env.router.ServeHTTP(rr, req)
	for _, cookie := range rr.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(b.cookies, cookie.Name)
			continue
		}
		b.cookies[cookie.Name] = cookie
	}
	return rr
}

func (b *browser) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) currentToken(t *testing.T) string {
	t.Helper()
	token := b.get("/_token").Body.String()
	if token == "" {
		t.Fatal("no ID token in session")
	}
	return token
}

func (b *browser) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return b.post("/login", url.Values{"email": {email}, "password": {password}})
}
