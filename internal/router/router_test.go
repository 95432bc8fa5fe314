package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markit/attendance/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func view(name string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, name+" "+c.Param("id")) }
}

func testTable(t *testing.T) *Table {
	t.Helper()
	routes := []Route{
		{Pattern: "/", View: view("home")},
		{Pattern: "/login", View: view("login")},
		{Pattern: "/event/:id", View: view("event")},
	}
	routes = append(routes, Subtree("/student", entities.RoleStudent,
		Route{Pattern: "/", View: view("student")},
		Route{Pattern: "/previous-events", View: view("previous")},
		Route{Method: http.MethodPost, Pattern: "/events/:id/register", View: view("register")},
	)...)
	routes = append(routes, Subtree("/organizer", entities.RoleOrganizer,
		Route{Pattern: "/", View: view("organizer")},
		Route{Pattern: "/events/new", View: view("new-event")},
		Route{Pattern: "/events/:id", View: view("event-detail")},
	)...)
	routes = append(routes, Subtree("/admin", entities.RoleAdmin,
		Route{Pattern: "/", View: view("admin")},
	)...)
	routes = append(routes, Route{Pattern: "/docs/*path", View: view("docs")})

	table, err := New(func(c *gin.Context) { c.String(http.StatusNotFound, "not found") }, routes...)
	require.NoError(t, err)
	return table
}

func TestTable_Lookup(t *testing.T) {
	table := testTable(t)

	tests := []struct {
		path      string
		wantRole  entities.Role
		wantFound bool
	}{
		{"/", "", true},
		{"/login", "", true},
		{"/login?next=/admin", "", true},
		{"/event/42", "", true},
		{"/student", entities.RoleStudent, true},
		{"/student/", entities.RoleStudent, true},
		{"/student/previous-events", entities.RoleStudent, true},
		{"/organizer/events/new", entities.RoleOrganizer, true},
		{"/organizer/events/e-1", entities.RoleOrganizer, true},
		{"/admin", entities.RoleAdmin, true},
		{"/docs/a/b/c", "", true},
		{"/admin/unknown", "", false},
		{"/event", "", false},
		{"/student/events/1/register", "", false}, // POST only
		{"/nowhere", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			role, found := table.Lookup(tt.path)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantRole, role)
		})
	}
}

func TestTable_MatchPrefersStaticSegments(t *testing.T) {
	table := testTable(t)

	route, params, ok := table.Match(http.MethodGet, "/organizer/events/new")
	require.True(t, ok)
	assert.Equal(t, "/organizer/events/new", route.Pattern)
	assert.Empty(t, params)

	route, params, ok = table.Match(http.MethodGet, "/organizer/events/abc")
	require.True(t, ok)
	assert.Equal(t, "/organizer/events/:id", route.Pattern)
	assert.Equal(t, map[string]string{"id": "abc"}, params)

	route, params, ok = table.Match(http.MethodGet, "/docs/guide/intro")
	require.True(t, ok)
	assert.Equal(t, "/docs/*path", route.Pattern)
	assert.Equal(t, "/guide/intro", params["path"])
}

func TestNew_RejectsBadRoutes(t *testing.T) {
	ok := view("ok")
	tests := []struct {
		name  string
		route Route
	}{
		{"no view", Route{Pattern: "/x"}},
		{"relative", Route{Pattern: "x", View: ok}},
		{"unknown role", Route{Pattern: "/x", Required: "root", View: ok}},
		{"empty segment", Route{Pattern: "/a//b", View: ok}},
		{"unnamed param", Route{Pattern: "/a/:", View: ok}},
		{"catch-all not last", Route{Pattern: "/a/*rest/b", View: ok}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, tt.route)
			assert.Error(t, err)
		})
	}

	_, err := New(nil, Route{Pattern: "/x", View: ok}, Route{Pattern: "/x", View: ok})
	assert.Error(t, err, "duplicate routes")
}

func TestTable_Mount(t *testing.T) {
	table := testTable(t)

	var guarded []entities.Role
	guard := func(role entities.Role) gin.HandlerFunc {
		return func(c *gin.Context) {
			guarded = append(guarded, role)
			if c.GetHeader("X-Role") != string(role) {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
		}
	}

	engine := gin.New()
	table.Mount(engine, guard)

	serve := func(method, path, role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if role != "" {
			req.Header.Set("X-Role", role)
		}
		rr := httptest.NewRecorder()
		engine.ServeHTTP(rr, req)
		return rr
	}

	rr := serve(http.MethodGet, "/event/7", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "event 7", rr.Body.String())
	assert.Empty(t, guarded, "public routes are not gated")

	rr = serve(http.MethodGet, "/organizer/events/7", "organizer")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "event-detail 7", rr.Body.String())

	rr = serve(http.MethodGet, "/admin", "student")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, []entities.Role{entities.RoleOrganizer, entities.RoleAdmin}, guarded)

	rr = serve(http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found", rr.Body.String())
	assert.Empty(t, rr.Header().Get("Location"), "unmatched paths never redirect")
}
