// Package router holds the declarative route table: each path pattern maps
// to a view and the role it requires. Protected routes are mounted behind a
// role gate; the table itself never redirects.
package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/entities"
)

// Route maps a pattern to a view. Patterns use gin syntax: ":name" matches
// one segment and a trailing "*name" matches the rest of the path. An empty
// Required makes the route public.
type Route struct {
	Method   string
	Pattern  string
	Required entities.Role
	View     gin.HandlerFunc
}

// Guard builds the gate middleware for a required role.
type Guard func(role entities.Role) gin.HandlerFunc

// Table is an immutable set of routes plus the terminal not-found view.
type Table struct {
	routes   []Route
	parsed   [][]segment
	notFound gin.HandlerFunc
}

type segmentKind int

const (
	static segmentKind = iota
	param
	catchAll
)

type segment struct {
	kind segmentKind
	text string
}

// Subtree prefixes every pattern and requires role on every route that does
// not name its own.
func Subtree(prefix string, role entities.Role, routes ...Route) []Route {
	prefix = strings.TrimRight(prefix, "/")
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		if r.Pattern == "/" || r.Pattern == "" {
			r.Pattern = prefix
		} else {
			r.Pattern = prefix + r.Pattern
		}
		if r.Required == "" {
			r.Required = role
		}
		out = append(out, r)
	}
	return out
}

// New validates the routes and builds a table. notFound may be nil, in which
// case unmatched paths get a plain 404.
func New(notFound gin.HandlerFunc, routes ...Route) (*Table, error) {
	t := &Table{notFound: notFound}
	if t.notFound == nil {
		t.notFound = func(c *gin.Context) { c.String(http.StatusNotFound, "404 page not found") }
	}

	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		if r.Method == "" {
			r.Method = http.MethodGet
		}
		if r.View == nil {
			return nil, fmt.Errorf("route %s %s has no view", r.Method, r.Pattern)
		}
		if r.Required != "" && !r.Required.Valid() {
			return nil, fmt.Errorf("route %s %s requires unknown role %q", r.Method, r.Pattern, r.Required)
		}
		segs, err := parse(r.Pattern)
		if err != nil {
			return nil, err
		}
		key := r.Method + " " + r.Pattern
		if seen[key] {
			return nil, fmt.Errorf("duplicate route %s", key)
		}
		seen[key] = true

		t.routes = append(t.routes, r)
		t.parsed = append(t.parsed, segs)
	}
	return t, nil
}

func parse(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("pattern %q must start with /", pattern)
	}
	if pattern == "/" {
		return nil, nil
	}
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segs := make([]segment, 0, len(parts))
	for i, p := range parts {
		switch {
		case p == "":
			return nil, fmt.Errorf("pattern %q has an empty segment", pattern)
		case strings.HasPrefix(p, ":"):
			if len(p) == 1 {
				return nil, fmt.Errorf("pattern %q has an unnamed parameter", pattern)
			}
			segs = append(segs, segment{kind: param, text: p[1:]})
		case strings.HasPrefix(p, "*"):
			if i != len(parts)-1 || len(p) == 1 {
				return nil, fmt.Errorf("pattern %q: catch-all must be named and last", pattern)
			}
			segs = append(segs, segment{kind: catchAll, text: p[1:]})
		default:
			segs = append(segs, segment{kind: static, text: p})
		}
	}
	return segs, nil
}

// Match finds the route serving method and path. Static segments win over
// parameters, and parameters over catch-alls.
func (t *Table) Match(method, path string) (*Route, map[string]string, bool) {
	path, _, _ = strings.Cut(path, "?")
	var parts []string
	if trimmed := strings.Trim(path, "/"); trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}

	best, bestScore := -1, -1
	var bestParams map[string]string
	for i, r := range t.routes {
		if r.Method != method {
			continue
		}
		params, score, ok := match(t.parsed[i], parts)
		if ok && score > bestScore {
			best, bestScore, bestParams = i, score, params
		}
	}
	if best < 0 {
		return nil, nil, false
	}
	route := t.routes[best]
	return &route, bestParams, true
}

// match scores a candidate by the specificity of its segments.
func match(segs []segment, parts []string) (map[string]string, int, bool) {
	params := make(map[string]string)
	score := 0
	for i, s := range segs {
		if s.kind == catchAll {
			params[s.text] = "/" + strings.Join(parts[i:], "/")
			return params, score, true
		}
		if i >= len(parts) {
			return nil, 0, false
		}
		switch s.kind {
		case static:
			if s.text != parts[i] {
				return nil, 0, false
			}
			score += 3
		case param:
			params[s.text] = parts[i]
			score += 2
		}
	}
	if len(parts) != len(segs) {
		return nil, 0, false
	}
	return params, score + 1, true
}

// Lookup reports the role required to view path with GET. found is false
// when no route serves it.
func (t *Table) Lookup(path string) (entities.Role, bool) {
	route, _, ok := t.Match(http.MethodGet, path)
	if !ok {
		return "", false
	}
	return route.Required, true
}

// Routes returns a copy of the table's routes.
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Mount registers every route on r. Protected routes run guard(role) before
// the view. On an engine the not-found view is installed as NoRoute.
func (t *Table) Mount(r gin.IRouter, guard Guard) {
	for _, route := range t.routes {
		handlers := []gin.HandlerFunc{route.View}
		if route.Required != "" {
			handlers = append([]gin.HandlerFunc{guard(route.Required)}, handlers...)
		}
		r.Handle(route.Method, route.Pattern, handlers...)
	}
	if engine, ok := r.(*gin.Engine); ok {
		engine.NoRoute(t.notFound)
	}
}

// NotFound is the terminal view for unmatched paths.
func (t *Table) NotFound() gin.HandlerFunc {
	return t.notFound
}
