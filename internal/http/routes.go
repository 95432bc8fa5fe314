package http

import (
	"net/http"

	"github.com/markit/attendance/internal/auth"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/router"
)

// controllers groups the views the route table points at.
type controllers struct {
	health    *HealthController
	auth      *auth.AuthController
	public    *PublicController
	student   *StudentController
	organizer *OrganizerController
	admin     *AdminController
	api       *APIController
	audit     *AuditController
}

// routes declares every page and endpoint with the role it requires.
// Sign-in form posts are registered by the auth controller itself.
func (cs *controllers) routes() []router.Route {
	var routes []router.Route

	routes = append(routes,
		router.Route{Pattern: "/", View: cs.public.Home},
		router.Route{Pattern: "/health", View: cs.health.Status},
		router.Route{Pattern: "/ping", View: cs.health.Ping},
		router.Route{Pattern: "/login", View: cs.auth.LoginPage},
		router.Route{Pattern: "/password-reset", View: cs.auth.PasswordResetPage},
		router.Route{Pattern: "/password-reset/confirm", View: cs.auth.PasswordResetConfirmPage},
		router.Route{Pattern: "/contact-admin", View: cs.public.ContactAdminPage},
		router.Route{Method: http.MethodPost, Pattern: "/contact-admin", View: cs.public.ContactAdmin},
		router.Route{Pattern: "/event/:id", View: cs.public.EventPage},
		router.Route{Method: http.MethodPost, Pattern: "/api/auth/verify", View: cs.api.RequestAccount},
	)

	routes = append(routes, router.Subtree("/student", entities.RoleStudent,
		router.Route{Pattern: "/", View: cs.student.Home},
		router.Route{Pattern: "/previous-events", View: cs.student.PreviousEvents},
		router.Route{Method: http.MethodPost, Pattern: "/events/:id/register", View: cs.student.Register},
	)...)

	routes = append(routes, router.Subtree("/organizer", entities.RoleOrganizer,
		router.Route{Pattern: "/", View: cs.organizer.Home},
		router.Route{Pattern: "/events/new", View: cs.organizer.NewEventPage},
		router.Route{Method: http.MethodPost, Pattern: "/events/new", View: cs.organizer.CreateEvent},
		router.Route{Pattern: "/events/:id", View: cs.organizer.EventPage},
		router.Route{Method: http.MethodPost, Pattern: "/events/:id/attendance", View: cs.organizer.MarkAttendance},
		router.Route{Pattern: "/events/:id/report", View: cs.organizer.Report},
	)...)

	routes = append(routes, router.Subtree("/admin", entities.RoleAdmin,
		router.Route{Pattern: "/", View: cs.admin.Home},
		router.Route{Method: http.MethodPost, Pattern: "/requests/accept", View: cs.admin.AcceptRequest},
		router.Route{Method: http.MethodPost, Pattern: "/requests/reject", View: cs.admin.RejectRequest},
		router.Route{Method: http.MethodPost, Pattern: "/students", View: cs.admin.CreateStudent},
	)...)

	routes = append(routes, router.Subtree("/api/admin", entities.RoleAdmin,
		router.Route{Method: http.MethodPost, Pattern: "/create-user", View: cs.api.CreateUser},
		router.Route{Method: http.MethodPost, Pattern: "/accept", View: cs.api.Accept},
		router.Route{Method: http.MethodPost, Pattern: "/createStudent", View: cs.api.CreateStudent},
		router.Route{Pattern: "/activity", View: cs.audit.Activity},
	)...)

	return routes
}
