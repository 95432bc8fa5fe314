package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/accounts"
	"github.com/markit/attendance/internal/database/requests"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/identity"
)

var requestStatuses = []entities.AccountRequestStatus{
	entities.AccountRequestPending,
	entities.AccountRequestVerified,
	entities.AccountRequestRejected,
}

// UserCounter reports how many accounts hold each role.
type UserCounter interface {
	CountByRole(ctx context.Context) (map[entities.Role]int64, error)
}

// AdminController serves the admin dashboard: request review and student
// enrolment.
type AdminController struct {
	accounts *accounts.Service
	users    UserCounter
	audit    AuditTrail
	renderer *Renderer
	flasher  Flasher
}

const recentActivity = 10

func NewAdminController(accounts *accounts.Service, users UserCounter, audit AuditTrail, renderer *Renderer, flasher Flasher) *AdminController {
	return &AdminController{accounts: accounts, users: users, audit: audit, renderer: renderer, flasher: flasher}
}

func (ac *AdminController) Home(c *gin.Context) {
	ac.renderHome(c, http.StatusOK, accounts.StudentInput{Active: true}, nil)
}

func (ac *AdminController) renderHome(c *gin.Context, status int, student accounts.StudentInput, fields map[string]string) {
	filter := entities.AccountRequestStatus(c.DefaultQuery("status", string(entities.AccountRequestPending)))
	if !validRequestStatus(filter) {
		filter = entities.AccountRequestPending
	}

	list, err := ac.accounts.ListRequests(c.Request.Context(), filter)
	if err != nil {
		ac.renderer.renderError(c, err, "list requests")
		return
	}
	counts, err := ac.users.CountByRole(c.Request.Context())
	if err != nil {
		ac.renderer.renderError(c, err, "count users")
		return
	}
	activity, err := ac.audit.Recent(c.Request.Context(), recentActivity)
	if err != nil {
		ac.renderer.renderError(c, err, "recent activity")
		return
	}
	byName := make(map[string]int64, len(counts))
	for role, n := range counts {
		byName[role.String()] = n
	}

	if fields == nil {
		fields = map[string]string{}
	}
	ac.renderer.HTML(c, status, "admin_home.html", gin.H{
		"Title":                 "Admin",
		"Requests":              list,
		"Status":                filter,
		"Statuses":              requestStatuses,
		"Counts":                byName,
		"Activity":              activity,
		"AccountRequestSubject": accounts.AccountRequestSubject,
		"Student":               student,
		"Errors":                fields,
	})
}

// AcceptRequest creates the account of a pending request and notifies the club.
func (ac *AdminController) AcceptRequest(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	var in accounts.AcceptInput
	if err := bindForm(c, &in); err != nil {
		redirectWithNotice(c, ac.flasher, "/admin", "Could not read the form.")
		return
	}

	user, err := ac.accounts.Accept(c.Request.Context(), in)
	ac.logReview(who.ID, in.Email, true, err)
	if err != nil {
		if notice, ok := requestNotice(err); ok {
			redirectWithNotice(c, ac.flasher, "/admin", notice)
			return
		}
		ac.renderer.renderError(c, err, "accept request")
		return
	}
	redirectWithNotice(c, ac.flasher, "/admin", "Created "+user.Role().String()+" account for "+user.Email+".")
}

func (ac *AdminController) RejectRequest(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	email := c.PostForm("email")
	err := ac.accounts.Reject(c.Request.Context(), email)
	ac.logReview(who.ID, email, false, err)
	if err != nil {
		if notice, ok := requestNotice(err); ok {
			redirectWithNotice(c, ac.flasher, "/admin", notice)
			return
		}
		ac.renderer.renderError(c, err, "reject request")
		return
	}
	redirectWithNotice(c, ac.flasher, "/admin", "Request from "+email+" closed.")
}

// CreateStudent enrols a student from the dashboard form. Invalid input
// re-renders the dashboard with the field errors.
func (ac *AdminController) CreateStudent(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	var in accounts.StudentInput
	if err := bindForm(c, &in); err != nil {
		ac.renderHome(c, http.StatusBadRequest, in, map[string]string{"joinedYear": "joinedYear must be a number"})
		return
	}

	user, err := ac.accounts.CreateStudent(c.Request.Context(), in)
	if fields, ok := fieldErrors(err); ok {
		ac.renderHome(c, http.StatusBadRequest, in, fields)
		return
	}
	if errors.Is(err, identity.ErrEmailExists) {
		ac.audit.LogEnrol(who.ID, in.Email, err)
		ac.renderHome(c, http.StatusConflict, in, map[string]string{"email": "email is already in use"})
		return
	}
	if err != nil {
		ac.renderer.renderError(c, err, "create student")
		return
	}
	ac.audit.LogEnrol(who.ID, user.Email, nil)
	redirectWithNotice(c, ac.flasher, "/admin", "Enrolled "+user.DisplayName+".")
}

func (ac *AdminController) logReview(actorID, email string, accepted bool, err error) {
	if !auditable(err) {
		return
	}
	ac.audit.LogReview(actorID, email, accepted, err)
}

// requestNotice turns an expected request review failure into a notice.
func requestNotice(err error) (string, bool) {
	if fields, ok := fieldErrors(err); ok {
		for _, msg := range fields {
			return msg, true
		}
	}
	switch {
	case errors.Is(err, requests.ErrNotFound):
		return "No request from that email.", true
	case errors.Is(err, requests.ErrAlreadyHandled):
		return "That request was already reviewed.", true
	case errors.Is(err, accounts.ErrNotAccountRequest):
		return "That message does not ask for an account.", true
	case errors.Is(err, accounts.ErrPasswordMissing):
		return "The request has no password. Set one when accepting.", true
	case errors.Is(err, identity.ErrEmailExists):
		return "An account with that email already exists.", true
	}
	return "", false
}

func validRequestStatus(s entities.AccountRequestStatus) bool {
	for _, known := range requestStatuses {
		if s == known {
			return true
		}
	}
	return false
}
