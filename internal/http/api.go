package http

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/accounts"
	"github.com/markit/attendance/internal/auth"
	"github.com/markit/attendance/internal/database/requests"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/identity"
)

// UserView is the JSON form of a created account.
type UserView struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	Disabled    bool   `json:"disabled"`
}

func newUserView(u *entities.User) UserView {
	return UserView{
		UID:         u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role().String(),
		Disabled:    !u.Active,
	}
}

// APIController exposes account management as JSON endpoints.
type APIController struct {
	accounts *accounts.Service
	audit    AuditTrail
}

func NewAPIController(accounts *accounts.Service, audit AuditTrail) *APIController {
	return &APIController{accounts: accounts, audit: audit}
}

// RequestAccount stores a contact-admin submission sent as JSON.
func (ac *APIController) RequestAccount(c *gin.Context) {
	var in accounts.RequestInput
	if err := bindJSON(c, &in); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	req, err := ac.accounts.RequestAccount(c.Request.Context(), in)
	if !ac.handleError(c, err, "request account") {
		return
	}
	respondSuccess(c, "Request submitted successfully", gin.H{
		"email":  req.Email,
		"status": req.Status,
	})
}

// CreateUser creates a student account from an email and password.
func (ac *APIController) CreateUser(c *gin.Context) {
	var in accounts.NewUserInput
	if err := bindJSON(c, &in); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	user, err := ac.accounts.CreateUser(c.Request.Context(), in)
	if !ac.handleError(c, err, "create user") {
		return
	}
	respondSuccess(c, "User created successfully", newUserView(user))
}

// Accept approves an account request.
func (ac *APIController) Accept(c *gin.Context) {
	var in accounts.AcceptInput
	if err := bindJSON(c, &in); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	user, err := ac.accounts.Accept(c.Request.Context(), in)
	ac.logAdminAction(c, err, func(actorID string) { ac.audit.LogReview(actorID, in.Email, true, err) })
	if !ac.handleError(c, err, "accept request") {
		return
	}
	respondCreated(c, "User registered successfully", newUserView(user))
}

// CreateStudent enrols a student with their profile.
func (ac *APIController) CreateStudent(c *gin.Context) {
	var in accounts.StudentInput
	if err := bindJSON(c, &in); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	user, err := ac.accounts.CreateStudent(c.Request.Context(), in)
	ac.logAdminAction(c, err, func(actorID string) { ac.audit.LogEnrol(actorID, in.Email, err) })
	if !ac.handleError(c, err, "create student") {
		return
	}
	respondSuccess(c, "User created successfully", newUserView(user))
}

func (ac *APIController) logAdminAction(c *gin.Context, err error, record func(actorID string)) {
	if !auditable(err) {
		return
	}
	who := auth.CurrentIdentity(c)
	if who == nil {
		return
	}
	record(who.ID)
}

// handleError answers a failed account operation and reports whether the
// handler may continue.
func (ac *APIController) handleError(c *gin.Context, err error, context string) bool {
	if err == nil {
		return true
	}
	if fields, ok := fieldErrors(err); ok {
		respondInvalid(c, fields)
		return false
	}
	switch {
	case errors.Is(err, requests.ErrNotFound):
		respondNotFound(c, "account request")
	case errors.Is(err, requests.ErrAlreadyHandled):
		respondConflict(c, "account request already reviewed")
	case errors.Is(err, identity.ErrEmailExists):
		respondConflict(c, "email already in use")
	case errors.Is(err, accounts.ErrNotAccountRequest),
		errors.Is(err, accounts.ErrPasswordMissing),
		errors.Is(err, identity.ErrInvalidRole),
		errors.Is(err, identity.ErrInvalidEmail):
		respondBadRequest(c, err.Error())
	default:
		respondInternalError(c, err, context)
	}
	return false
}
