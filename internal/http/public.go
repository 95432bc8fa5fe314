package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/accounts"
	"github.com/markit/attendance/internal/auth"
	"github.com/markit/attendance/internal/database/requests"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/events"
)

// contactSubjects are the choices offered on the contact form.
var contactSubjects = []string{
	accounts.AccountRequestSubject,
	"Event Issue",
	"Technical Problem",
	"Other",
}

// PublicController serves the pages anyone can open.
type PublicController struct {
	events   *events.Service
	accounts *accounts.Service
	renderer *Renderer
}

func NewPublicController(events *events.Service, accounts *accounts.Service, renderer *Renderer) *PublicController {
	return &PublicController{events: events, accounts: accounts, renderer: renderer}
}

func (pc *PublicController) Home(c *gin.Context) {
	pc.renderer.HTML(c, http.StatusOK, "home.html", gin.H{"Title": "Home"})
}

// EventPage shows one event. Signed-in students get a register button while
// the event still takes registrations.
func (pc *PublicController) EventPage(c *gin.Context) {
	event, err := pc.events.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, events.ErrNotFound) {
		pc.renderer.NotFound(c)
		return
	}
	if err != nil {
		pc.renderer.renderError(c, err, "event page")
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, event)
		return
	}

	who := auth.CurrentIdentity(c)
	canRegister := who != nil && who.Role == entities.RoleStudent &&
		event.Status == entities.EventUpcoming && event.StartAt.After(timeNow())

	pc.renderer.HTML(c, http.StatusOK, "event.html", gin.H{
		"Title":       event.Name,
		"Event":       event,
		"CanRegister": canRegister,
	})
}

func (pc *PublicController) ContactAdminPage(c *gin.Context) {
	pc.renderContact(c, http.StatusOK, accounts.RequestInput{Subject: c.Query("subject")}, nil, "")
}

// ContactAdmin stores a contact form submission. Account requests keep the
// hashed password until an admin accepts them.
func (pc *PublicController) ContactAdmin(c *gin.Context) {
	var in accounts.RequestInput
	if err := bindForm(c, &in); err != nil {
		pc.renderContact(c, http.StatusBadRequest, in, nil, "Could not read the form.")
		return
	}

	_, err := pc.accounts.RequestAccount(c.Request.Context(), in)
	if fields, ok := fieldErrors(err); ok {
		pc.renderContact(c, http.StatusBadRequest, in, fields, "Please fix the highlighted fields.")
		return
	}
	if errors.Is(err, requests.ErrAlreadyHandled) {
		pc.renderContact(c, http.StatusConflict, in, nil, "A request from this email has already been reviewed.")
		return
	}
	if err != nil {
		pc.renderer.renderError(c, err, "contact admin")
		return
	}

	pc.renderer.HTML(c, http.StatusOK, "contact_admin.html", gin.H{
		"Title":          "Contact admin",
		"Done":           true,
		"AccountRequest": in.IsAccountRequest(),
	})
}

func (pc *PublicController) renderContact(c *gin.Context, status int, in accounts.RequestInput, fields map[string]string, message string) {
	in.Password = ""
	if fields == nil {
		fields = map[string]string{}
	}
	pc.renderer.HTML(c, status, "contact_admin.html", gin.H{
		"Title":    "Contact admin",
		"Input":    in,
		"Errors":   fields,
		"Error":    message,
		"Subjects": contactSubjects,
	})
}
