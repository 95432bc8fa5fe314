package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/events"
)

// StudentController serves the student dashboard.
type StudentController struct {
	events   *events.Service
	renderer *Renderer
	flasher  Flasher
}

func NewStudentController(events *events.Service, renderer *Renderer, flasher Flasher) *StudentController {
	return &StudentController{events: events, renderer: renderer, flasher: flasher}
}

func (sc *StudentController) Home(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	home, err := sc.events.StudentHome(c.Request.Context(), who.ID)
	if err != nil {
		sc.renderer.renderError(c, err, "student home")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, home)
		return
	}
	sc.renderer.HTML(c, http.StatusOK, "student_home.html", gin.H{
		"Title": "Events",
		"Home":  home,
	})
}

func (sc *StudentController) PreviousEvents(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	attended, err := sc.events.PreviousEvents(c.Request.Context(), who.ID)
	if err != nil {
		sc.renderer.renderError(c, err, "previous events")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, attended)
		return
	}
	sc.renderer.HTML(c, http.StatusOK, "student_previous.html", gin.H{
		"Title":  "Previous events",
		"Events": attended,
	})
}

// Register signs the student up for an event and returns to the dashboard
// with a notice describing the outcome.
func (sc *StudentController) Register(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	err := sc.events.Register(c.Request.Context(), c.Param("id"), who.ID)
	var notice string
	switch {
	case err == nil:
		notice = "You are registered."
	case errors.Is(err, events.ErrNotFound):
		sc.renderer.NotFound(c)
		return
	case errors.Is(err, events.ErrAlreadyRegistered):
		notice = "You are already registered for this event."
	case errors.Is(err, events.ErrEventFull):
		notice = "Sorry, this event is full."
	case errors.Is(err, events.ErrEventClosed):
		notice = "Registration for this event has closed."
	default:
		sc.renderer.renderError(c, err, "register")
		return
	}
	redirectWithNotice(c, sc.flasher, "/student", notice)
}
