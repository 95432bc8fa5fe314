package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/events"
)

// OrganizerController serves event management for club organizers.
type OrganizerController struct {
	events   *events.Service
	audit    AuditTrail
	renderer *Renderer
	flasher  Flasher
}

func NewOrganizerController(events *events.Service, audit AuditTrail, renderer *Renderer, flasher Flasher) *OrganizerController {
	return &OrganizerController{events: events, audit: audit, renderer: renderer, flasher: flasher}
}

func (oc *OrganizerController) Home(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	list, err := oc.events.OrganizerEvents(c.Request.Context(), who.ID)
	if err != nil {
		oc.renderer.renderError(c, err, "organizer home")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, list)
		return
	}
	oc.renderer.HTML(c, http.StatusOK, "organizer_home.html", gin.H{
		"Title":  "Your events",
		"Events": list,
	})
}

func (oc *OrganizerController) NewEventPage(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}
	oc.renderNewEvent(c, http.StatusOK, events.EventInput{TeamName: who.DisplayName}, nil, "")
}

func (oc *OrganizerController) CreateEvent(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	var in events.EventInput
	if err := bindForm(c, &in); err != nil {
		oc.renderNewEvent(c, http.StatusBadRequest, in, nil, "Could not read the form. Check the dates and numbers.")
		return
	}

	event, err := oc.events.Create(c.Request.Context(), who.ID, in)
	if fields, ok := fieldErrors(err); ok {
		oc.renderNewEvent(c, http.StatusBadRequest, in, fields, "Please fix the highlighted fields.")
		return
	}
	if err != nil {
		oc.renderer.renderError(c, err, "create event")
		return
	}
	oc.audit.LogEventCreated(who.ID, event)
	redirectWithNotice(c, oc.flasher, "/organizer/events/"+event.ID, "Event created.")
}

func (oc *OrganizerController) renderNewEvent(c *gin.Context, status int, in events.EventInput, fields map[string]string, message string) {
	if fields == nil {
		fields = map[string]string{}
	}
	oc.renderer.HTML(c, status, "organizer_new_event.html", gin.H{
		"Title":  "Create event",
		"Input":  in,
		"Errors": fields,
		"Error":  message,
	})
}

func (oc *OrganizerController) EventPage(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	event, err := oc.events.OwnedEvent(c.Request.Context(), who.ID, c.Param("id"))
	if !oc.handleEventError(c, err, "organizer event") {
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, event)
		return
	}
	oc.renderer.HTML(c, http.StatusOK, "organizer_event.html", gin.H{
		"Title": event.Name,
		"Event": event,
	})
}

// MarkAttendance saves the attendance checklist. Registered students left
// unchecked are marked absent.
func (oc *OrganizerController) MarkAttendance(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	eventID := c.Param("id")
	err := oc.events.MarkAttendance(c.Request.Context(), who.ID, eventID, c.PostFormArray("present"))
	if errors.Is(err, events.ErrNotRegistered) {
		oc.audit.LogAttendance(who.ID, eventID, err)
		redirectWithNotice(c, oc.flasher, "/organizer/events/"+eventID, "Only registered students can be marked present.")
		return
	}
	if !oc.handleEventError(c, err, "mark attendance") {
		return
	}
	oc.audit.LogAttendance(who.ID, eventID, nil)
	redirectWithNotice(c, oc.flasher, "/organizer/events/"+eventID, "Attendance saved.")
}

func (oc *OrganizerController) Report(c *gin.Context) {
	who, ok := identityOrAbort(c)
	if !ok {
		return
	}

	report, err := oc.events.Report(c.Request.Context(), who.ID, c.Param("id"))
	if !oc.handleEventError(c, err, "event report") {
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, report)
		return
	}
	oc.renderer.HTML(c, http.StatusOK, "organizer_report.html", gin.H{
		"Title":  "Report",
		"Report": report,
	})
}

// handleEventError answers for a failed event lookup and reports whether the
// handler may continue. Events of other organizers look the same as missing
// ones.
func (oc *OrganizerController) handleEventError(c *gin.Context, err error, context string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, events.ErrNotFound), errors.Is(err, events.ErrNotOwner):
		oc.renderer.NotFound(c)
	default:
		oc.renderer.renderError(c, err, context)
	}
	return false
}
