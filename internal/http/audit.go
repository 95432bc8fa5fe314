package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/database/requests"
	"github.com/markit/attendance/internal/entities"
)

const maxActivityPage = 200

// AuditTrail records dashboard actions and lists them back for admins.
type AuditTrail interface {
	LogReview(actorID, email string, accepted bool, err error)
	LogEnrol(actorID, email string, err error)
	LogEventCreated(actorID string, event *entities.Event)
	LogAttendance(actorID, eventID string, err error)
	Recent(ctx context.Context, limit int) ([]entities.AuditEvent, error)
	List(ctx context.Context, actorID string, limit, offset int) ([]entities.AuditEvent, int64, error)
}

// auditable reports whether the outcome of an admin action belongs in the
// audit trail. Invalid input and unknown requests are left out.
func auditable(err error) bool {
	if _, invalid := fieldErrors(err); invalid {
		return false
	}
	return !errors.Is(err, requests.ErrNotFound)
}

type AuditController struct {
	trail AuditTrail
}

func NewAuditController(trail AuditTrail) *AuditController {
	return &AuditController{trail: trail}
}

// Activity lists audit events as JSON, optionally for a single actor.
func (ac *AuditController) Activity(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		respondBadRequest(c, "limit must be a positive number")
		return
	}
	if limit > maxActivityPage {
		limit = maxActivityPage
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		respondBadRequest(c, "offset must not be negative")
		return
	}

	events, total, err := ac.trail.List(c.Request.Context(), c.Query("actor"), limit, offset)
	if err != nil {
		respondInternalError(c, err, "list activity")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
