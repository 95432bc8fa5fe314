// Package audit keeps a trail of the privileged actions taken from the admin
// and organizer dashboards.
package audit

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/database/audit"
	"github.com/markit/attendance/internal/entities"
)

const maxErrorLen = 500

// Service provides high-level audit logging functionality. Writes happen in
// the background so a slow audit table never delays a dashboard response.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records an audit event synchronously.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background. The write outlives the
// request that triggered it.
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(context.Background(), event); err != nil {
			log.Error().Err(err).Str("action", event.Action).Msg("Failed to log audit event")
		}
	}()
}

// Wait blocks until every pending background write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogReview records an admin accepting or rejecting an account request.
func (s *Service) LogReview(actorID, email string, accepted bool, err error) {
	action, verb := "request_reject", "Rejected"
	if accepted {
		action, verb = "request_accept", "Accepted"
	}
	s.LogAsync(withError(&entities.AuditEvent{
		ActorID:     actorID,
		EventType:   entities.AuditEventRequestReview,
		Action:      action,
		Description: verb + " request from " + email,
		Subject:     email,
	}, err))
}

// LogEnrol records an admin creating a student account.
func (s *Service) LogEnrol(actorID, email string, err error) {
	s.LogAsync(withError(&entities.AuditEvent{
		ActorID:     actorID,
		EventType:   entities.AuditEventEnrolment,
		Action:      "student_enrol",
		Description: "Enrolled " + email,
		Subject:     email,
	}, err))
}

// LogEventCreated records an organizer publishing an event.
func (s *Service) LogEventCreated(actorID string, event *entities.Event) {
	s.LogAsync(&entities.AuditEvent{
		ActorID:     actorID,
		EventType:   entities.AuditEventEvent,
		Action:      "event_create",
		Description: "Created " + event.Name,
		Subject:     event.ID,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogAttendance records an organizer saving the attendance sheet of an event.
func (s *Service) LogAttendance(actorID, eventID string, err error) {
	s.LogAsync(withError(&entities.AuditEvent{
		ActorID:     actorID,
		EventType:   entities.AuditEventAttendance,
		Action:      "attendance_mark",
		Description: "Saved attendance",
		Subject:     eventID,
	}, err))
}

// Recent returns the latest events across all actors.
func (s *Service) Recent(ctx context.Context, limit int) ([]entities.AuditEvent, error) {
	events, _, err := s.repo.ListEvents(ctx, audit.Filter{}, limit, 0)
	return events, err
}

// List returns a page of events, newest first, and the total count. An empty
// actorID lists every actor.
func (s *Service) List(ctx context.Context, actorID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.ListEvents(ctx, audit.Filter{ActorID: actorID}, limit, offset)
}

// DeleteOldEvents removes events older than retention. It is run by the
// scheduler.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteOldEvents(ctx, time.Now().Add(-retention))
}

func withError(event *entities.AuditEvent, err error) *entities.AuditEvent {
	event.Status = entities.AuditStatusSuccess
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxErrorLen)
	}
	return event
}

// truncate shortens a string to at most maxLen bytes without splitting a
// UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
