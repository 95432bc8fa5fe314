// Package events implements event creation, student registration and
// attendance tracking on top of the events repository.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	eventstore "github.com/markit/attendance/internal/database/events"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/validation"
)

// RecentWindow is how far back the student home lists events that already started.
const RecentWindow = 5 * 24 * time.Hour

var (
	ErrNotFound          = eventstore.ErrNotFound
	ErrEventFull         = eventstore.ErrEventFull
	ErrAlreadyRegistered = eventstore.ErrAlreadyRegistered
	ErrNotRegistered     = eventstore.ErrNotRegistered
	ErrEventClosed       = errors.New("registration for this event has closed")
	ErrNotOwner          = errors.New("event belongs to another organizer")
)

// EventInput is the organizer's new-event form.
type EventInput struct {
	Name             string    `json:"name" form:"name" validate:"notblank,max=255"`
	TeamName         string    `json:"team_name" form:"team_name" validate:"notblank,max=255"`
	StartAt          time.Time `json:"start_at" form:"start_at" time_format:"2006-01-02T15:04" validate:"required"`
	EndAt            time.Time `json:"end_at" form:"end_at" time_format:"2006-01-02T15:04" validate:"required,gtfield=StartAt"`
	Venue            string    `json:"venue" form:"venue" validate:"notblank,max=255"`
	Description      string    `json:"description" form:"description"`
	IsGroup          bool      `json:"is_group" form:"is_group"`
	ParticipantLimit int       `json:"participant_limit" form:"participant_limit" validate:"gte=0"`
	PosterURL        string    `json:"poster_url" form:"poster_url" validate:"omitempty,url,max=2048"`
}

// Listing is an event as shown to one student.
type Listing struct {
	entities.Event
	Registered bool
	SeatsLeft  int // -1 when unlimited
}

// StudentHome groups the events on a student's dashboard.
type StudentHome struct {
	Upcoming   []Listing
	Registered []Listing
	Recent     []Listing
}

type ReportRow struct {
	StudentID  string
	Name       string
	Email      string
	RollNo     string
	Department string
	Section    string
	Attended   bool
	AttendedAt *time.Time
}

// Report summarises registrations and attendance for one event.
type Report struct {
	Event      *entities.Event
	Registered int
	Attended   int
	Rows       []ReportRow
}

type Service struct {
	repo *eventstore.Repository
	now  func() time.Time
}

func NewService(repo *eventstore.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new upcoming event owned by the organizer.
func (s *Service) Create(ctx context.Context, organizerID string, in EventInput) (*entities.Event, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	event := &entities.Event{
		ID:               uuid.NewString(),
		OrganizerID:      organizerID,
		Name:             strings.TrimSpace(in.Name),
		TeamName:         strings.TrimSpace(in.TeamName),
		StartAt:          in.StartAt,
		EndAt:            in.EndAt,
		IsGroup:          in.IsGroup,
		Venue:            strings.TrimSpace(in.Venue),
		Description:      strings.TrimSpace(in.Description),
		ParticipantLimit: in.ParticipantLimit,
		PosterURL:        strings.TrimSpace(in.PosterURL),
		Status:           entities.EventUpcoming,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	log.Info().Str("event_id", event.ID).Str("organizer_id", organizerID).Msg("Created event")
	return event, nil
}

// Get returns an event for the public event page.
func (s *Service) Get(ctx context.Context, id string) (*entities.Event, error) {
	return s.repo.Get(ctx, id)
}

// StudentHome lists upcoming events (starting after today) split into those
// the student registered for and the rest, plus events that started within
// RecentWindow.
func (s *Service) StudentHome(ctx context.Context, studentID string) (*StudentHome, error) {
	today := startOfDay(s.now())
	tomorrow := today.AddDate(0, 0, 1)

	registered, err := s.repo.RegisteredEventIDs(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}
	upcoming, err := s.repo.ListStartingBetween(ctx, tomorrow, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	recent, err := s.repo.ListStartingBetween(ctx, startOfDay(today.Add(-RecentWindow)), tomorrow)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}

	home := &StudentHome{}
	for _, event := range upcoming {
		listing, err := s.listing(ctx, event, registered[event.ID])
		if err != nil {
			return nil, err
		}
		if listing.Registered {
			home.Registered = append(home.Registered, listing)
		} else {
			home.Upcoming = append(home.Upcoming, listing)
		}
	}
	for _, event := range recent {
		listing, err := s.listing(ctx, event, registered[event.ID])
		if err != nil {
			return nil, err
		}
		home.Recent = append(home.Recent, listing)
	}
	return home, nil
}

func (s *Service) listing(ctx context.Context, event entities.Event, registered bool) (Listing, error) {
	l := Listing{Event: event, Registered: registered, SeatsLeft: -1}
	if event.ParticipantLimit > 0 {
		count, err := s.repo.CountRegistrations(ctx, event.ID)
		if err != nil {
			return l, err
		}
		l.SeatsLeft = max(event.ParticipantLimit-int(count), 0)
	}
	return l, nil
}

// Register signs the student up for an event that has not started yet.
func (s *Service) Register(ctx context.Context, eventID, studentID string) error {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status != entities.EventUpcoming || !event.StartAt.After(s.now()) {
		return ErrEventClosed
	}
	if _, err := s.repo.Register(ctx, eventID, studentID, event.ParticipantLimit); err != nil {
		return err
	}
	log.Info().Str("event_id", eventID).Str("student_id", studentID).Msg("Registered for event")
	return nil
}

// OrganizerEvents lists the organizer's events, newest first.
func (s *Service) OrganizerEvents(ctx context.Context, organizerID string) ([]entities.Event, error) {
	return s.repo.ListByOrganizer(ctx, organizerID)
}

// OwnedEvent loads an event with registrations, checking the organizer owns it.
func (s *Service) OwnedEvent(ctx context.Context, organizerID, eventID string) (*entities.Event, error) {
	event, err := s.repo.GetWithRegistrations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, ErrNotOwner
	}
	return event, nil
}

// MarkAttendance records which registered students attended. Registered
// students missing from present are marked absent.
func (s *Service) MarkAttendance(ctx context.Context, organizerID, eventID string, present []string) error {
	event, err := s.OwnedEvent(ctx, organizerID, eventID)
	if err != nil {
		return err
	}

	attended := make(map[string]bool, len(present))
	for _, id := range present {
		attended[id] = true
	}
	registered := make(map[string]bool, len(event.Registrations))
	for _, reg := range event.Registrations {
		registered[reg.StudentID] = true
	}
	for id := range attended {
		if !registered[id] {
			return fmt.Errorf("%s: %w", id, ErrNotRegistered)
		}
	}

	now := s.now()
	for _, reg := range event.Registrations {
		if reg.Attended == attended[reg.StudentID] {
			continue
		}
		if err := s.repo.SetAttendance(ctx, eventID, reg.StudentID, attended[reg.StudentID], now); err != nil {
			return err
		}
	}
	log.Info().Str("event_id", eventID).Int("present", len(attended)).Msg("Updated attendance")
	return nil
}

// Report builds the attendance report of an owned event.
func (s *Service) Report(ctx context.Context, organizerID, eventID string) (*Report, error) {
	event, err := s.OwnedEvent(ctx, organizerID, eventID)
	if err != nil {
		return nil, err
	}

	report := &Report{Event: event, Registered: len(event.Registrations)}
	for _, reg := range event.Registrations {
		if reg.Attended {
			report.Attended++
		}
		report.Rows = append(report.Rows, ReportRow{
			StudentID:  reg.StudentID,
			Name:       reg.Student.DisplayName,
			Email:      reg.Student.Email,
			RollNo:     reg.Student.RollNo,
			Department: reg.Student.Department,
			Section:    reg.Student.Section,
			Attended:   reg.Attended,
			AttendedAt: reg.AttendedAt,
		})
	}
	return report, nil
}

// PreviousEvents lists the events the student attended.
func (s *Service) PreviousEvents(ctx context.Context, studentID string) ([]entities.Event, error) {
	return s.repo.AttendedBy(ctx, studentID)
}

// CompleteEnded marks events whose end has passed as completed.
func (s *Service) CompleteEnded(ctx context.Context) (int64, error) {
	return s.repo.CompleteEndedBefore(ctx, s.now())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
