// Package events provides database operations for events, registrations and
// attendance.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/markit/attendance/internal/entities"
)

var (
	ErrNotFound          = errors.New("event not found")
	ErrEventFull         = errors.New("event is full")
	ErrAlreadyRegistered = errors.New("already registered for event")
	ErrNotRegistered     = errors.New("student not registered for event")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, event *entities.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// Get loads an event without its registrations.
func (r *Repository) Get(ctx context.Context, id string) (*entities.Event, error) {
	var event entities.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetWithRegistrations loads an event with its registrations and their students.
func (r *Repository) GetWithRegistrations(ctx context.Context, id string) (*entities.Event, error) {
	var event entities.Event
	err := r.db.WithContext(ctx).
		Preload("Registrations", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Registrations.Student").
		Where("id = ?", id).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *Repository) ListByOrganizer(ctx context.Context, organizerID string) ([]entities.Event, error) {
	var list []entities.Event
	err := r.db.WithContext(ctx).Where("organizer_id = ?", organizerID).Order("start_at DESC").Find(&list).Error
	return list, err
}

// ListStartingBetween returns events with from <= start < to, earliest first.
// A zero to leaves the range open.
func (r *Repository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]entities.Event, error) {
	var list []entities.Event
	q := r.db.WithContext(ctx).Where("start_at >= ?", from)
	if !to.IsZero() {
		q = q.Where("start_at < ?", to)
	}
	err := q.Order("start_at").Find(&list).Error
	return list, err
}

// Register adds a registration while holding the participant limit. A limit
// of zero or less means unlimited.
func (r *Repository) Register(ctx context.Context, eventID, studentID string, limit int) (*entities.Registration, error) {
	reg := &entities.Registration{EventID: eventID, StudentID: studentID}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&entities.Registration{}).
			Where("event_id = ? AND student_id = ?", eventID, studentID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyRegistered
		}

		if limit > 0 {
			var count int64
			if err := tx.Model(&entities.Registration{}).Where("event_id = ?", eventID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(limit) {
				return ErrEventFull
			}
		}
		return tx.Create(reg).Error
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Repository) CountRegistrations(ctx context.Context, eventID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Registration{}).Where("event_id = ?", eventID).Count(&count).Error
	return count, err
}

// RegisteredEventIDs returns the set of events the student is registered for.
func (r *Repository) RegisteredEventIDs(ctx context.Context, studentID string) (map[string]bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entities.Registration{}).
		Where("student_id = ?", studentID).
		Pluck("event_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// SetAttendance sets the attended flag for one registration.
func (r *Repository) SetAttendance(ctx context.Context, eventID, studentID string, attended bool, at time.Time) error {
	fields := map[string]any{"attended": attended, "attended_at": nil}
	if attended {
		fields["attended_at"] = at
	}
	result := r.db.WithContext(ctx).Model(&entities.Registration{}).
		Where("event_id = ? AND student_id = ?", eventID, studentID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update attendance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotRegistered
	}
	return nil
}

// AttendedBy returns the events the student attended, most recent first.
func (r *Repository) AttendedBy(ctx context.Context, studentID string) ([]entities.Event, error) {
	var list []entities.Event
	err := r.db.WithContext(ctx).
		Joins("JOIN registrations ON registrations.event_id = events.id").
		Where("registrations.student_id = ? AND registrations.attended = ?", studentID, true).
		Order("events.start_at DESC").
		Find(&list).Error
	return list, err
}

// CompleteEndedBefore marks upcoming events whose end is before now as completed.
func (r *Repository) CompleteEndedBefore(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entities.Event{}).
		Where("status = ? AND end_at < ?", entities.EventUpcoming, now).
		Update("status", entities.EventCompleted)
	return result.RowsAffected, result.Error
}
