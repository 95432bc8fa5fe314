package entities

import "time"

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventCompleted EventStatus = "completed"
)

type Event struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	OrganizerID      string         `gorm:"index;size:36" json:"organizer_id"`
	Name             string         `gorm:"size:255" json:"name"`
	TeamName         string         `gorm:"size:255" json:"team_name"`
	StartAt          time.Time      `gorm:"index" json:"start_at"`
	EndAt            time.Time      `json:"end_at"`
	IsGroup          bool           `json:"is_group"`
	Venue            string         `gorm:"size:255" json:"venue"`
	Description      string         `gorm:"type:text" json:"description"`
	ParticipantLimit int            `json:"participant_limit"`
	PosterURL        string         `gorm:"size:2048" json:"poster_url,omitempty"`
	Status           EventStatus    `gorm:"index;size:16;default:'upcoming'" json:"status"`
	Registrations    []Registration `gorm:"foreignKey:EventID" json:"registrations,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Registration links a student to an event and records attendance.
type Registration struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	EventID    string     `gorm:"uniqueIndex:idx_registration_event_student;size:36" json:"event_id"`
	StudentID  string     `gorm:"uniqueIndex:idx_registration_event_student;size:36" json:"student_id"`
	Attended   bool       `gorm:"default:false" json:"attended"`
	AttendedAt *time.Time `json:"attended_at,omitempty"`
	Student    User       `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
