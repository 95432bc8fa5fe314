package entities

import "time"

type AuditEventType string

const (
	AuditEventRequestReview AuditEventType = "request_review"
	AuditEventEnrolment     AuditEventType = "enrolment"
	AuditEventEvent         AuditEventType = "event"
	AuditEventAttendance    AuditEventType = "attendance"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// AuditEvent records a privileged action taken from a dashboard.
type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ActorID     string         `gorm:"index;size:36" json:"actor_id"`
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"`      // e.g. "request_accept", "attendance_mark"
	Description string         `gorm:"size:500" json:"description"` // Human-readable summary
	Subject     string         `gorm:"size:255" json:"subject"`     // email or event ID acted on
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
