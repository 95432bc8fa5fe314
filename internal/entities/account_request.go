package entities

import "time"

type AccountRequestStatus string

const (
	AccountRequestPending  AccountRequestStatus = "pending"
	AccountRequestVerified AccountRequestStatus = "verified"
	AccountRequestRejected AccountRequestStatus = "rejected"
)

// AccountRequest is a club's request for an organizer account, keyed by email.
type AccountRequest struct {
	Email         string               `gorm:"primaryKey;size:255" json:"email"`
	Subject       string               `gorm:"size:255" json:"subject"`
	Message       string               `gorm:"type:text" json:"message"`
	TeamName      string               `gorm:"size:255" json:"team_name"`
	NodalOfficer  string               `gorm:"size:255" json:"Nodal_Officer"`
	PhoneNumber   string               `gorm:"size:16" json:"phone_number"`
	ContactNumber string               `gorm:"size:16" json:"contact_number,omitempty"`
	PasswordHash  string               `gorm:"size:255" json:"-"`
	Status        AccountRequestStatus `gorm:"index;size:16;default:'pending'" json:"status"`
	ReviewedAt    *time.Time           `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}
