package entities

import (
	"time"

	"gorm.io/gorm"
)

// User is an account held by the identity provider, plus the student profile
// fields the admin fills in when enrolling a student.
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Email        string `gorm:"uniqueIndex;size:255" json:"email"`
	DisplayName  string `gorm:"size:255" json:"display_name"`
	PasswordHash string `gorm:"size:255" json:"-"`

	// ClaimRole is the custom claim minted into ID tokens. Empty means no claim.
	ClaimRole string `gorm:"size:20" json:"role,omitempty"`

	// TokenGeneration is embedded into ID tokens; bumping it revokes them.
	TokenGeneration int        `gorm:"default:0" json:"-"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`

	StudentProfile `gorm:"embedded"`
	Active         bool `gorm:"default:true" json:"active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Role returns the claim role, falling back to DefaultRole when absent or unknown.
func (u *User) Role() Role {
	if r, ok := ParseRole(u.ClaimRole); ok {
		return r
	}
	return DefaultRole
}

// StudentProfile holds the enrolment details an admin records for a student.
type StudentProfile struct {
	AdmissionNo string `gorm:"size:64" json:"admission_no,omitempty"`
	RollNo      string `gorm:"size:64" json:"roll_no,omitempty"`
	Department  string `gorm:"size:128" json:"department,omitempty"`
	Section     string `gorm:"size:32" json:"section,omitempty"`
	JoinedYear  int    `json:"joined_year,omitempty"`
}

// PasswordResetCode is a single-use password reset code. Only its hash is stored.
type PasswordResetCode struct {
	CodeHash  string     `gorm:"primaryKey;size:64"`
	UserID    string     `gorm:"index;size:36"`
	ExpiresAt time.Time  `gorm:"index"`
	UsedAt    *time.Time
	CreatedAt time.Time
}
