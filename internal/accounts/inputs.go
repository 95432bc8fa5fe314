package accounts

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/markit/attendance/internal/validation"
)

// AccountRequestSubject is the contact form subject that asks for an
// organizer account. Other subjects are plain messages to the admins.
const AccountRequestSubject = "Account Request"

var (
	requiredForAccountTag  = "required_for_account"
	requiredForAccountText = "{0} is required for an account request"
)

// RequestInput is the contact-admin form.
type RequestInput struct {
	Email         string `json:"email" form:"email" validate:"required,email"`
	Subject       string `json:"subject" form:"subject" validate:"notblank"`
	Message       string `json:"message" form:"message" validate:"notblank"`
	TeamName      string `json:"team_name" form:"team_name"`
	Password      string `json:"password" form:"password"`
	NodalOfficer  string `json:"Nodal_Officer" form:"Nodal_Officer"`
	PhoneNumber   string `json:"phone_number" form:"phone_number" validate:"omitempty,phone10"`
	ContactNumber string `json:"contact_number" form:"contact_number" validate:"omitempty,phone10"`
}

// IsAccountRequest reports whether the form asks for an organizer account.
func (in RequestInput) IsAccountRequest() bool {
	return strings.TrimSpace(in.Subject) == AccountRequestSubject
}

// AcceptInput approves a stored request. Password overrides the one stored
// with the request; Role defaults to organizer.
type AcceptInput struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"omitempty,min=6"`
	Role     string `json:"role" form:"role" validate:"omitempty,oneof=student organizer admin"`
}

// NewUserInput creates a student account from an email and password.
type NewUserInput struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
}

// StudentInput enrols a student. The admission number is the initial password.
type StudentInput struct {
	Name        string `json:"name" form:"name" validate:"notblank"`
	Email       string `json:"email" form:"email" validate:"required,email"`
	AdmissionNo string `json:"admissionNo" form:"admissionNo" validate:"required,min=6"`
	RollNo      string `json:"rollNo" form:"rollNo" validate:"notblank"`
	Department  string `json:"department" form:"department" validate:"notblank"`
	Section     string `json:"section" form:"section" validate:"notblank"`
	JoinedYear  int    `json:"joinedYear" form:"joinedYear" validate:"required,gte=1900,lte=2200"`
	Active      bool   `json:"active" form:"active"`
}

func init() {
	validation.Validate.RegisterStructValidation(requestStructValidation, RequestInput{})
	validation.RegisterCustomTranslation(requiredForAccountTag, requiredForAccountText)
}

// requestStructValidation applies the extra rules of an account request.
func requestStructValidation(sl validator.StructLevel) {
	in, ok := sl.Current().Interface().(RequestInput)
	if !ok || !in.IsAccountRequest() {
		return
	}

	switch teamName := strings.TrimSpace(in.TeamName); {
	case teamName == "":
		sl.ReportError(in.TeamName, "team_name", "TeamName", requiredForAccountTag, "")
	case len(teamName) < 3:
		sl.ReportError(in.TeamName, "team_name", "TeamName", "min", "3")
	}
	switch {
	case in.Password == "":
		sl.ReportError(in.Password, "password", "Password", requiredForAccountTag, "")
	case len(in.Password) < 6:
		sl.ReportError(in.Password, "password", "Password", "min", "6")
	}
	if strings.TrimSpace(in.NodalOfficer) == "" {
		sl.ReportError(in.NodalOfficer, "Nodal_Officer", "NodalOfficer", requiredForAccountTag, "")
	}
	if in.PhoneNumber == "" {
		sl.ReportError(in.PhoneNumber, "phone_number", "PhoneNumber", requiredForAccountTag, "")
	}
}
