package auth

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies credential failures for the login form.
type AuthErrorKind string

const (
	KindInvalidCredentials AuthErrorKind = "invalid-credentials"
	KindUserNotFound       AuthErrorKind = "user-not-found"
	KindNetwork            AuthErrorKind = "network"
)

// AuthError is returned by the Verifier.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the user for this error.
func (e *AuthError) Message() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "Invalid email or password"
	case KindUserNotFound:
		return "No account found for this email"
	default:
		return "Sign-in is temporarily unavailable. Please try again."
	}
}

// IsAuthError reports whether err is an AuthError of the given kind.
func IsAuthError(err error, kind AuthErrorKind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == kind
}

// AuthorizationErrorKind classifies authorization failures.
type AuthorizationErrorKind string

const KindRoleMismatch AuthorizationErrorKind = "role-mismatch"

// AuthorizationError describes a denied protected request. It is reported to
// API clients; browser requests get a redirect instead.
type AuthorizationError struct {
	Kind     AuthorizationErrorKind
	Required string
	Actual   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: requires %s, have %s", e.Kind, e.Required, e.Actual)
}
