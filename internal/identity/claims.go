package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markit/attendance/internal/entities"
)

// Claims are the contents of an ID token.
type Claims struct {
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// RoleOrDefault returns the role claim, or the default role when the claim is
// absent or not a known role.
func (c *Claims) RoleOrDefault() entities.Role {
	if r, ok := entities.ParseRole(c.Role); ok {
		return r
	}
	return entities.DefaultRole
}

// Identity converts the claims to the identity cached by a client session.
func (c *Claims) Identity() *entities.Identity {
	return &entities.Identity{
		ID:          c.Subject,
		DisplayName: c.Name,
		Email:       c.Email,
		Role:        c.RoleOrDefault(),
	}
}

// Token is the result of a successful sign-in.
type Token struct {
	IDToken   string
	ExpiresAt time.Time
	User      *entities.User
	Claims    *Claims
}
