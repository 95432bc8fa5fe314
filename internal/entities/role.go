package entities

// Role is the authorization role carried in an ID token's "role" claim.
type Role string

const (
	RoleStudent   Role = "student"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// DefaultRole is assumed when a token carries no role claim.
const DefaultRole = RoleStudent

// Roles lists every role in display order.
var Roles = []Role{RoleStudent, RoleOrganizer, RoleAdmin}

// ParseRole converts a claim value to a Role. ok is false for unknown values.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent, RoleOrganizer, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// HomePath is the dashboard each role lands on after login.
func (r Role) HomePath() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleOrganizer:
		return "/organizer"
	default:
		return "/student"
	}
}

func (r Role) String() string {
	return string(r)
}
