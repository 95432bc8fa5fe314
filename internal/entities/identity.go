package entities

// Identity is the authenticated principal as seen by the client.
// Role is an advisory copy of the token claim.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}
