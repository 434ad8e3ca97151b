package domain

import "time"

// Role distinguishes content owners from consumers.
type Role string

const (
	RoleArtist   Role = "artist"
	RoleListener Role = "listener"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleArtist || r == RoleListener
}

// User represents a registered account. Email is unique.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	Role         Role
	CreatedAt    time.Time
}

// UserView is the client-facing projection of a User.
type UserView struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}
