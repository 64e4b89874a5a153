package domain

import "time"

// User is the account entity owned by the resume platform's user management.
// The auth subsystem only reads it: email and password hash at login, id and
// active flag on every token validation.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}
