// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other
// languages, but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered account.
//
// WHY `json:"-"` ON PasswordHash?
// The bcrypt digest must never leave the process. Tagging the field with "-"
// means encoding/json skips it entirely, so even a careless
// writeJSON(w, 200, user) cannot leak it.
//
// The UNIQUE constraint on username in the DB is the source of truth for
// identifier uniqueness; the service layer translates its violation into a
// ConflictError.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
