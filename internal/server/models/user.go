// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account that can open sessions. PasswordHash is a bcrypt hash;
// the session core only reads users.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
}
