package models

import "time"

// RefreshToken is one stored session. Token holds the hex hash of the bearer
// handed to the client, never the bearer itself. ExpiryDate is epoch seconds.
type RefreshToken struct {
	ID         string    `db:"id"`
	Token      string    `db:"token"`
	ExpiryDate int64     `db:"expiry_date"`
	UserID     string    `db:"user_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// Expired reports whether the row is past its expiry at now (epoch seconds).
func (t *RefreshToken) Expired(now int64) bool {
	return t.ExpiryDate < now
}
