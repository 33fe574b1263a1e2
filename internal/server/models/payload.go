package models

import "time"

// AuthPayload is what a successful Login or Refresh hands to the transport
// layer.
type AuthPayload struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry int64
}
