package models

import "time"

// Session is an issued login. Token is the bearer credential handed to the client.
type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	UserID    uint      `json:"-"`
	User      *User     `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}
