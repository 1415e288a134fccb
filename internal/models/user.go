// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a registered author or commenter.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email       string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	Avatar      string    `json:"avatar,omitempty"`
	Bio         string    `gorm:"size:500" json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
