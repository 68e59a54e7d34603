package models

import "time"

// User is an account known to the auth service.
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the authenticated view of a request.
type Session struct {
	User      User      `json:"user"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}
