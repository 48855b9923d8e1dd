package model

import (
	"time"
)

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	FullName     string    `db:"full_name"`
	CreatedAt    time.Time `db:"created_at"`

	// Computed, not in database
	AvatarURL string `db:"-"`
}

const (
	AgencyRoleAdmin = "admin"
	AgencyRoleUser  = "user"
)

type AgencyUser struct {
	AgencyID  string    `db:"agency_id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}
