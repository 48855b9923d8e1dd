package model

import (
	"time"
)

const (
	FileTypeAvatar = "avatar"
)

// File is a first-party object stored in S3-compatible storage (avatars),
// as opposed to FileRef which points into a tenant's own cloud drive.
type File struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	Type         string    `db:"type"`
	Filename     string    `db:"filename"`
	OriginalName string    `db:"original_name"`
	MimeType     string    `db:"mime_type"`
	Size         int64     `db:"size"`
	StoragePath  string    `db:"storage_path"`
	CreatedAt    time.Time `db:"created_at"`
}
