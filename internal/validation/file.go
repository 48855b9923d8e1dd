package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	MaxUploadSize = 15 << 20 // 15 MB
	MaxAvatarSize = 5 << 20  // 5 MB
)

var avatarMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateCSVUpload checks a media plan or results file. The automation
// engine only understands CSV, so the extension is enforced up front.
func ValidateCSVUpload(filename string, size int64) error {
	if size == 0 {
		return fmt.Errorf("file %q is empty", filename)
	}
	if size > MaxUploadSize {
		return fmt.Errorf("file %q exceeds the %d MB limit", filename, MaxUploadSize>>20)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return fmt.Errorf("file %q must be a .csv file", filename)
	}
	return nil
}

// ValidateTemplateUpload checks a client template. Templates may be CSVs,
// spreadsheets or presentations; only size is constrained.
func ValidateTemplateUpload(filename string, size int64) error {
	if size == 0 {
		return fmt.Errorf("file %q is empty", filename)
	}
	if size > MaxUploadSize {
		return fmt.Errorf("file %q exceeds the %d MB limit", filename, MaxUploadSize>>20)
	}
	return nil
}

func ValidateAvatarUpload(mimeType string, size int64) error {
	if size == 0 {
		return fmt.Errorf("avatar file is empty")
	}
	if size > MaxAvatarSize {
		return fmt.Errorf("avatar exceeds the %d MB limit", MaxAvatarSize>>20)
	}
	if !avatarMimeTypes[mimeType] {
		return fmt.Errorf("avatar must be a JPEG, PNG, GIF or WebP image")
	}
	return nil
}
