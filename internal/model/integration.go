package model

import "time"

const (
	ProviderGoogleDrive = "google_drive"
	ProviderSharePoint  = "sharepoint"
)

const (
	IntegrationStatusActive   = "active"
	IntegrationStatusDisabled = "disabled"
	IntegrationStatusRemoved  = "removed"
)

// StorageIntegration is an OAuth connection between an agency and a cloud
// storage provider. Tokens are stored as granted; the access token is
// replaced in place when refreshed.
type StorageIntegration struct {
	ID           string     `db:"id"`
	AgencyID     string     `db:"agency_id"`
	Provider     string     `db:"provider"`
	AccessToken  string     `db:"access_token"`
	RefreshToken *string    `db:"refresh_token"`
	ExpiresAt    *time.Time `db:"expires_at"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// RefreshTokenValue returns the refresh token or "" when none was granted.
func (s *StorageIntegration) RefreshTokenValue() string {
	if s.RefreshToken == nil {
		return ""
	}
	return *s.RefreshToken
}
