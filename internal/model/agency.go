package model

import (
	"encoding/json"
	"time"
)

const (
	AgencyStatusOnboarding = "onboarding"
	AgencyStatusActive     = "active"
	AgencyStatusSuspended  = "suspended"
)

type Agency struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	Status      string    `db:"status"`
	SettingsRaw *string   `db:"settings"`
	ReportLimit int       `db:"report_limit"`
	CreatedBy   string    `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// AgencySettings holds provider-specific storage configuration. At most one
// branch is populated, matching the agency's connected provider.
type AgencySettings struct {
	GoogleDrive *GoogleDriveSettings `json:"google_drive,omitempty"`
	SharePoint  *SharePointSettings  `json:"sharepoint,omitempty"`
}

type GoogleDriveSettings struct {
	FolderID   string `json:"folder_id"`
	FolderName string `json:"folder_name"`
	FolderLink string `json:"folder_link"`
}

type SharePointSettings struct {
	SiteID     string `json:"site_id"`
	DriveID    string `json:"drive_id"`
	FolderPath string `json:"folder_path"`
}

func (a *Agency) Settings() (*AgencySettings, error) {
	settings := &AgencySettings{}
	if a.SettingsRaw == nil || *a.SettingsRaw == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(*a.SettingsRaw), settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (a *Agency) SetSettings(settings *AgencySettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	s := string(raw)
	a.SettingsRaw = &s
	return nil
}
