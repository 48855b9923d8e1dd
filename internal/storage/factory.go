package storage

import (
	"fmt"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/model"
)

// Factory builds a Provider for an agency's active integration. Services
// depend on this type so tests can substitute stub providers.
type Factory func(cfg *config.Config, integration *model.StorageIntegration, settings *model.AgencySettings) (Provider, error)

// NewProvider is the production Factory. It requires the agency to have
// finished storage setup: a root folder on Drive, a site and drive on
// SharePoint.
func NewProvider(cfg *config.Config, integration *model.StorageIntegration, settings *model.AgencySettings) (Provider, error) {
	switch integration.Provider {
	case model.ProviderGoogleDrive:
		if settings == nil || settings.GoogleDrive == nil || settings.GoogleDrive.FolderID == "" {
			return nil, fmt.Errorf("google drive integration %s has no root folder configured", integration.ID)
		}
		return NewGoogleDrive(cfg, settings.GoogleDrive.FolderID), nil

	case model.ProviderSharePoint:
		if settings == nil || settings.SharePoint == nil || settings.SharePoint.SiteID == "" || settings.SharePoint.DriveID == "" {
			return nil, fmt.Errorf("sharepoint integration %s has no site configured", integration.ID)
		}
		sp := settings.SharePoint
		return NewSharePoint(cfg, sp.SiteID, sp.DriveID, sp.FolderPath), nil

	default:
		return nil, fmt.Errorf("unknown storage provider: %s (supported: google_drive, sharepoint)", integration.Provider)
	}
}
