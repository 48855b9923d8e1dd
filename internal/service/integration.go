package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/repository"
	"github.com/reportdeck/reportdeck/internal/storage"
)

var (
	ErrNoActiveIntegration = errors.New("no active storage integration")

	// ErrReconnectRequired surfaces a dead token to the API layer. The
	// agency has to go through the OAuth flow again.
	ErrReconnectRequired = errors.New("storage connection expired, reconnect required")
)

type IntegrationService struct {
	cfg             *config.Config
	integrationRepo repository.IntegrationRepository
	agencyRepo      repository.AgencyRepository
	providerFactory storage.Factory
}

func NewIntegrationService(
	cfg *config.Config,
	integrationRepo repository.IntegrationRepository,
	agencyRepo repository.AgencyRepository,
	providerFactory storage.Factory,
) *IntegrationService {
	return &IntegrationService{
		cfg:             cfg,
		integrationRepo: integrationRepo,
		agencyRepo:      agencyRepo,
		providerFactory: providerFactory,
	}
}

func (s *IntegrationService) googleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.AppURL + "/api/v1/auth/google/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/drive",
			"https://www.googleapis.com/auth/presentations",
			"https://www.googleapis.com/auth/spreadsheets",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: s.cfg.GoogleTokenURL,
		},
	}
}

func (s *IntegrationService) microsoftOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.MicrosoftClientID,
		ClientSecret: s.cfg.MicrosoftClientSecret,
		RedirectURL:  s.cfg.AppURL + "/api/v1/auth/sharepoint/callback",
		Scopes:       []string{"offline_access", "Files.ReadWrite.All", "Sites.ReadWrite.All"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			TokenURL: s.cfg.MicrosoftTokenURL,
		},
	}
}

// AuthURL builds the provider consent URL. Google needs the offline and
// consent parameters or no refresh token comes back.
func (s *IntegrationService) AuthURL(provider, state string) (string, error) {
	switch provider {
	case model.ProviderGoogleDrive:
		if s.cfg.GoogleClientID == "" {
			return "", fmt.Errorf("google drive is not configured")
		}
		return s.googleOAuthConfig().AuthCodeURL(state,
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		), nil

	case model.ProviderSharePoint:
		if s.cfg.MicrosoftClientID == "" {
			return "", fmt.Errorf("sharepoint is not configured")
		}
		return s.microsoftOAuthConfig().AuthCodeURL(state), nil

	default:
		return "", fmt.Errorf("unknown storage provider: %s", provider)
	}
}

// HandleCallback exchanges the authorization code and stores the new
// integration as the agency's active connection. Prior integrations for the
// agency are marked removed.
func (s *IntegrationService) HandleCallback(ctx context.Context, provider, code, agencyID string) (*model.StorageIntegration, error) {
	var oauthCfg *oauth2.Config
	switch provider {
	case model.ProviderGoogleDrive:
		oauthCfg = s.googleOAuthConfig()
	case model.ProviderSharePoint:
		oauthCfg = s.microsoftOAuthConfig()
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", provider)
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth code exchange failed: %w", err)
	}

	existing, err := s.integrationRepo.ByAgency(agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	for _, old := range existing {
		if old.Status != model.IntegrationStatusActive {
			continue
		}
		if err := s.integrationRepo.UpdateStatus(old.ID, model.IntegrationStatusRemoved); err != nil {
			slog.Warn("failed to retire old integration", "integration_id", old.ID, "error", err)
		}
	}

	now := time.Now()
	integration := &model.StorageIntegration{
		ID:          uuid.New().String(),
		AgencyID:    agencyID,
		Provider:    provider,
		AccessToken: token.AccessToken,
		Status:      model.IntegrationStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if token.RefreshToken != "" {
		rt := token.RefreshToken
		integration.RefreshToken = &rt
	}
	if !token.Expiry.IsZero() {
		exp := token.Expiry
		integration.ExpiresAt = &exp
	}

	if err := s.integrationRepo.Create(integration); err != nil {
		return nil, fmt.Errorf("failed to store integration: %w", err)
	}

	slog.Info("storage integration connected", "agency_id", agencyID, "provider", provider, "integration_id", integration.ID)
	return integration, nil
}

// ActiveIntegration returns the agency's current connection.
func (s *IntegrationService) ActiveIntegration(agencyID string) (*model.StorageIntegration, error) {
	integration, err := s.integrationRepo.ActiveByAgency(agencyID)
	if errors.Is(err, repository.ErrIntegrationNotFound) {
		return nil, ErrNoActiveIntegration
	}
	return integration, err
}

func (s *IntegrationService) ListIntegrations(agencyID string) ([]*model.StorageIntegration, error) {
	return s.integrationRepo.ByAgency(agencyID)
}

// Provider builds the storage provider for an agency, requiring completed
// setup (agency settings populated).
func (s *IntegrationService) Provider(agency *model.Agency, integration *model.StorageIntegration) (storage.Provider, error) {
	settings, err := agency.Settings()
	if err != nil {
		return nil, fmt.Errorf("failed to parse agency settings: %w", err)
	}
	return s.providerFactory(s.cfg, integration, settings)
}

// EnsureToken validates the integration's access token, persisting a
// refreshed token before returning it. Callers always use the returned value,
// never integration.AccessToken directly.
func (s *IntegrationService) EnsureToken(ctx context.Context, provider storage.Provider, integration *model.StorageIntegration) (string, error) {
	result, err := provider.EnsureToken(ctx, integration.AccessToken, integration.RefreshTokenValue())
	if err != nil {
		if errors.Is(err, storage.ErrTokenUnusable) {
			return "", ErrReconnectRequired
		}
		return "", err
	}

	if result.WasRefreshed {
		if err := s.integrationRepo.UpdateAccessToken(integration.ID, result.Token); err != nil {
			slog.Warn("failed to persist refreshed token", "integration_id", integration.ID, "error", err)
		}
		integration.AccessToken = result.Token
	}

	return result.Token, nil
}

// SetupGoogleDrive finishes onboarding for a Drive connection: it creates
// the agency's root folder at the drive root and records it in the agency
// settings. The folder name encodes the agency and integration for support
// lookups.
func (s *IntegrationService) SetupGoogleDrive(ctx context.Context, agency *model.Agency, integration *model.StorageIntegration) (*model.GoogleDriveSettings, error) {
	if integration.Provider != model.ProviderGoogleDrive {
		return nil, fmt.Errorf("integration %s is not a google drive connection", integration.ID)
	}

	// Root creation happens before settings exist, so the provider is built
	// directly rather than through the factory.
	drive := storage.NewGoogleDrive(s.cfg, "")

	token, err := s.EnsureToken(ctx, drive, integration)
	if err != nil {
		return nil, err
	}

	folderName := fmt.Sprintf("tis-%s_%s", agency.ID, integration.ID)
	folder, err := drive.ResolveRootFolder(ctx, token, folderName)
	if err != nil {
		return nil, fmt.Errorf("failed to create agency folder: %w", err)
	}

	driveSettings := &model.GoogleDriveSettings{
		FolderID:   folder.ID,
		FolderName: folderName,
		FolderLink: folder.URL,
	}

	settings, err := agency.Settings()
	if err != nil {
		return nil, fmt.Errorf("failed to parse agency settings: %w", err)
	}
	settings.GoogleDrive = driveSettings
	settings.SharePoint = nil

	if err := s.saveSettings(agency, settings); err != nil {
		return nil, err
	}

	slog.Info("google drive setup complete", "agency_id", agency.ID, "folder_id", folder.ID)
	return driveSettings, nil
}

// SetupSharePoint records the site and drive the agency picked. The folder
// path defaults to a dedicated directory so client folders do not mix with
// other site content.
func (s *IntegrationService) SetupSharePoint(ctx context.Context, agency *model.Agency, integration *model.StorageIntegration, sp *model.SharePointSettings) error {
	if integration.Provider != model.ProviderSharePoint {
		return fmt.Errorf("integration %s is not a sharepoint connection", integration.ID)
	}
	if sp.SiteID == "" || sp.DriveID == "" {
		return fmt.Errorf("site_id and drive_id are required")
	}
	if sp.FolderPath == "" {
		sp.FolderPath = "ReportDeck"
	}

	settings, err := agency.Settings()
	if err != nil {
		return fmt.Errorf("failed to parse agency settings: %w", err)
	}
	settings.SharePoint = sp
	settings.GoogleDrive = nil

	if err := s.saveSettings(agency, settings); err != nil {
		return err
	}

	slog.Info("sharepoint setup complete", "agency_id", agency.ID, "site_id", sp.SiteID)
	return nil
}

// ListSharePointSites surfaces the tenant's sites for the setup screen.
func (s *IntegrationService) ListSharePointSites(ctx context.Context, integration *model.StorageIntegration) ([]storage.Site, error) {
	sp := storage.NewSharePoint(s.cfg, "", "", "")

	token, err := s.EnsureToken(ctx, sp, integration)
	if err != nil {
		return nil, err
	}

	return storage.ListSites(ctx, s.cfg, token)
}

func (s *IntegrationService) saveSettings(agency *model.Agency, settings *model.AgencySettings) error {
	if err := agency.SetSettings(settings); err != nil {
		return fmt.Errorf("failed to encode agency settings: %w", err)
	}

	// Finishing storage setup is what moves an agency out of onboarding.
	if agency.Status == model.AgencyStatusOnboarding {
		agency.Status = model.AgencyStatusActive
	}
	agency.UpdatedAt = time.Now()

	if err := s.agencyRepo.UpdateSettings(agency); err != nil {
		return fmt.Errorf("failed to save agency settings: %w", err)
	}
	return nil
}
