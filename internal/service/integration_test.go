package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/storage"
)

func TestIntegrationServiceEnsureTokenPersistsRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.provider.tokenResult = &storage.TokenResult{Token: "fresh-token", WasRefreshed: true}

	token, err := env.integrationService.EnsureToken(context.Background(), env.provider, env.integration)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, "fresh-token", env.integration.AccessToken)

	stored, err := env.integrationRepo.ByID(env.integration.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", stored.AccessToken)
}

func TestIntegrationServiceEnsureTokenReconnect(t *testing.T) {
	env := newTestEnv(t)
	env.provider.tokenErr = storage.ErrTokenUnusable

	_, err := env.integrationService.EnsureToken(context.Background(), env.provider, env.integration)
	assert.ErrorIs(t, err, ErrReconnectRequired)
}

func TestIntegrationServiceActiveIntegration(t *testing.T) {
	env := newTestEnv(t)

	active, err := env.integrationService.ActiveIntegration(env.agency.ID)
	require.NoError(t, err)
	assert.Equal(t, env.integration.ID, active.ID)

	require.NoError(t, env.integrationRepo.UpdateStatus(env.integration.ID, model.IntegrationStatusRemoved))

	_, err = env.integrationService.ActiveIntegration(env.agency.ID)
	assert.ErrorIs(t, err, ErrNoActiveIntegration)
}

func TestIntegrationServiceSetupSharePoint(t *testing.T) {
	env := newTestEnv(t)

	env.agency.Status = model.AgencyStatusOnboarding
	env.integration.Provider = model.ProviderSharePoint

	err := env.integrationService.SetupSharePoint(context.Background(), env.agency, env.integration, &model.SharePointSettings{
		SiteID:  "site-1",
		DriveID: "drive-1",
	})
	require.NoError(t, err)

	assert.Equal(t, model.AgencyStatusActive, env.agency.Status)

	stored, err := env.agencyRepo.ByID(env.agency.ID)
	require.NoError(t, err)
	settings, err := stored.Settings()
	require.NoError(t, err)
	require.NotNil(t, settings.SharePoint)
	assert.Equal(t, "site-1", settings.SharePoint.SiteID)
	assert.Equal(t, "ReportDeck", settings.SharePoint.FolderPath)
	assert.Nil(t, settings.GoogleDrive)
	assert.Equal(t, model.AgencyStatusActive, stored.Status)
}

func TestIntegrationServiceSetupSharePointValidation(t *testing.T) {
	env := newTestEnv(t)
	env.integration.Provider = model.ProviderSharePoint

	err := env.integrationService.SetupSharePoint(context.Background(), env.agency, env.integration, &model.SharePointSettings{})
	assert.Error(t, err)

	err = env.integrationService.SetupSharePoint(context.Background(), env.agency, env.integration, &model.SharePointSettings{SiteID: "site-1"})
	assert.Error(t, err)
}

func TestIntegrationServiceAuthURL(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.GoogleClientID = "google-client"
	env.cfg.MicrosoftClientID = "ms-client"

	url, err := env.integrationService.AuthURL(model.ProviderGoogleDrive, "state-1")
	require.NoError(t, err)
	assert.Contains(t, url, "access_type=offline")
	assert.Contains(t, url, "prompt=consent")
	assert.Contains(t, url, "state=state-1")

	url, err = env.integrationService.AuthURL(model.ProviderSharePoint, "state-2")
	require.NoError(t, err)
	assert.Contains(t, url, "state=state-2")

	_, err = env.integrationService.AuthURL("dropbox", "state-3")
	assert.Error(t, err)
}
