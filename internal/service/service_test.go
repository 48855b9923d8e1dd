package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/db"
	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/repository"
	"github.com/reportdeck/reportdeck/internal/storage"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	t.Cleanup(func() { database.Close() })

	return database
}

// testEnv wires real repositories over in-memory SQLite with a stub storage
// provider, seeded with one user, one active agency and one integration.
type testEnv struct {
	db       *sqlx.DB
	cfg      *config.Config
	provider *stubProvider

	userRepo        repository.UserRepository
	agencyRepo      repository.AgencyRepository
	integrationRepo repository.IntegrationRepository
	clientRepo      repository.ClientRepository
	reportRepo      repository.ReportRepository

	integrationService *IntegrationService
	clientService      *ClientService

	user        *model.User
	agency      *model.Agency
	integration *model.StorageIntegration
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database := newTestDB(t)
	cfg := &config.Config{
		AppName: "ReportDeck",
		AppEnv:  "development",
		AppURL:  "https://app.example.com",
	}

	env := &testEnv{
		db:              database,
		cfg:             cfg,
		provider:        newStubProvider(),
		userRepo:        repository.NewUserRepository(database),
		agencyRepo:      repository.NewAgencyRepository(database),
		integrationRepo: repository.NewIntegrationRepository(database),
		clientRepo:      repository.NewClientRepository(database),
		reportRepo:      repository.NewReportRepository(database),
	}

	factory := func(cfg *config.Config, integration *model.StorageIntegration, settings *model.AgencySettings) (storage.Provider, error) {
		return env.provider, nil
	}

	env.integrationService = NewIntegrationService(cfg, env.integrationRepo, env.agencyRepo, factory)
	env.clientService = NewClientService(env.clientRepo, env.integrationService)

	now := time.Now()
	env.user = &model.User{
		ID:           uuid.New().String(),
		Email:        "owner@example.com",
		PasswordHash: "hash",
		FullName:     "Owner",
		CreatedAt:    now,
	}
	require.NoError(t, env.userRepo.Create(env.user))

	env.agency = &model.Agency{
		ID:          uuid.New().String(),
		Name:        "Test Agency",
		Slug:        "test-agency",
		Status:      model.AgencyStatusActive,
		ReportLimit: 10,
		CreatedBy:   env.user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, env.agency.SetSettings(&model.AgencySettings{
		GoogleDrive: &model.GoogleDriveSettings{FolderID: "root-1", FolderName: "tis-root"},
	}))
	require.NoError(t, env.agencyRepo.Create(env.agency))
	require.NoError(t, env.agencyRepo.AddMember(&model.AgencyUser{
		AgencyID:  env.agency.ID,
		UserID:    env.user.ID,
		Role:      model.AgencyRoleAdmin,
		CreatedAt: now,
	}))

	refresh := "refresh-token"
	env.integration = &model.StorageIntegration{
		ID:           uuid.New().String(),
		AgencyID:     env.agency.ID,
		Provider:     model.ProviderGoogleDrive,
		AccessToken:  "access-token",
		RefreshToken: &refresh,
		Status:       model.IntegrationStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, env.integrationRepo.Create(env.integration))

	return env
}

type stubUpload struct {
	Folder   string
	Filename string
	MimeType string
	Content  []byte
}

// stubProvider records every storage interaction and answers from memory.
type stubProvider struct {
	name string

	tokenResult  *storage.TokenResult
	tokenErr     error
	provisionErr error
	resolveErr   error

	uploads    []stubUpload
	deleted    []model.FileRef
	uploadFail bool

	slidesJSON []byte
	slidesErr  error
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		name:        model.ProviderGoogleDrive,
		tokenResult: &storage.TokenResult{Token: "access-token"},
		slidesJSON:  []byte(`{"slides":[]}`),
	}
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) EnsureToken(ctx context.Context, accessToken, refreshToken string) (*storage.TokenResult, error) {
	if p.tokenErr != nil {
		return nil, p.tokenErr
	}
	return p.tokenResult, nil
}

func (p *stubProvider) ProvisionClient(ctx context.Context, token, clientName string) (*storage.ClientFolders, error) {
	if p.provisionErr != nil {
		return nil, p.provisionErr
	}
	return &storage.ClientFolders{
		Root:      storage.Folder{ID: "client-root"},
		Templates: storage.Folder{ID: "client-templates"},
		Data:      storage.Folder{ID: "client-data"},
		Reports:   storage.Folder{ID: "client-reports"},
	}, nil
}

func (p *stubProvider) ResolveFolder(ctx context.Context, token, clientName, subfolder string) (*storage.Folder, error) {
	if p.resolveErr != nil {
		return nil, p.resolveErr
	}
	return &storage.Folder{ID: "client-" + subfolder}, nil
}

func (p *stubProvider) Upload(ctx context.Context, token string, folder *storage.Folder, filename, mimeType string, content []byte) model.FileRef {
	p.uploads = append(p.uploads, stubUpload{
		Folder:   folder.ID,
		Filename: filename,
		MimeType: mimeType,
		Content:  content,
	})
	if p.uploadFail {
		return model.FileRef{}
	}
	return model.NewFileRef("id-"+filename, fmt.Sprintf("https://files.example.com/%s", filename))
}

func (p *stubProvider) Delete(ctx context.Context, token string, ref model.FileRef) {
	if ref.IsZero() {
		return
	}
	p.deleted = append(p.deleted, ref)
}

func (p *stubProvider) ExtractSlides(ctx context.Context, token, presentationID string) ([]byte, error) {
	if p.slidesErr != nil {
		return nil, p.slidesErr
	}
	return p.slidesJSON, nil
}
