package app

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/db"
	"github.com/reportdeck/reportdeck/internal/repository"
	"github.com/reportdeck/reportdeck/internal/service"
	"github.com/reportdeck/reportdeck/internal/storage"
)

type App struct {
	Cfg *config.Config
	DB  *sqlx.DB

	UserRepository        repository.UserRepository
	AgencyRepository      repository.AgencyRepository
	IntegrationRepository repository.IntegrationRepository
	ClientRepository      repository.ClientRepository
	ReportRepository      repository.ReportRepository
	FileRepository        repository.FileRepository

	AuthService        *service.AuthService
	UserService        *service.UserService
	IntegrationService *service.IntegrationService
	ClientService      *service.ClientService
	ReportService      *service.ReportService
	AutomationService  *service.AutomationService
	EmailService       *service.EmailService
}

func New(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	agencyRepository := repository.NewAgencyRepository(database)
	integrationRepository := repository.NewIntegrationRepository(database)
	clientRepository := repository.NewClientRepository(database)
	reportRepository := repository.NewReportRepository(database)
	fileRepository := repository.NewFileRepository(database)

	// Avatar storage is optional; everything else works without it
	var blobStore storage.BlobStore
	if cfg.HasAvatarStorage() {
		blobStore, err = storage.NewBlobStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize avatar storage: %v", err)
		}
	} else {
		slog.Info("avatar storage disabled, S3 not configured")
	}

	// Services
	emailService := service.NewEmailService(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppURL, cfg.AppName, cfg.IsDevelopment())
	authService := service.NewAuthService(userRepository, agencyRepository, cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction())
	userService := service.NewUserService(userRepository, fileRepository, blobStore)
	integrationService := service.NewIntegrationService(cfg, integrationRepository, agencyRepository, storage.NewProvider)
	clientService := service.NewClientService(clientRepository, integrationService)
	automationService := service.NewAutomationService(cfg)
	reportService := service.NewReportService(reportRepository, clientRepository, userRepository, integrationService, automationService, emailService)

	return &App{
		Cfg: cfg,
		DB:  database,

		UserRepository:        userRepository,
		AgencyRepository:      agencyRepository,
		IntegrationRepository: integrationRepository,
		ClientRepository:      clientRepository,
		ReportRepository:      reportRepository,
		FileRepository:        fileRepository,

		AuthService:        authService,
		UserService:        userService,
		IntegrationService: integrationService,
		ClientService:      clientService,
		ReportService:      reportService,
		AutomationService:  automationService,
		EmailService:       emailService,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
