package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/repository"
	"github.com/reportdeck/reportdeck/internal/storage"
)

var (
	ErrReportNotFound     = errors.New("report not found")
	ErrReportLimitReached = errors.New("monthly report limit reached")
	ErrDataFilesRequired  = errors.New("media plan and media plan results files are both required")
	ErrInvalidStatus      = errors.New("status must be ready or failed")
)

// CallbackInput is the automation engine's outcome message.
type CallbackInput struct {
	ReportID     string `json:"report_id"`
	Status       string `json:"status"`
	ReportLink   string `json:"report_link"`
	ErrorMessage string `json:"error_message"`
	ReportFileID string `json:"report_file_id"`
}

type ReportService struct {
	reportRepo         repository.ReportRepository
	clientRepo         repository.ClientRepository
	userRepo           repository.UserRepository
	integrationService *IntegrationService
	automationService  *AutomationService
	emailService       *EmailService
}

func NewReportService(
	reportRepo repository.ReportRepository,
	clientRepo repository.ClientRepository,
	userRepo repository.UserRepository,
	integrationService *IntegrationService,
	automationService *AutomationService,
	emailService *EmailService,
) *ReportService {
	return &ReportService{
		reportRepo:         reportRepo,
		clientRepo:         clientRepo,
		userRepo:           userRepo,
		integrationService: integrationService,
		automationService:  automationService,
		emailService:       emailService,
	}
}

func (s *ReportService) List(agencyID string, filter repository.ReportFilter) ([]*model.Report, int, error) {
	reports, err := s.reportRepo.ByAgency(agencyID, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.reportRepo.CountByAgency(agencyID, filter)
	if err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

// Create uploads both CSVs to the client's data folder, records the report
// as in-process and dispatches the job. The response never waits for the
// automation engine.
func (s *ReportService) Create(ctx context.Context, agency *model.Agency, user *model.User, clientID, name string, mediaPlan, mediaResults *TemplateUpload) (*model.Report, error) {
	if mediaPlan == nil || mediaResults == nil {
		return nil, ErrDataFilesRequired
	}

	client, err := s.clientRepo.ByID(clientID, agency.ID)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	if err := s.checkMonthlyLimit(agency); err != nil {
		return nil, err
	}

	integration, err := s.integrationService.ActiveIntegration(agency.ID)
	if err != nil {
		return nil, err
	}
	provider, err := s.integrationService.Provider(agency, integration)
	if err != nil {
		return nil, err
	}
	token, err := s.integrationService.EnsureToken(ctx, provider, integration)
	if err != nil {
		return nil, err
	}

	dataFolder, err := provider.ResolveFolder(ctx, token, client.Name, storage.SubfolderData)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data folder: %w", err)
	}

	// Both files share one timestamp so they pair up in the folder listing.
	ts := time.Now().UnixMilli()
	planRef := provider.Upload(ctx, token, dataFolder,
		fmt.Sprintf("%d.media_plan.csv", ts), "text/csv", mediaPlan.Content)
	resultsRef := provider.Upload(ctx, token, dataFolder,
		fmt.Sprintf("%d.media_plan_results.csv", ts), "text/csv", mediaResults.Content)

	now := time.Now()
	report := &model.Report{
		ID:          uuid.New().String(),
		AgencyID:    agency.ID,
		ClientID:    client.ID,
		Name:        name,
		Status:      model.ReportStatusInProcess,
		GeneratedBy: user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		ClientName:  client.Name,
	}
	report.SetMediaPlan(planRef)
	report.SetMediaResults(resultsRef)

	if err := s.reportRepo.Create(report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	settings, err := agency.Settings()
	if err != nil {
		slog.Warn("failed to parse agency settings for dispatch", "agency_id", agency.ID, "error", err)
		settings = &model.AgencySettings{}
	}

	s.automationService.Dispatch(&ReportPayload{
		Report: PayloadReport{ID: report.ID, Name: report.Name},
		Client: PayloadClient{ID: client.ID, Name: client.Name},
		Agency: PayloadAgency{ID: agency.ID, Name: agency.Name},
		DataFiles: PayloadDataFiles{
			MediaPlan:    planRef,
			MediaResults: resultsRef,
		},
		Templates: PayloadTemplates{
			MediaPlan:        client.MediaPlanTemplate(),
			MediaPlanResults: client.MediaPlanResultsTemplate(),
			Slides:           client.SlidesTemplate(),
			SlidesJSON:       client.SlidesJSON(),
		},
		Storage: PayloadStorage{
			Provider:    integration.Provider,
			AccessToken: token,
			Settings:    settings,
		},
	})

	return report, nil
}

// HandleCallback applies the engine's outcome. Reports that already left
// the in-process state keep their result; the engine retries deliveries.
func (s *ReportService) HandleCallback(input CallbackInput) (*model.Report, error) {
	if input.Status != model.ReportStatusReady && input.Status != model.ReportStatusFailed {
		return nil, ErrInvalidStatus
	}

	report, err := s.reportRepo.ByID(input.ReportID)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	if report.Status != model.ReportStatusInProcess {
		slog.Info("callback for settled report ignored", "report_id", report.ID, "status", report.Status)
		return report, nil
	}

	report.Status = input.Status
	report.UpdatedAt = time.Now()

	if input.Status == model.ReportStatusReady {
		if input.ReportLink != "" {
			link := input.ReportLink
			report.ReportLink = &link
		}
		if input.ReportFileID != "" {
			fileID := input.ReportFileID
			report.ReportFileID = &fileID
		}
	} else {
		msg := input.ErrorMessage
		if msg == "" {
			msg = "report generation failed"
		}
		report.ErrorMessage = &msg
	}

	if err := s.reportRepo.UpdateOutcome(report); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	s.notifyGenerator(report)

	slog.Info("report callback processed", "report_id", report.ID, "status", report.Status)
	return report, nil
}

func (s *ReportService) notifyGenerator(report *model.Report) {
	user, err := s.userRepo.ByID(report.GeneratedBy)
	if err != nil {
		slog.Warn("report notification skipped, generator not found", "report_id", report.ID, "user_id", report.GeneratedBy)
		return
	}

	if report.Status == model.ReportStatusReady {
		link := ""
		if report.ReportLink != nil {
			link = *report.ReportLink
		}
		err = s.emailService.SendReportReady(user.Email, report.ClientName, report.Name, link)
	} else {
		msg := ""
		if report.ErrorMessage != nil {
			msg = *report.ErrorMessage
		}
		err = s.emailService.SendReportFailed(user.Email, report.ClientName, report.Name, msg)
	}
	if err != nil {
		slog.Warn("report notification failed", "report_id", report.ID, "error", err)
	}
}

func (s *ReportService) checkMonthlyLimit(agency *model.Agency) error {
	if agency.ReportLimit <= 0 {
		return nil
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	count, err := s.reportRepo.CountByAgency(agency.ID, repository.ReportFilter{StartDate: &monthStart})
	if err != nil {
		return fmt.Errorf("failed to count reports: %w", err)
	}
	if count >= agency.ReportLimit {
		return ErrReportLimitReached
	}
	return nil
}
