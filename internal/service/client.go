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

var ErrClientNotFound = errors.New("client not found")

// TemplateUpload is an incoming template file from a multipart request.
type TemplateUpload struct {
	Filename string
	MimeType string
	Content  []byte
}

// ClientInput carries a create or update request. Nil template fields on
// update mean "leave as is"; on create they mean "no template".
type ClientInput struct {
	Name             string
	MediaPlan        *TemplateUpload
	MediaPlanResults *TemplateUpload
	Slides           *TemplateUpload
}

// slidesExtractor is implemented by providers that can snapshot a slides
// document as JSON (Google Drive via the Slides API).
type slidesExtractor interface {
	ExtractSlides(ctx context.Context, token, presentationID string) ([]byte, error)
}

type ClientService struct {
	clientRepo         repository.ClientRepository
	integrationService *IntegrationService
}

func NewClientService(clientRepo repository.ClientRepository, integrationService *IntegrationService) *ClientService {
	return &ClientService{
		clientRepo:         clientRepo,
		integrationService: integrationService,
	}
}

func (s *ClientService) List(agencyID string) ([]*model.Client, error) {
	return s.clientRepo.ByAgency(agencyID)
}

func (s *ClientService) ByID(id, agencyID string) (*model.Client, error) {
	client, err := s.clientRepo.ByID(id, agencyID)
	if errors.Is(err, repository.ErrClientNotFound) {
		return nil, ErrClientNotFound
	}
	return client, err
}

// Create provisions the client's folder tree in the agency's storage and
// uploads any provided templates. Storage failures after provisioning do not
// fail the request: the client row is written with whatever refs succeeded.
func (s *ClientService) Create(ctx context.Context, agency *model.Agency, input ClientInput) (*model.Client, error) {
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

	folders, err := provider.ProvisionClient(ctx, token, input.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to provision client folders: %w", err)
	}

	now := time.Now()
	client := &model.Client{
		ID:        uuid.New().String(),
		AgencyID:  agency.ID,
		Name:      input.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	folderSettings := &model.ClientFolderSettings{
		Templates: folderLocation(provider, &folders.Templates),
		Data:      folderLocation(provider, &folders.Data),
		Reports:   folderLocation(provider, &folders.Reports),
	}
	if err := client.SetFolderSettings(folderSettings); err != nil {
		return nil, fmt.Errorf("failed to encode folder settings: %w", err)
	}

	if input.MediaPlan != nil {
		client.SetMediaPlanTemplate(provider.Upload(ctx, token, &folders.Templates,
			input.MediaPlan.Filename, input.MediaPlan.MimeType, input.MediaPlan.Content))
	}
	if input.MediaPlanResults != nil {
		client.SetMediaPlanResultsTemplate(provider.Upload(ctx, token, &folders.Templates,
			input.MediaPlanResults.Filename, input.MediaPlanResults.MimeType, input.MediaPlanResults.Content))
	}
	if input.Slides != nil {
		ref := provider.Upload(ctx, token, &folders.Templates,
			input.Slides.Filename, input.Slides.MimeType, input.Slides.Content)
		client.SetSlidesTemplate(ref)
		client.SetSlidesJSON(s.extractSlidesJSON(ctx, provider, token, &folders.Templates, ref))
	}

	if err := s.clientRepo.Create(client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	slog.Info("client created", "agency_id", agency.ID, "client_id", client.ID, "name", client.Name)
	return client, nil
}

// Update replaces the name and any provided templates. Replaced files are
// deleted from storage best effort; the database write happens regardless of
// upload outcomes so the row never drifts from what the user submitted.
func (s *ClientService) Update(ctx context.Context, agency *model.Agency, clientID string, input ClientInput) (*model.Client, error) {
	client, err := s.ByID(clientID, agency.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		client.Name = input.Name
	}

	hasUploads := input.MediaPlan != nil || input.MediaPlanResults != nil || input.Slides != nil
	if hasUploads {
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

		// A missing templates folder degrades the request, it does not fail
		// it: the name change and prior refs still get persisted below.
		templates, err := provider.ResolveFolder(ctx, token, client.Name, storage.SubfolderTemplates)
		if err != nil {
			slog.Warn("templates folder unavailable, skipping template replacement",
				"client_id", client.ID, "error", err)
		}

		if templates != nil && input.MediaPlan != nil {
			provider.Delete(ctx, token, client.MediaPlanTemplate())
			client.SetMediaPlanTemplate(provider.Upload(ctx, token, templates,
				input.MediaPlan.Filename, input.MediaPlan.MimeType, input.MediaPlan.Content))
		}
		if templates != nil && input.MediaPlanResults != nil {
			provider.Delete(ctx, token, client.MediaPlanResultsTemplate())
			client.SetMediaPlanResultsTemplate(provider.Upload(ctx, token, templates,
				input.MediaPlanResults.Filename, input.MediaPlanResults.MimeType, input.MediaPlanResults.Content))
		}
		if templates != nil && input.Slides != nil {
			provider.Delete(ctx, token, client.SlidesTemplate())
			provider.Delete(ctx, token, client.SlidesJSON())
			ref := provider.Upload(ctx, token, templates,
				input.Slides.Filename, input.Slides.MimeType, input.Slides.Content)
			client.SetSlidesTemplate(ref)
			client.SetSlidesJSON(s.extractSlidesJSON(ctx, provider, token, templates, ref))
		}
	}

	client.UpdatedAt = time.Now()
	if err := s.clientRepo.Update(client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	return client, nil
}

// extractSlidesJSON snapshots a slides template as JSON next to it. Only
// providers with a slides API support this; elsewhere it is a no-op.
func (s *ClientService) extractSlidesJSON(ctx context.Context, provider storage.Provider, token string, templates *storage.Folder, slidesRef model.FileRef) model.FileRef {
	extractor, ok := provider.(slidesExtractor)
	if !ok || slidesRef.IsZero() {
		return model.FileRef{}
	}

	raw, err := extractor.ExtractSlides(ctx, token, *slidesRef.ID)
	if err != nil {
		slog.Warn("slides extraction failed", "slides_id", *slidesRef.ID, "error", err)
		return model.FileRef{}
	}

	return provider.Upload(ctx, token, templates, "slides.json", "application/json", raw)
}

// folderLocation picks the provider-native identifier for a folder.
func folderLocation(provider storage.Provider, folder *storage.Folder) *string {
	var loc string
	if provider.Name() == model.ProviderSharePoint {
		loc = folder.Path
	} else {
		loc = folder.ID
	}
	if loc == "" {
		return nil
	}
	return &loc
}
