package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/reportdeck/reportdeck/internal/api"
	"github.com/reportdeck/reportdeck/internal/ctxkeys"
	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/repository"
	"github.com/reportdeck/reportdeck/internal/service"
)

type IntegrationHandler struct {
	integrationService *service.IntegrationService
	integrationRepo    repository.IntegrationRepository
}

func NewIntegrationHandler(integrationService *service.IntegrationService, integrationRepo repository.IntegrationRepository) *IntegrationHandler {
	return &IntegrationHandler{
		integrationService: integrationService,
		integrationRepo:    integrationRepo,
	}
}

type integrationResponse struct {
	ID        string     `json:"id"`
	Provider  string     `json:"provider"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toIntegrationResponse(integration *model.StorageIntegration) integrationResponse {
	return integrationResponse{
		ID:        integration.ID,
		Provider:  integration.Provider,
		Status:    integration.Status,
		ExpiresAt: integration.ExpiresAt,
		CreatedAt: integration.CreatedAt,
	}
}

// List returns the agency's integrations, newest first. Tokens never leave
// the server.
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())
	if r.PathValue("id") != agency.ID {
		api.WriteError(w, http.StatusForbidden, "agency mismatch")
		return
	}

	integrations, err := h.integrationService.ListIntegrations(agency.ID)
	if err != nil {
		slog.Error("failed to list integrations", "agency_id", agency.ID, "error", err)
		api.WriteError(w, http.StatusInternalServerError, "failed to list integrations")
		return
	}

	resp := make([]integrationResponse, 0, len(integrations))
	for _, integration := range integrations {
		resp = append(resp, toIntegrationResponse(integration))
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"integrations": resp})
}

// Setup finishes provider onboarding for the integration in the path. Drive
// setup provisions the root folder; SharePoint setup records the chosen site.
func (h *IntegrationHandler) Setup(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())

	integration, err := h.integrationRepo.ByID(r.PathValue("id"))
	if err != nil || integration.AgencyID != agency.ID {
		api.WriteError(w, http.StatusNotFound, "integration not found")
		return
	}
	if integration.Status != model.IntegrationStatusActive {
		api.WriteError(w, http.StatusConflict, "integration is not active")
		return
	}

	switch integration.Provider {
	case model.ProviderGoogleDrive:
		driveSettings, err := h.integrationService.SetupGoogleDrive(r.Context(), agency, integration)
		if err != nil {
			h.writeSetupError(w, agency.ID, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"google_drive": driveSettings})

	case model.ProviderSharePoint:
		var sp model.SharePointSettings
		if err := api.DecodeJSON(r, &sp); err != nil {
			api.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.integrationService.SetupSharePoint(r.Context(), agency, integration, &sp); err != nil {
			h.writeSetupError(w, agency.ID, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"sharepoint": sp})

	default:
		api.WriteError(w, http.StatusBadRequest, "unknown provider")
	}
}

// Sites lists SharePoint sites available to the agency's connection.
func (h *IntegrationHandler) Sites(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())

	integration, err := h.integrationService.ActiveIntegration(agency.ID)
	if err != nil {
		api.WriteError(w, http.StatusNotFound, "no active storage integration")
		return
	}
	if integration.Provider != model.ProviderSharePoint {
		api.WriteError(w, http.StatusBadRequest, "active integration is not sharepoint")
		return
	}

	sites, err := h.integrationService.ListSharePointSites(r.Context(), integration)
	if err != nil {
		h.writeSetupError(w, agency.ID, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

// UpdateSettings lets an agency adjust its storage settings, e.g. move the
// SharePoint folder path.
func (h *IntegrationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())
	if r.PathValue("id") != agency.ID {
		api.WriteError(w, http.StatusForbidden, "agency mismatch")
		return
	}

	integration, err := h.integrationService.ActiveIntegration(agency.ID)
	if err != nil {
		api.WriteError(w, http.StatusConflict, "no active storage integration")
		return
	}

	switch integration.Provider {
	case model.ProviderSharePoint:
		var sp model.SharePointSettings
		if err := api.DecodeJSON(r, &sp); err != nil {
			api.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.integrationService.SetupSharePoint(r.Context(), agency, integration, &sp); err != nil {
			h.writeSetupError(w, agency.ID, err)
			return
		}

	case model.ProviderGoogleDrive:
		// The Drive root is provisioned by setup and not user editable.
		api.WriteError(w, http.StatusBadRequest, "google drive settings are managed by setup")
		return
	}

	api.WriteJSON(w, http.StatusOK, toAgencyResponse(agency))
}

func (h *IntegrationHandler) writeSetupError(w http.ResponseWriter, agencyID string, err error) {
	if errors.Is(err, service.ErrReconnectRequired) {
		api.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	slog.Error("integration setup failed", "agency_id", agencyID, "error", err)
	api.WriteError(w, http.StatusInternalServerError, "integration setup failed")
}
