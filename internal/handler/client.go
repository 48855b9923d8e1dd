package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/reportdeck/reportdeck/internal/api"
	"github.com/reportdeck/reportdeck/internal/ctxkeys"
	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/service"
	"github.com/reportdeck/reportdeck/internal/validation"
)

type ClientHandler struct {
	clientService *service.ClientService
}

func NewClientHandler(clientService *service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

type clientResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Templates templatesInfo `json:"templates"`

	Folders *model.ClientFolderSettings `json:"folders,omitempty"`
}

type templatesInfo struct {
	MediaPlan        model.FileRef `json:"media_plan"`
	MediaPlanResults model.FileRef `json:"media_plan_results"`
	Slides           model.FileRef `json:"slides"`
	SlidesJSON       model.FileRef `json:"slides_json"`
}

func toClientResponse(client *model.Client) clientResponse {
	resp := clientResponse{
		ID:        client.ID,
		Name:      client.Name,
		CreatedAt: client.CreatedAt,
		UpdatedAt: client.UpdatedAt,
		Templates: templatesInfo{
			MediaPlan:        client.MediaPlanTemplate(),
			MediaPlanResults: client.MediaPlanResultsTemplate(),
			Slides:           client.SlidesTemplate(),
			SlidesJSON:       client.SlidesJSON(),
		},
	}
	if folders, err := client.FolderSettings(); err == nil {
		resp.Folders = folders
	}
	return resp
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())

	clients, err := h.clientService.List(agency.ID)
	if err != nil {
		slog.Error("failed to list clients", "agency_id", agency.ID, "error", err)
		api.WriteError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}

	resp := make([]clientResponse, 0, len(clients))
	for _, client := range clients {
		resp = append(resp, toClientResponse(client))
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"clients": resp})
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())

	client, err := h.clientService.ByID(r.PathValue("id"), agency.ID)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			api.WriteError(w, http.StatusNotFound, "client not found")
			return
		}
		slog.Error("failed to get client", "agency_id", agency.ID, "error", err)
		api.WriteError(w, http.StatusInternalServerError, "failed to get client")
		return
	}

	api.WriteJSON(w, http.StatusOK, toClientResponse(client))
}

// Create accepts multipart form data: a required name plus optional template
// files (media_plan_template, media_plan_results_template, slides_template).
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())

	input, err := parseClientForm(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateName(input.Name); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.clientService.Create(r.Context(), agency, *input)
	if err != nil {
		h.writeClientError(w, agency.ID, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, toClientResponse(client))
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())

	input, err := parseClientForm(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.clientService.Update(r.Context(), agency, r.PathValue("id"), *input)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			api.WriteError(w, http.StatusNotFound, "client not found")
			return
		}
		h.writeClientError(w, agency.ID, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, toClientResponse(client))
}

func (h *ClientHandler) writeClientError(w http.ResponseWriter, agencyID string, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveIntegration):
		api.WriteError(w, http.StatusConflict, "connect a storage provider first")
	case errors.Is(err, service.ErrReconnectRequired):
		api.WriteError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("client operation failed", "agency_id", agencyID, "error", err)
		api.WriteError(w, http.StatusInternalServerError, "client operation failed")
	}
}

func parseClientForm(r *http.Request) (*service.ClientInput, error) {
	if err := r.ParseMultipartForm(4 * validation.MaxUploadSize); err != nil {
		return nil, errors.New("invalid multipart form")
	}

	input := &service.ClientInput{Name: r.FormValue("name")}

	var err error
	if input.MediaPlan, err = formTemplate(r, "media_plan_template"); err != nil {
		return nil, err
	}
	if input.MediaPlanResults, err = formTemplate(r, "media_plan_results_template"); err != nil {
		return nil, err
	}
	if input.Slides, err = formTemplate(r, "slides_template"); err != nil {
		return nil, err
	}

	return input, nil
}

// formTemplate reads an optional file field; absence is not an error.
func formTemplate(r *http.Request, field string) (*service.TemplateUpload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.New("invalid file field " + field)
	}
	defer file.Close()

	if err := validation.ValidateTemplateUpload(header.Filename, header.Size); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read file " + header.Filename)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &service.TemplateUpload{
		Filename: header.Filename,
		MimeType: mimeType,
		Content:  content,
	}, nil
}
