package handler

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/reportdeck/reportdeck/internal/api"
	"github.com/reportdeck/reportdeck/internal/ctxkeys"
	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/repository"
	"github.com/reportdeck/reportdeck/internal/service"
	"github.com/reportdeck/reportdeck/internal/validation"
)

type ReportHandler struct {
	reportService *service.ReportService
	callbackKey   string
}

func NewReportHandler(reportService *service.ReportService, callbackKey string) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		callbackKey:   callbackKey,
	}
}

type reportResponse struct {
	ID           string        `json:"id"`
	ClientID     string        `json:"client_id"`
	ClientName   string        `json:"client_name"`
	Name         string        `json:"name"`
	Status       string        `json:"status"`
	MediaPlan    model.FileRef `json:"media_plan"`
	MediaResults model.FileRef `json:"media_plan_results"`
	ReportLink   *string       `json:"report_link,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func toReportResponse(report *model.Report) reportResponse {
	return reportResponse{
		ID:           report.ID,
		ClientID:     report.ClientID,
		ClientName:   report.ClientName,
		Name:         report.Name,
		Status:       report.Status,
		MediaPlan:    report.MediaPlan(),
		MediaResults: report.MediaResults(),
		ReportLink:   report.ReportLink,
		ErrorMessage: report.ErrorMessage,
		CreatedAt:    report.CreatedAt,
		UpdatedAt:    report.UpdatedAt,
	}
}

// List supports client_id, status, start_date and end_date filters plus
// limit/offset pagination. Dates are RFC 3339 or plain YYYY-MM-DD.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())

	filter, err := parseReportFilter(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	reports, total, err := h.reportService.List(agency.ID, filter)
	if err != nil {
		slog.Error("failed to list reports", "agency_id", agency.ID, "error", err)
		api.WriteError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	resp := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		resp = append(resp, toReportResponse(report))
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"reports": resp,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// Create accepts multipart form data with client_id, name and two required
// CSV files (media_plan, media_plan_results).
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	agency := ctxkeys.Agency(r.Context())
	user := ctxkeys.User(r.Context())

	if err := r.ParseMultipartForm(4 * validation.MaxUploadSize); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	clientID := r.FormValue("client_id")
	name := r.FormValue("name")
	if clientID == "" {
		api.WriteError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if err := validation.ValidateName(name); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	mediaPlan, err := formCSV(r, "media_plan")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	mediaResults, err := formCSV(r, "media_plan_results")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reportService.Create(r.Context(), agency, user, clientID, name, mediaPlan, mediaResults)
	if err != nil {
		h.writeReportError(w, agency.ID, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, toReportResponse(report))
}

// Callback receives the automation engine's outcome. It is authenticated by
// the shared API key, not a user session.
func (h *ReportHandler) Callback(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-API-Key")
	if h.callbackKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.callbackKey)) != 1 {
		api.WriteError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	var input service.CallbackInput
	if err := api.DecodeJSON(r, &input); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.ReportID == "" {
		api.WriteError(w, http.StatusBadRequest, "report_id is required")
		return
	}

	report, err := h.reportService.HandleCallback(input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrReportNotFound):
			api.WriteError(w, http.StatusNotFound, "report not found")
		default:
			slog.Error("report callback failed", "report_id", input.ReportID, "error", err)
			api.WriteError(w, http.StatusInternalServerError, "callback processing failed")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"id": report.ID, "status": report.Status})
}

func (h *ReportHandler) writeReportError(w http.ResponseWriter, agencyID string, err error) {
	switch {
	case errors.Is(err, service.ErrDataFilesRequired):
		api.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrClientNotFound):
		api.WriteError(w, http.StatusNotFound, "client not found")
	case errors.Is(err, service.ErrReportLimitReached):
		api.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNoActiveIntegration):
		api.WriteError(w, http.StatusConflict, "connect a storage provider first")
	case errors.Is(err, service.ErrReconnectRequired):
		api.WriteError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("report creation failed", "agency_id", agencyID, "error", err)
		api.WriteError(w, http.StatusInternalServerError, "report creation failed")
	}
}

// formCSV reads a required CSV file field.
func formCSV(r *http.Request, field string) (*service.TemplateUpload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.New("invalid file field " + field)
	}
	defer file.Close()

	if err := validation.ValidateCSVUpload(header.Filename, header.Size); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read file " + header.Filename)
	}

	return &service.TemplateUpload{
		Filename: header.Filename,
		MimeType: "text/csv",
		Content:  content,
	}, nil
}

func parseReportFilter(r *http.Request) (repository.ReportFilter, error) {
	q := r.URL.Query()
	filter := repository.ReportFilter{
		ClientID: q.Get("client_id"),
		Status:   q.Get("status"),
		Limit:    50,
	}

	if filter.Status != "" {
		switch filter.Status {
		case model.ReportStatusInProcess, model.ReportStatusReady, model.ReportStatusFailed:
		default:
			return filter, errors.New("invalid status filter")
		}
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 200 {
			return filter, errors.New("limit must be between 1 and 200")
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must not be negative")
		}
		filter.Offset = offset
	}

	if v := q.Get("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filter, errors.New("invalid start_date")
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filter, errors.New("invalid end_date")
		}
		// A plain date means "through the end of that day"
		if len(v) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filter.EndDate = &t
	}

	return filter, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
