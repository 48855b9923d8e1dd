package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/reportdeck/reportdeck/internal/api"
	"github.com/reportdeck/reportdeck/internal/ctxkeys"
	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/service"
)

type AuthHandler struct {
	authService        *service.AuthService
	integrationService *service.IntegrationService
	appURL             string
	isProduction       bool
}

func NewAuthHandler(authService *service.AuthService, integrationService *service.IntegrationService, appURL string, isProduction bool) *AuthHandler {
	return &AuthHandler{
		authService:        authService,
		integrationService: integrationService,
		appURL:             appURL,
		isProduction:       isProduction,
	}
}

type signupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	AgencyName string `json:"agency_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User   userResponse   `json:"user"`
	Agency agencyResponse `json:"agency"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type agencyResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Slug        string                `json:"slug"`
	Status      string                `json:"status"`
	ReportLimit int                   `json:"report_limit"`
	Settings    *model.AgencySettings `json:"settings,omitempty"`
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		AvatarURL: user.AvatarURL,
	}
}

func toAgencyResponse(agency *model.Agency) agencyResponse {
	resp := agencyResponse{
		ID:          agency.ID,
		Name:        agency.Name,
		Slug:        agency.Slug,
		Status:      agency.Status,
		ReportLimit: agency.ReportLimit,
	}
	if settings, err := agency.Settings(); err == nil {
		resp.Settings = settings
	}
	return resp
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, agency, err := h.authService.Signup(req.Email, req.Password, req.FullName, req.AgencyName)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			api.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.startSession(w, user)
	api.WriteJSON(w, http.StatusCreated, sessionResponse{
		User:   toUserResponse(user),
		Agency: toAgencyResponse(agency),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			api.WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		slog.Error("login failed", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.startSession(w, user)
	api.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user *model.User) {
	token, err := h.authService.GenerateJWT(user)
	if err != nil {
		slog.Error("failed to generate session token", "user_id", user.ID, "error", err)
		return
	}
	h.authService.SetJWTCookie(w, token, time.Now().Add(h.authService.JWTExpiry()))
}

// ConnectGoogle starts the Google Drive OAuth flow.
func (h *AuthHandler) ConnectGoogle(w http.ResponseWriter, r *http.Request) {
	h.connect(w, r, model.ProviderGoogleDrive)
}

// ConnectSharePoint starts the Microsoft OAuth flow.
func (h *AuthHandler) ConnectSharePoint(w http.ResponseWriter, r *http.Request) {
	h.connect(w, r, model.ProviderSharePoint)
}

func (h *AuthHandler) connect(w http.ResponseWriter, r *http.Request, provider string) {
	state, err := randomState()
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "failed to start oauth flow")
		return
	}

	authURL, err := h.integrationService.AuthURL(provider, state)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, model.ProviderGoogleDrive, "google")
}

func (h *AuthHandler) SharePointCallback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, model.ProviderSharePoint, "sharepoint")
}

// callback finishes the OAuth flow and sends the browser back to the
// integrations page, flagging the outcome as a query parameter.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request, provider, label string) {
	settingsURL := h.appURL + "/settings/integrations"

	agency := ctxkeys.Agency(r.Context())
	if agency == nil {
		http.Redirect(w, r, settingsURL+"?error=session_expired", http.StatusFound)
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		slog.Warn("oauth consent denied", "provider", provider, "error", errParam)
		http.Redirect(w, r, settingsURL+"?error=consent_denied", http.StatusFound)
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Redirect(w, r, settingsURL+"?error=invalid_state", http.StatusFound)
		return
	}
	clearStateCookie(w, h.isProduction)

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, settingsURL+"?error=missing_code", http.StatusFound)
		return
	}

	if _, err := h.integrationService.HandleCallback(r.Context(), provider, code, agency.ID); err != nil {
		slog.Error("oauth callback failed", "provider", provider, "agency_id", agency.ID, "error", err)
		http.Redirect(w, r, settingsURL+"?error=connection_failed", http.StatusFound)
		return
	}

	http.Redirect(w, r, settingsURL+"?connected="+label, http.StatusFound)
}

func clearStateCookie(w http.ResponseWriter, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
