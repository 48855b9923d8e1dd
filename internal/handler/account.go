package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/reportdeck/reportdeck/internal/api"
	"github.com/reportdeck/reportdeck/internal/ctxkeys"
	"github.com/reportdeck/reportdeck/internal/service"
	"github.com/reportdeck/reportdeck/internal/validation"
)

type AccountHandler struct {
	userService *service.UserService
}

func NewAccountHandler(userService *service.UserService) *AccountHandler {
	return &AccountHandler{userService: userService}
}

// Me returns the authenticated user and their agency.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	agency := ctxkeys.Agency(r.Context())

	api.WriteJSON(w, http.StatusOK, sessionResponse{
		User:   toUserResponse(user),
		Agency: toAgencyResponse(agency),
	})
}

func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	if err := r.ParseMultipartForm(validation.MaxAvatarSize); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	_, err = h.userService.UploadAvatar(user.ID, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		if errors.Is(err, service.ErrAvatarStorageDisabled) {
			api.WriteError(w, http.StatusNotImplemented, err.Error())
			return
		}
		slog.Error("avatar upload failed", "user_id", user.ID, "error", err)
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.userService.ByID(user.ID)
	if err != nil {
		api.WriteJSON(w, http.StatusOK, toUserResponse(user))
		return
	}

	api.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *AccountHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	if err := h.userService.DeleteAvatar(user.ID); err != nil {
		if errors.Is(err, service.ErrAvatarStorageDisabled) {
			api.WriteError(w, http.StatusNotImplemented, err.Error())
			return
		}
		slog.Error("avatar delete failed", "user_id", user.ID, "error", err)
		api.WriteError(w, http.StatusInternalServerError, "failed to delete avatar")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
