package handler

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/reportdeck/reportdeck/internal/api"
)

type HealthHandler struct {
	db *sqlx.DB
}

func NewHealthHandler(db *sqlx.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
