// Package handler exposes the active document checklist.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"admitdesk/internal/checklist/service"
	"admitdesk/internal/platform/httputil"
	"admitdesk/internal/platform/middleware"
)

type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/checklist", func(r chi.Router) {
		r.Use(middleware.RequireRoles(h.logger, "admin", "staff"))
		r.Get("/", h.active)
	})
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Active(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}
