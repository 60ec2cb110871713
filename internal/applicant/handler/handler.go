// Package handler exposes the applicant dossier routes.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"admitdesk/internal/applicant/service"
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
	r.Route("/applicants", func(r chi.Router) {
		r.Use(middleware.RequireRoles(h.logger, "admin", "staff"))
		r.Post("/", h.create)
		r.Get("/", h.search)
		r.Get("/search", h.search)
		r.Get("/recent", h.recent)
		r.Get("/{studentCode}", h.get)
		r.Put("/{studentCode}", h.update)
		r.Delete("/{studentCode}", h.softDelete)
		r.Post("/{studentCode}/print", h.print)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.DecodeAndValidate[service.CreateInput](w, r, h.logger, r.Context())
	if !ok {
		return
	}

	a, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create applicant failed", "student_code", in.StudentCode, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), chi.URLParam(r, "studentCode"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.DecodeAndValidate[service.UpdateInput](w, r, h.logger, r.Context())
	if !ok {
		return
	}

	a, err := h.svc.Update(r.Context(), chi.URLParam(r, "studentCode"), in)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "update applicant failed", "student_code", chi.URLParam(r, "studentCode"), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": results})
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": results})
}

type softDeleteRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.DecodeAndValidate[softDeleteRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}

	code := chi.URLParam(r, "studentCode")
	if err := h.svc.SoftDelete(r.Context(), code, in.Reason); err != nil {
		h.logger.ErrorContext(r.Context(), "soft delete failed", "student_code", code, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true, "student_code": code})
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Print(r.Context(), chi.URLParam(r, "studentCode"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}
