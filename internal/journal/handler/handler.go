// Package handler exposes the audit journal over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"admitdesk/internal/audit"
	"admitdesk/internal/journal/service"
	"admitdesk/internal/platform/httputil"
	"admitdesk/internal/platform/middleware"
	"admitdesk/pkg/apperrors"
)

type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the journal routes. Reading the journal is open to
// staff and admins; restore and hard delete are admin only.
func (h *Handler) Register(r chi.Router) {
	r.Route("/journal", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(h.logger, "admin", "staff"))
			r.Get("/", h.list)
			r.Get("/deletion-requests", h.listDeletionRequests)
			r.Get("/{id}", h.get)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(h.logger, "admin"))
			r.Post("/restore/{id}", h.restore)
			r.Post("/hard-delete", h.hardDelete)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.svc.List(r.Context(), filter, parseSort(r), parsePage(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "journal list failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "entry id must be an integer"))
		return
	}

	entry, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "entry id must be an integer"))
		return
	}

	restored, err := h.svc.Restore(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "restore failed", "entry_id", id, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, restored)
}

func (h *Handler) hardDelete(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.DecodeAndValidate[service.HardDeleteInput](w, r, h.logger, r.Context())
	if !ok {
		return
	}

	if err := h.svc.HardDelete(r.Context(), in); err != nil {
		h.logger.ErrorContext(r.Context(), "hard delete failed", "target_id", in.TargetID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true, "target_id": in.TargetID})
}

func (h *Handler) listDeletionRequests(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListDeletionRequests(r.Context(), r.URL.Query().Get("status"), parsePage(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		TargetType: q.Get("target_type"),
		TargetID:   q.Get("target_id"),
		Query:      q.Get("q"),
		Actor:      q.Get("actor"),
	}

	if raw := q.Get("from"); raw != "" {
		t, err := parseDateTime(raw)
		if err != nil {
			return filter, apperrors.New(apperrors.CodeBadRequest, "from must be an ISO date or timestamp")
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseDateTime(raw)
		if err != nil {
			return filter, apperrors.New(apperrors.CodeBadRequest, "to must be an ISO date or timestamp")
		}
		// A bare date means "through the end of that day": bump to the
		// next midnight and compare exclusively.
		if !strings.Contains(raw, "T") {
			t = t.AddDate(0, 0, 1)
		}
		filter.To = &t
	}
	return filter, nil
}

func parseDateTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseSort(r *http.Request) audit.Sort {
	return audit.Sort{
		Field: r.URL.Query().Get("sort"),
		Desc:  !strings.EqualFold(r.URL.Query().Get("order"), "asc"),
	}.Normalize()
}

func parsePage(r *http.Request) audit.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return audit.Page{Number: number, Size: size}.Clamp()
}
