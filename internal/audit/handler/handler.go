package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"estateclaims/internal/audit"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/httputil"
	"estateclaims/pkg/platform/middleware/admin"
)

// Service reads the audit trail.
type Service interface {
	List(ctx context.Context, caller id.Caller, entityType, entityID string) ([]audit.Entry, error)
	ListRecent(ctx context.Context, caller id.Caller, limit int) ([]audit.Entry, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(admin.RequireStaff(h.logger)).Get("/audit", h.HandleRecent)
	r.With(admin.RequireStaff(h.logger)).Get("/audit/{entityType}/{entityID}", h.HandleList)
}

// HandleList handles GET /audit/{entityType}/{entityID}.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	entries, err := h.service.List(ctx, caller, chi.URLParam(r, "entityType"), chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "list audit trail failed", err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// HandleRecent handles GET /audit?limit=.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		limit = parsed
	}
	entries, err := h.service.ListRecent(ctx, caller, limit)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "list recent audit entries failed", err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
