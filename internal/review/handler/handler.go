package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"estateclaims/internal/review"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/httputil"
	"estateclaims/pkg/platform/middleware/admin"
	"estateclaims/pkg/requestcontext"
)

// Service is the reviewer workflow exposed over HTTP.
type Service interface {
	PendingDocuments(ctx context.Context, caller id.Caller) ([]review.PendingDocument, error)
	DecideDocument(ctx context.Context, caller id.Caller, docID id.DocumentID, approved bool, reason string) (*review.Decision, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the reviewer queue. Every route is staff only.
func (h *Handler) Register(r chi.Router) {
	r.Route("/review/documents", func(r chi.Router) {
		r.Use(admin.RequireStaff(h.logger))
		r.Get("/pending", h.HandlePending)
		r.Post("/{documentID}/decision", h.HandleDecide)
	})
}

// DecisionRequest is the body of POST /review/documents/{id}/decision.
type DecisionRequest struct {
	Approved *bool  `json:"approved"`
	Reason   string `json:"reason"`
}

func (r *DecisionRequest) Validate() error {
	if r.Approved == nil {
		return dErrors.New(dErrors.CodeValidation, "approved is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if !*r.Approved && r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required when rejecting")
	}
	return nil
}

// HandlePending handles GET /review/documents/pending.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	docs, err := h.service.PendingDocuments(ctx, caller)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "list pending documents failed", err)
		return
	}
	if docs == nil {
		docs = []review.PendingDocument{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// HandleDecide handles POST /review/documents/{documentID}/decision.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.service.DecideDocument(ctx, caller, docID, *req.Approved, req.Reason)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "document decision failed", err)
		return
	}
	h.logger.InfoContext(ctx, "document decided",
		"request_id", requestID,
		"document_id", docID,
		"status", decision.Document.Status,
		"reviewer_id", caller.UserID,
	)
	httputil.WriteJSON(w, http.StatusOK, decision)
}
