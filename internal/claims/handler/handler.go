package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"estateclaims/internal/claims/models"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/httputil"
	"estateclaims/pkg/requestcontext"
)

// Service defines the claim session operations exposed over HTTP.
type Service interface {
	CreateSession(ctx context.Context, caller id.Caller, req models.CreateSessionRequest) (*models.Session, error)
	GrantConsent(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error)
	WithdrawConsent(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error)
	SubmitDocuments(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error)
	BeginReview(ctx context.Context, caller id.Caller, sessionID id.SessionID, reviewer id.UserID) (*models.Session, error)
	RecordVerificationOutcome(ctx context.Context, caller id.Caller, sessionID id.SessionID, allVerified bool, notes string) (*models.Session, error)
	RejectSubmission(ctx context.Context, caller id.Caller, sessionID id.SessionID, notes string) (*models.Session, error)
	Approve(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error)
	Discover(ctx context.Context, caller id.Caller, sessionID id.SessionID) (int, error)
	GetSession(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error)
	ListSessions(ctx context.Context, caller id.Caller, status models.Status) ([]*models.Session, error)
	Progress(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Progress, error)
	Stats(ctx context.Context, caller id.Caller) (*models.Stats, error)
}

// Handler wires claim session endpoints to the claims service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a claims handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts claim session endpoints on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/claims/stats", h.HandleStats)
	r.Route("/claims/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/progress", h.HandleProgress)
			r.Post("/consent", h.HandleGrantConsent)
			r.Delete("/consent", h.HandleWithdrawConsent)
			r.Post("/submit", h.HandleSubmit)
			r.Post("/review", h.HandleBeginReview)
			r.Post("/outcome", h.HandleOutcome)
			r.Post("/reject", h.HandleReject)
			r.Post("/approve", h.HandleApprove)
			r.Post("/discover", h.HandleDiscover)
		})
	})
}

// HandleCreate handles POST /claims/sessions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.CreateSession(ctx, caller, req.toModel())
	if err != nil {
		h.fail(ctx, w, "create session failed", err)
		return
	}
	h.logger.InfoContext(ctx, "claim session created",
		"request_id", requestID,
		"session_id", session.ID,
		"claimant_id", caller.UserID,
	)
	httputil.WriteJSON(w, http.StatusCreated, session)
}

// HandleList handles GET /claims/sessions?status=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	var status models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, valid := models.ParseStatus(raw)
		if !valid {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown status filter"))
			return
		}
		status = parsed
	}
	sessions, err := h.service.ListSessions(ctx, caller, status)
	if err != nil {
		h.fail(ctx, w, "list sessions failed", err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// HandleGet handles GET /claims/sessions/{sessionID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "get session failed", http.StatusOK, h.service.GetSession)
}

// HandleProgress handles GET /claims/sessions/{sessionID}/progress.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, sessionID, ok := h.callerAndSession(w, r)
	if !ok {
		return
	}
	progress, err := h.service.Progress(ctx, caller, sessionID)
	if err != nil {
		h.fail(ctx, w, "session progress failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, progress)
}

// HandleStats handles GET /claims/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	stats, err := h.service.Stats(ctx, caller)
	if err != nil {
		h.fail(ctx, w, "claim stats failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleGrantConsent(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "grant consent failed", http.StatusOK, h.service.GrantConsent)
}

func (h *Handler) HandleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "withdraw consent failed", http.StatusOK, h.service.WithdrawConsent)
}

// HandleSubmit handles POST /claims/sessions/{sessionID}/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "submit documents failed", http.StatusOK, h.service.SubmitDocuments)
}

// HandleBeginReview handles POST /claims/sessions/{sessionID}/review.
func (h *Handler) HandleBeginReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, sessionID, ok := h.callerAndSession(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BeginReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	session, err := h.service.BeginReview(ctx, caller, sessionID, req.reviewer)
	if err != nil {
		h.fail(ctx, w, "begin review failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// HandleOutcome handles POST /claims/sessions/{sessionID}/outcome.
func (h *Handler) HandleOutcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, sessionID, ok := h.callerAndSession(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OutcomeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	session, err := h.service.RecordVerificationOutcome(ctx, caller, sessionID, *req.AllVerified, req.Notes)
	if err != nil {
		h.fail(ctx, w, "record verification outcome failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// HandleReject handles POST /claims/sessions/{sessionID}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, sessionID, ok := h.callerAndSession(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[NotesRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	session, err := h.service.RejectSubmission(ctx, caller, sessionID, req.Notes)
	if err != nil {
		h.fail(ctx, w, "reject submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// HandleApprove handles POST /claims/sessions/{sessionID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "approve session failed", http.StatusOK, h.service.Approve)
}

// HandleDiscover handles POST /claims/sessions/{sessionID}/discover, the
// staff retry for a discovery run that failed after approval.
func (h *Handler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, sessionID, ok := h.callerAndSession(w, r)
	if !ok {
		return
	}
	n, err := h.service.Discover(ctx, caller, sessionID)
	if err != nil {
		h.fail(ctx, w, "asset discovery failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"discovered": n})
}

type sessionFunc func(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error)

func (h *Handler) sessionAction(w http.ResponseWriter, r *http.Request, failMsg string, status int, fn sessionFunc) {
	ctx := r.Context()
	caller, sessionID, ok := h.callerAndSession(w, r)
	if !ok {
		return
	}
	session, err := fn(ctx, caller, sessionID)
	if err != nil {
		h.fail(ctx, w, failMsg, err)
		return
	}
	httputil.WriteJSON(w, status, session)
}

func (h *Handler) callerAndSession(w http.ResponseWriter, r *http.Request) (id.Caller, id.SessionID, bool) {
	caller, ok := httputil.RequireCaller(w, r.Context())
	if !ok {
		return id.Caller{}, id.SessionID{}, false
	}
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.Caller{}, id.SessionID{}, false
	}
	return caller, sessionID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	httputil.LogAndWriteError(ctx, w, h.logger, msg, err)
}
