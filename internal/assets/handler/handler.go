package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"estateclaims/internal/assets/models"
	"estateclaims/internal/assets/store"
	docmodels "estateclaims/internal/documents/models"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/httputil"
	"estateclaims/pkg/requestcontext"
)

// Service defines the asset and asset-claim operations exposed over HTTP.
type Service interface {
	ListAssets(ctx context.Context, caller id.Caller, sessionID id.SessionID) ([]*models.Asset, error)
	GetAsset(ctx context.Context, caller id.Caller, assetID id.AssetID) (*models.Asset, error)
	InitiateClaim(ctx context.Context, caller id.Caller, assetID id.AssetID, claimant id.UserID) (*models.AssetClaim, error)
	AttachReceipt(ctx context.Context, caller id.Caller, claimID id.AssetClaimID, file docmodels.FileMeta, content []byte) (*models.AssetClaim, error)
	StartProcessing(ctx context.Context, caller id.Caller, claimID id.AssetClaimID, notes string) (*models.AssetClaim, error)
	Finalize(ctx context.Context, caller id.Caller, claimID id.AssetClaimID, outcome models.ClaimStatus, notes string) (*models.AssetClaim, error)
	GetClaim(ctx context.Context, caller id.Caller, claimID id.AssetClaimID) (*models.AssetClaim, error)
	Receipt(ctx context.Context, caller id.Caller, claimID id.AssetClaimID) (*models.AssetClaim, []byte, error)
	ListClaims(ctx context.Context, caller id.Caller, filter store.ClaimFilter) ([]*models.AssetClaim, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts asset endpoints on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.HandleListAssets)
		r.Get("/{assetID}", h.HandleGetAsset)
		r.Post("/{assetID}/claims", h.HandleInitiateClaim)
	})
	r.Route("/asset-claims", func(r chi.Router) {
		r.Get("/", h.HandleListClaims)
		r.Route("/{claimID}", func(r chi.Router) {
			r.Get("/", h.HandleGetClaim)
			r.Post("/receipt", h.HandleAttachReceipt)
			r.Get("/receipt", h.HandleReceipt)
			r.Post("/processing", h.HandleStartProcessing)
			r.Post("/finalize", h.HandleFinalize)
		})
	})
}

// HandleListAssets handles GET /assets?session_id=.
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	sessionID, err := id.ParseSessionID(r.URL.Query().Get("session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	assets, err := h.service.ListAssets(ctx, caller, sessionID)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "list assets failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

// HandleGetAsset handles GET /assets/{assetID}.
func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, assetID, ok := h.callerAndAsset(w, r)
	if !ok {
		return
	}
	asset, err := h.service.GetAsset(ctx, caller, assetID)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "get asset failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

// HandleInitiateClaim handles POST /assets/{assetID}/claims.
func (h *Handler) HandleInitiateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, assetID, ok := h.callerAndAsset(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InitiateClaimRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.service.InitiateClaim(ctx, caller, assetID, req.claimant)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "initiate asset claim failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, claim)
}

// HandleListClaims handles GET /asset-claims?status=&asset_id=.
func (h *Handler) HandleListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	var filter store.ClaimFilter
	query := r.URL.Query()
	if raw := query.Get("status"); raw != "" {
		filter.Status = models.ClaimStatus(raw)
		if !filter.Status.IsValid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown status filter"))
			return
		}
	}
	if raw := query.Get("asset_id"); raw != "" {
		assetID, err := id.ParseAssetID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.AssetID = assetID
	}
	claims, err := h.service.ListClaims(ctx, caller, filter)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "list asset claims failed", err)
		return
	}
	if claims == nil {
		claims = []*models.AssetClaim{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"asset_claims": claims})
}

// HandleGetClaim handles GET /asset-claims/{claimID}.
func (h *Handler) HandleGetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, claimID, ok := h.callerAndClaim(w, r)
	if !ok {
		return
	}
	claim, err := h.service.GetClaim(ctx, caller, claimID)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "get asset claim failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

// HandleAttachReceipt handles POST /asset-claims/{claimID}/receipt as
// multipart/form-data with a single file field.
func (h *Handler) HandleAttachReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, claimID, ok := h.callerAndClaim(w, r)
	if !ok {
		return
	}
	upload, err := httputil.ReadMultipartFile(w, r, "file", docmodels.MaxFileSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claim, err := h.service.AttachReceipt(ctx, caller, claimID, docmodels.FileMeta{
		Name:     upload.Name,
		MIMEType: upload.ContentType,
		Size:     int64(len(upload.Content)),
	}, upload.Content)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "attach receipt failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

// HandleReceipt handles GET /asset-claims/{claimID}/receipt.
func (h *Handler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, claimID, ok := h.callerAndClaim(w, r)
	if !ok {
		return
	}
	claim, content, err := h.service.Receipt(ctx, caller, claimID)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "download receipt failed", err)
		return
	}
	w.Header().Set("Content-Type", httputil.SniffContentType("", content))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "receipt_" + claim.ID.String()}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		h.logger.WarnContext(ctx, "failed to write receipt content",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

// HandleStartProcessing handles POST /asset-claims/{claimID}/processing.
func (h *Handler) HandleStartProcessing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, claimID, ok := h.callerAndClaim(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[StartProcessingRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.service.StartProcessing(ctx, caller, claimID, req.Notes)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "start processing failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

// HandleFinalize handles POST /asset-claims/{claimID}/finalize.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, claimID, ok := h.callerAndClaim(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FinalizeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.service.Finalize(ctx, caller, claimID, req.outcome, req.Notes)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "finalize asset claim failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) callerAndAsset(w http.ResponseWriter, r *http.Request) (id.Caller, id.AssetID, bool) {
	caller, ok := httputil.RequireCaller(w, r.Context())
	if !ok {
		return id.Caller{}, id.AssetID{}, false
	}
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.Caller{}, id.AssetID{}, false
	}
	return caller, assetID, true
}

func (h *Handler) callerAndClaim(w http.ResponseWriter, r *http.Request) (id.Caller, id.AssetClaimID, bool) {
	caller, ok := httputil.RequireCaller(w, r.Context())
	if !ok {
		return id.Caller{}, id.AssetClaimID{}, false
	}
	claimID, err := id.ParseAssetClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.Caller{}, id.AssetClaimID{}, false
	}
	return caller, claimID, true
}
