// Package service runs the asset claim lifecycle. Claims open only against
// approved sessions; loan claims leave CLAIMED by receipt, all others by an
// administrator starting processing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"estateclaims/internal/assets/models"
	"estateclaims/internal/assets/store"
	"estateclaims/internal/audit"
	"estateclaims/internal/blob"
	claimsmodels "estateclaims/internal/claims/models"
	docmodels "estateclaims/internal/documents/models"
	"estateclaims/internal/platform/external"
	"estateclaims/internal/platform/metrics"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/sentinel"
	"estateclaims/pkg/platform/tx"
	"estateclaims/pkg/requestcontext"
)

type AssetStore interface {
	FindAsset(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
	ListAssets(ctx context.Context, sessionID id.SessionID) ([]*models.Asset, error)
	CreateClaim(ctx context.Context, claim *models.AssetClaim) error
	FindClaim(ctx context.Context, claimID id.AssetClaimID) (*models.AssetClaim, error)
	UpdateClaim(ctx context.Context, claim *models.AssetClaim) error
	ListClaims(ctx context.Context, filter store.ClaimFilter) ([]*models.AssetClaim, error)
}

type SessionReader interface {
	Session(ctx context.Context, sessionID id.SessionID) (*claimsmodels.Session, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actor id.UserID, action audit.Action, entityType, entityID string, detail map[string]any) error
}

type Service struct {
	assets    AssetStore
	sessions  SessionReader
	blobs     blob.Store
	blobGuard *external.Guard
	tx        tx.Runner
	auditor   AuditRecorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBlobGuard retries and breaks receipt storage calls.
func WithBlobGuard(g *external.Guard) Option {
	return func(s *Service) {
		s.blobGuard = g
	}
}

func New(assets AssetStore, sessions SessionReader, blobs blob.Store, runner tx.Runner, auditor AuditRecorder, opts ...Option) *Service {
	s := &Service{
		assets:   assets,
		sessions: sessions,
		blobs:    blobs,
		tx:       runner,
		auditor:  auditor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAssets returns the assets discovered for a session. Sessions that are
// not yet verified have none by definition.
func (s *Service) ListAssets(ctx context.Context, caller id.Caller, sessionID id.SessionID) ([]*models.Asset, error) {
	session, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeSession(caller, session); err != nil {
		return nil, err
	}
	if !claimsmodels.EligibleForDiscovery(session) {
		return nil, dErrors.New(dErrors.CodePrecondition, "assets are available once the claim is verified")
	}
	assets, err := s.assets.ListAssets(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	return assets, nil
}

func (s *Service) GetAsset(ctx context.Context, caller id.Caller, assetID id.AssetID) (*models.Asset, error) {
	asset, session, err := s.loadAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if err := authorizeSession(caller, session); err != nil {
		return nil, err
	}
	return asset, nil
}

// InitiateClaim opens a claim on an asset of an approved session. A zero
// claimant means the caller. Staff may open a claim for another claimant,
// e.g. a co-heir; claimants may only claim for themselves on their own session.
func (s *Service) InitiateClaim(ctx context.Context, caller id.Caller, assetID id.AssetID, claimant id.UserID) (*models.AssetClaim, error) {
	if caller.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if claimant.IsNil() {
		claimant = caller.UserID
	}
	asset, session, err := s.loadAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !caller.IsStaff() && (claimant != caller.UserID || !session.IsOwnedBy(caller.UserID)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to claim this asset")
	}
	if session.Status != claimsmodels.StatusApproved {
		return nil, dErrors.New(dErrors.CodePrecondition, fmt.Sprintf("assets can be claimed once the claim is approved (status %s)", session.Status))
	}

	claim, err := models.NewAssetClaim(id.NewAssetClaimID(), asset.ID, claimant, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.assets.CreateClaim(ctx, claim); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "this claimant already has a claim on the asset")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create asset claim")
		}
		return s.auditor.Record(ctx, caller.UserID, audit.ActionCreate, audit.EntityAssetClaim, claim.ID.String(), map[string]any{
			"asset_id":    asset.ID.String(),
			"claimant_id": claimant.String(),
			"status":      claim.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(audit.EntityAssetClaim, string(claim.Status))
	s.logger.InfoContext(ctx, "asset claim initiated",
		"request_id", requestcontext.RequestID(ctx),
		"asset_claim_id", claim.ID,
		"asset_id", asset.ID,
		"claimant_id", claimant,
	)
	return claim, nil
}

// AttachReceipt stores a loan settlement receipt and moves the claim to
// PROCESSING. The file is written before the claim row; a failed commit
// leaves an orphan object and the claim unchanged.
func (s *Service) AttachReceipt(ctx context.Context, caller id.Caller, claimID id.AssetClaimID, file docmodels.FileMeta, content []byte) (*models.AssetClaim, error) {
	file.Size = int64(len(content))
	if err := file.Validate(); err != nil {
		return nil, err
	}
	claim, err := s.loadClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.ClaimantID != caller.UserID && !caller.Has(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the claimant may upload a receipt")
	}
	asset, _, err := s.loadAsset(ctx, claim.AssetID)
	if err != nil {
		return nil, err
	}
	// Rechecked under the write.
	if err := claim.CanAttachReceipt(asset); err != nil {
		return nil, err
	}

	locator, err := s.putBlob(ctx, blob.ReceiptKey(claim.ClaimantID, claim.ID, file.Name), file.MIMEType, content)
	if err != nil {
		return nil, err
	}
	updated, err := s.mutate(ctx, claimID, func(ctx context.Context, claim *models.AssetClaim, _ *models.Asset, _ time.Time) (*change, error) {
		if err := claim.AttachReceipt(asset, locator); err != nil {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionUpload, detail: map[string]any{
			"status":    claim.Status,
			"file_name": file.Name,
			"mime_type": file.MIMEType,
		}}, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "receipt stored but claim not updated",
			"request_id", requestcontext.RequestID(ctx),
			"asset_claim_id", claimID,
			"locator", locator,
			"error", err,
		)
		return nil, err
	}
	return updated, nil
}

// StartProcessing is the administrative move out of CLAIMED for assets that
// need no receipt.
func (s *Service) StartProcessing(ctx context.Context, caller id.Caller, claimID id.AssetClaimID, notes string) (*models.AssetClaim, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, claimID, func(ctx context.Context, claim *models.AssetClaim, asset *models.Asset, _ time.Time) (*change, error) {
		if err := claim.StartProcessing(asset, notes); err != nil {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionUpdate, detail: map[string]any{"status": claim.Status}}, nil
	})
}

// Finalize records the settlement outcome. Repeating the recorded outcome is
// a no-op.
func (s *Service) Finalize(ctx context.Context, caller id.Caller, claimID id.AssetClaimID, outcome models.ClaimStatus, notes string) (*models.AssetClaim, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, claimID, func(ctx context.Context, claim *models.AssetClaim, _ *models.Asset, now time.Time) (*change, error) {
		changed, err := claim.Finalize(outcome, notes, now)
		if err != nil || !changed {
			return nil, err
		}
		action := audit.ActionApprove
		if outcome == models.ClaimRejected {
			action = audit.ActionReject
		}
		return &change{actor: caller.UserID, action: action, detail: map[string]any{
			"status":           claim.Status,
			"processing_notes": claim.ProcessingNotes,
		}}, nil
	})
}

// GetClaim returns a claim to its claimant or to staff and records the view.
func (s *Service) GetClaim(ctx context.Context, caller id.Caller, claimID id.AssetClaimID) (*models.AssetClaim, error) {
	claim, err := s.loadClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := authorizeClaim(caller, claim); err != nil {
		return nil, err
	}
	if err := s.auditor.Record(ctx, caller.UserID, audit.ActionView, audit.EntityAssetClaim, claim.ID.String(), nil); err != nil {
		return nil, err
	}
	return claim, nil
}

// Receipt returns the stored receipt of a claim.
func (s *Service) Receipt(ctx context.Context, caller id.Caller, claimID id.AssetClaimID) (*models.AssetClaim, []byte, error) {
	claim, err := s.GetClaim(ctx, caller, claimID)
	if err != nil {
		return nil, nil, err
	}
	if claim.ReceiptLocator == "" {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "no receipt has been uploaded for this claim")
	}
	content, err := s.getBlob(ctx, claim.ReceiptLocator)
	if err != nil {
		return nil, nil, err
	}
	return claim, content, nil
}

// ListClaims returns the caller's claims, or every claim for staff.
func (s *Service) ListClaims(ctx context.Context, caller id.Caller, filter store.ClaimFilter) ([]*models.AssetClaim, error) {
	if caller.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status filter")
	}
	if !caller.IsStaff() {
		filter.ClaimantID = caller.UserID
	}
	claims, err := s.assets.ListClaims(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list asset claims")
	}
	return claims, nil
}

type change struct {
	actor  id.UserID
	action audit.Action
	detail map[string]any
}

// mutate loads the claim and its asset, applies one transition and writes it
// with the audit entry. A nil change writes nothing.
func (s *Service) mutate(ctx context.Context, claimID id.AssetClaimID, apply func(context.Context, *models.AssetClaim, *models.Asset, time.Time) (*change, error)) (*models.AssetClaim, error) {
	var result *models.AssetClaim
	var committed *change
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		claim, err := s.loadClaim(ctx, claimID)
		if err != nil {
			return err
		}
		asset, _, err := s.loadAsset(ctx, claim.AssetID)
		if err != nil {
			return err
		}
		c, err := apply(ctx, claim, asset, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		result = claim
		if c == nil {
			return nil
		}
		if err := s.assets.UpdateClaim(ctx, claim); err != nil {
			return s.translateWriteErr(err)
		}
		if err := s.auditor.Record(ctx, c.actor, c.action, audit.EntityAssetClaim, claim.ID.String(), c.detail); err != nil {
			return err
		}
		committed = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if committed != nil {
		s.metrics.IncTransition(audit.EntityAssetClaim, string(result.Status))
		s.logger.InfoContext(ctx, "asset claim updated",
			"request_id", requestcontext.RequestID(ctx),
			"asset_claim_id", result.ID,
			"action", committed.action,
			"status", result.Status,
		)
	}
	return result, nil
}

func (s *Service) loadClaim(ctx context.Context, claimID id.AssetClaimID) (*models.AssetClaim, error) {
	claim, err := s.assets.FindClaim(ctx, claimID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "asset claim not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset claim")
	}
	return claim, nil
}

func (s *Service) loadAsset(ctx context.Context, assetID id.AssetID) (*models.Asset, *claimsmodels.Session, error) {
	asset, err := s.assets.FindAsset(ctx, assetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
	}
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	session, err := s.sessions.Session(ctx, asset.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return asset, session, nil
}

func (s *Service) translateWriteErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrStaleWrite):
		s.metrics.IncConflict(audit.EntityAssetClaim)
		return dErrors.Wrap(err, dErrors.CodeConcurrentModification, "asset claim was modified concurrently; reload and retry")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "asset claim not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset claim")
	}
}

func (s *Service) putBlob(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.blobGuard != nil {
		return external.Do(ctx, s.blobGuard, "put", func(ctx context.Context) (string, error) {
			return s.blobs.Put(ctx, key, contentType, data)
		})
	}
	locator, err := s.blobs.Put(ctx, key, contentType, data)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeExternalService, "failed to store receipt")
	}
	return locator, nil
}

func (s *Service) getBlob(ctx context.Context, locator string) ([]byte, error) {
	if s.blobGuard != nil {
		return external.Do(ctx, s.blobGuard, "get", func(ctx context.Context) ([]byte, error) {
			data, err := s.blobs.Get(ctx, locator)
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, fmt.Errorf("%w: %w", external.ErrPermanent, err)
			}
			return data, err
		})
	}
	data, err := s.blobs.Get(ctx, locator)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "failed to read receipt")
	}
	return data, nil
}

func requireStaff(caller id.Caller) error {
	if caller.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !caller.IsStaff() {
		return dErrors.New(dErrors.CodeForbidden, "reviewer or admin role required")
	}
	return nil
}

func requireAdmin(caller id.Caller) error {
	if caller.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !caller.Has(id.RoleAdmin) {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return nil
}

func authorizeSession(caller id.Caller, session *claimsmodels.Session) error {
	if session.IsOwnedBy(caller.UserID) || caller.IsStaff() {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "not allowed to access this claim")
}

func authorizeClaim(caller id.Caller, claim *models.AssetClaim) error {
	if claim.ClaimantID == caller.UserID || caller.IsStaff() {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "not allowed to access this asset claim")
}
