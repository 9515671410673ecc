// Package service runs the claim session state machine. Every transition is
// one unit of work: load, validate against the transition table, write with a
// version check, and append the audit entry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"estateclaims/internal/audit"
	"estateclaims/internal/claims/models"
	"estateclaims/internal/claims/store"
	"estateclaims/internal/platform/metrics"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/sentinel"
	"estateclaims/pkg/platform/tx"
	"estateclaims/pkg/requestcontext"
)

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindForUpdate(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	List(ctx context.Context, filter store.ListFilter) ([]*models.Session, error)
}

// DocumentSet answers catalog questions about a session's documents.
type DocumentSet interface {
	// MissingRequiredTypes lists required catalog types with no non-rejected
	// document, and the total number of required types.
	MissingRequiredTypes(ctx context.Context, sessionID id.SessionID) (missing []string, required int, err error)
}

// Discoverer populates assets for an approved session.
type Discoverer interface {
	DiscoverForSession(ctx context.Context, sessionID id.SessionID) (int, error)
}

// AssetCounter counts discovered assets for the dashboard.
type AssetCounter interface {
	CountAssets(ctx context.Context, sessionIDs []id.SessionID) (int, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actor id.UserID, action audit.Action, entityType, entityID string, detail map[string]any) error
}

type Service struct {
	sessions         SessionStore
	documents        DocumentSet
	tx               tx.Runner
	auditor          AuditRecorder
	discoverer       Discoverer
	discoveryTimeout time.Duration
	assets           AssetCounter
	logger           *slog.Logger
	metrics          *metrics.Metrics
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

// WithDiscoverer sets the collaborator invoked after approval.
func WithDiscoverer(d Discoverer, timeout time.Duration) Option {
	return func(s *Service) {
		s.discoverer = d
		if timeout > 0 {
			s.discoveryTimeout = timeout
		}
	}
}

func WithAssetCounter(c AssetCounter) Option {
	return func(s *Service) {
		s.assets = c
	}
}

func New(sessions SessionStore, documents DocumentSet, runner tx.Runner, auditor AuditRecorder, opts ...Option) *Service {
	s := &Service{
		sessions:         sessions,
		documents:        documents,
		tx:               runner,
		auditor:          auditor,
		discoveryTimeout: 30 * time.Second,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a claim for the caller in STARTED.
func (s *Service) CreateSession(ctx context.Context, caller id.Caller, req models.CreateSessionRequest) (*models.Session, error) {
	if caller.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	now := requestcontext.Now(ctx)
	session, err := models.NewSession(id.NewSessionID(), caller.UserID,
		req.DeceasedName, req.DeceasedIDNumber, req.Relationship, req.Consent, req.Notes, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.Create(ctx, session); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create claim session")
		}
		return s.auditor.Record(ctx, caller.UserID, audit.ActionCreate, audit.EntityClaimSession, session.ID.String(), map[string]any{
			"status":       session.Status,
			"relationship": session.Relationship,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(audit.EntityClaimSession, string(session.Status))
	s.logger.InfoContext(ctx, "claim session created",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"claimant_id", session.ClaimantID,
	)
	return session, nil
}

// GrantConsent records the claimant's consent on their own session.
func (s *Service) GrantConsent(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error) {
	return s.mutate(ctx, sessionID, func(ctx context.Context, session *models.Session, now time.Time) (*change, error) {
		if !session.IsOwnedBy(caller.UserID) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the claimant may change consent")
		}
		changed, err := session.GrantConsent(now)
		if err != nil || !changed {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionUpdate, detail: map[string]any{"consent_given": true}}, nil
	})
}

// WithdrawConsent clears consent. Uploads are refused until it is granted again.
func (s *Service) WithdrawConsent(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error) {
	return s.mutate(ctx, sessionID, func(ctx context.Context, session *models.Session, now time.Time) (*change, error) {
		if !session.IsOwnedBy(caller.UserID) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the claimant may change consent")
		}
		changed, err := session.WithdrawConsent(now)
		if err != nil || !changed {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionUpdate, detail: map[string]any{"consent_given": false}}, nil
	})
}

// SubmitDocuments moves the session to DOCUMENTS_UPLOADED once every required
// catalog type has a document that has not been rejected.
func (s *Service) SubmitDocuments(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error) {
	return s.mutate(ctx, sessionID, func(ctx context.Context, session *models.Session, now time.Time) (*change, error) {
		if !session.IsOwnedBy(caller.UserID) && !caller.Has(id.RoleAdmin) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the claimant may submit documents")
		}
		if session.Status == models.StatusStarted {
			missing, _, err := s.documents.MissingRequiredTypes(ctx, session.ID)
			if err != nil {
				return nil, err
			}
			if len(missing) > 0 {
				return nil, dErrors.New(dErrors.CodePrecondition, "required documents missing: "+strings.Join(missing, ", "))
			}
		}
		changed, err := session.SubmitDocuments(now)
		if err != nil || !changed {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionUpdate, detail: map[string]any{"status": session.Status}}, nil
	})
}

// BeginReview assigns a reviewer. A nil reviewer assigns the caller.
func (s *Service) BeginReview(ctx context.Context, caller id.Caller, sessionID id.SessionID, reviewer id.UserID) (*models.Session, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if reviewer.IsNil() {
		reviewer = caller.UserID
	}
	return s.mutate(ctx, sessionID, func(ctx context.Context, session *models.Session, now time.Time) (*change, error) {
		if err := session.BeginReview(reviewer, now); err != nil {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionUpdate, detail: map[string]any{
			"status":            session.Status,
			"assigned_reviewer": reviewer.String(),
		}}, nil
	})
}

// RecordVerificationOutcome resolves a session under review. Repeating the
// recorded outcome is a no-op; a conflicting one is a state error.
func (s *Service) RecordVerificationOutcome(ctx context.Context, caller id.Caller, sessionID id.SessionID, allVerified bool, notes string) (*models.Session, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, func(ctx context.Context, session *models.Session, now time.Time) (*change, error) {
		changed, err := session.RecordVerificationOutcome(allVerified, notes, now)
		if err != nil || !changed {
			return nil, err
		}
		action := audit.ActionVerify
		detail := map[string]any{"status": session.Status}
		if !allVerified {
			action = audit.ActionReject
			detail["notes"] = session.Notes
		}
		return &change{actor: caller.UserID, action: action, detail: detail}, nil
	})
}

// RejectSubmission closes a submitted session before review starts.
func (s *Service) RejectSubmission(ctx context.Context, caller id.Caller, sessionID id.SessionID, notes string) (*models.Session, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, func(ctx context.Context, session *models.Session, now time.Time) (*change, error) {
		if err := session.RejectSubmission(notes, now); err != nil {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionReject, detail: map[string]any{
			"status": session.Status,
			"notes":  session.Notes,
		}}, nil
	})
}

// Approve moves VERIFIED to APPROVED and then asks the discovery collaborator
// for assets. Discovery runs after the commit; its failure is logged and can
// be retried with Discover.
func (s *Service) Approve(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	session, err := s.mutate(ctx, sessionID, func(ctx context.Context, session *models.Session, now time.Time) (*change, error) {
		if err := session.Approve(now); err != nil {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionApprove, detail: map[string]any{"status": session.Status}}, nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.runDiscovery(ctx, session.ID); err != nil {
		s.logger.WarnContext(ctx, "asset discovery failed after approval",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", session.ID,
			"error", err,
		)
	}
	return session, nil
}

// Discover re-runs asset discovery for an eligible session.
func (s *Service) Discover(ctx context.Context, caller id.Caller, sessionID id.SessionID) (int, error) {
	if err := requireStaff(caller); err != nil {
		return 0, err
	}
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if !models.EligibleForDiscovery(session) {
		return 0, dErrors.New(dErrors.CodePrecondition, "claim is not eligible for asset discovery")
	}
	return s.runDiscovery(ctx, session.ID)
}

func (s *Service) runDiscovery(ctx context.Context, sessionID id.SessionID) (int, error) {
	if s.discoverer == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.discoveryTimeout)
	defer cancel()
	return s.discoverer.DiscoverForSession(ctx, sessionID)
}

// GetSession returns one session to its claimant or to staff and records the view.
func (s *Service) GetSession(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Session, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return nil, err
	}
	if err := s.auditor.Record(ctx, caller.UserID, audit.ActionView, audit.EntityClaimSession, session.ID.String(), nil); err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns the caller's own sessions, or every session for staff.
func (s *Service) ListSessions(ctx context.Context, caller id.Caller, status models.Status) ([]*models.Session, error) {
	if caller.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if status != "" && !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status filter")
	}
	filter := store.ListFilter{Status: status}
	if !caller.IsStaff() {
		filter.ClaimantID = caller.UserID
	}
	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claim sessions")
	}
	return sessions, nil
}

// Progress reports required-document completion for the upload screen.
func (s *Service) Progress(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*models.Progress, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return nil, err
	}
	missing, required, err := s.documents.MissingRequiredTypes(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	present := required - len(missing)
	percent := 100
	if required > 0 {
		percent = present * 100 / required
	}
	return &models.Progress{
		SessionID:       session.ID,
		RequiredTotal:   required,
		RequiredPresent: present,
		MissingRequired: missing,
		Percent:         percent,
		ReadyToSubmit:   len(missing) == 0 && session.Status == models.StatusStarted && session.ConsentGiven,
	}, nil
}

// Stats counts the caller's claims by stage and the assets found for them.
// Staff see totals across every claim.
func (s *Service) Stats(ctx context.Context, caller id.Caller) (*models.Stats, error) {
	sessions, err := s.ListSessions(ctx, caller, "")
	if err != nil {
		return nil, err
	}
	stats := &models.Stats{TotalClaims: len(sessions)}
	ids := make([]id.SessionID, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
		switch session.Status {
		case models.StatusStarted, models.StatusDocumentsUploaded, models.StatusUnderReview:
			stats.PendingReview++
		case models.StatusApproved:
			stats.ClaimsApproved++
		}
	}
	if s.assets != nil {
		n, err := s.assets.CountAssets(ctx, ids)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count discovered assets")
		}
		stats.AssetsDiscovered = n
	}
	return stats, nil
}

// Session returns a session without access checks or audit. Used by other
// engines evaluating preconditions.
func (s *Service) Session(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.load(ctx, sessionID)
}

// SessionForUpdate is Session holding the row lock for the unit of work in ctx.
func (s *Service) SessionForUpdate(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return NewLookup(s.sessions).SessionForUpdate(ctx, sessionID)
}

// EligibleForDiscovery reports whether assets may exist for the session.
func (s *Service) EligibleForDiscovery(ctx context.Context, sessionID id.SessionID) (bool, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return models.EligibleForDiscovery(session), nil
}

// change describes the audit entry for a committed mutation.
type change struct {
	actor  id.UserID
	action audit.Action
	detail map[string]any
}

// mutate runs one transition. apply returns nil change for a no-op, in which
// case nothing is written and no audit entry is produced.
func (s *Service) mutate(ctx context.Context, sessionID id.SessionID, apply func(context.Context, *models.Session, time.Time) (*change, error)) (*models.Session, error) {
	var result *models.Session
	var committed *change
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		session, err := NewLookup(s.sessions).SessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		c, err := apply(ctx, session, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		result = session
		if c == nil {
			return nil
		}
		if err := s.sessions.Update(ctx, session); err != nil {
			return s.translateWriteErr(err)
		}
		if err := s.auditor.Record(ctx, c.actor, c.action, audit.EntityClaimSession, session.ID.String(), c.detail); err != nil {
			return err
		}
		committed = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if committed != nil {
		s.metrics.IncTransition(audit.EntityClaimSession, string(result.Status))
		s.logger.InfoContext(ctx, "claim session updated",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", result.ID,
			"action", committed.action,
			"status", result.Status,
		)
	}
	return result, nil
}

func (s *Service) load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return NewLookup(s.sessions).Session(ctx, sessionID)
}

func (s *Service) translateWriteErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrStaleWrite):
		s.metrics.IncConflict(audit.EntityClaimSession)
		return dErrors.Wrap(err, dErrors.CodeConcurrentModification, "claim session was modified concurrently; reload and retry")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "claim session not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim session")
	}
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

func authorizeRead(caller id.Caller, session *models.Session) error {
	if session.IsOwnedBy(caller.UserID) || caller.IsStaff() {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "not allowed to access this claim")
}
