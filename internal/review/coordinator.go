// Package review composes the document and claim session state machines.
// It is the only writer of the link between them: a reviewer decision on a
// document and the session outcome it resolves commit together, serialized
// per session.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	claimsmodels "estateclaims/internal/claims/models"
	docmodels "estateclaims/internal/documents/models"
	"estateclaims/internal/platform/lock"
	"estateclaims/internal/platform/metrics"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/tx"
	"estateclaims/pkg/requestcontext"
)

const tracerName = "estateclaims/review"

type Documents interface {
	Get(ctx context.Context, caller id.Caller, docID id.DocumentID) (*docmodels.Document, error)
	Decide(ctx context.Context, caller id.Caller, docID id.DocumentID, approved bool, reason string) (*docmodels.Document, error)
	ListPending(ctx context.Context, caller id.Caller) ([]*docmodels.Document, error)
	Resolution(ctx context.Context, sessionID id.SessionID) (docmodels.Resolution, error)
}

type Sessions interface {
	Session(ctx context.Context, sessionID id.SessionID) (*claimsmodels.Session, error)
	SessionForUpdate(ctx context.Context, sessionID id.SessionID) (*claimsmodels.Session, error)
	BeginReview(ctx context.Context, caller id.Caller, sessionID id.SessionID, reviewer id.UserID) (*claimsmodels.Session, error)
	RecordVerificationOutcome(ctx context.Context, caller id.Caller, sessionID id.SessionID, allVerified bool, notes string) (*claimsmodels.Session, error)
}

// Decision is the result of one reviewer decision. Session is set only when
// the decision resolved the session's review.
type Decision struct {
	Document *docmodels.Document   `json:"document"`
	Session  *claimsmodels.Session `json:"session,omitempty"`
}

// PendingDocument is a document in the review queue with the claim it
// belongs to.
type PendingDocument struct {
	*docmodels.Document
	DeceasedName string    `json:"deceased_name"`
	ClaimantID   id.UserID `json:"claimant_id"`
}

type Coordinator struct {
	documents Documents
	sessions  Sessions
	locker    lock.Locker
	tx        tx.Runner
	tracer    trace.Tracer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = t
	}
}

func New(documents Documents, sessions Sessions, locker lock.Locker, runner tx.Runner, opts ...Option) *Coordinator {
	c := &Coordinator{
		documents: documents,
		sessions:  sessions,
		locker:    locker,
		tx:        runner,
		tracer:    otel.Tracer(tracerName),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PendingDocuments lists documents awaiting a reviewer across all sessions,
// newest upload first.
func (c *Coordinator) PendingDocuments(ctx context.Context, caller id.Caller) ([]PendingDocument, error) {
	docs, err := c.documents.ListPending(ctx, caller)
	if err != nil {
		return nil, err
	}
	sessions := make(map[id.SessionID]*claimsmodels.Session)
	out := make([]PendingDocument, 0, len(docs))
	for _, doc := range docs {
		session, ok := sessions[doc.SessionID]
		if !ok {
			session, err = c.sessions.Session(ctx, doc.SessionID)
			if err != nil {
				return nil, err
			}
			sessions[doc.SessionID] = session
		}
		out = append(out, PendingDocument{
			Document:     doc,
			DeceasedName: session.DeceasedName,
			ClaimantID:   session.ClaimantID,
		})
	}
	return out, nil
}

// DecideDocument verifies or rejects a document. When the owning session is
// under review and the decision resolves its document set, the session
// outcome is recorded in the same unit of work.
func (c *Coordinator) DecideDocument(ctx context.Context, caller id.Caller, docID id.DocumentID, approved bool, reason string) (*Decision, error) {
	ctx, span := c.tracer.Start(ctx, "review.decide_document",
		trace.WithAttributes(
			attribute.String("document.id", docID.String()),
			attribute.Bool("decision.approved", approved),
		),
	)
	defer span.End()

	if err := requireStaff(caller); err != nil {
		return nil, c.fail(span, err)
	}
	doc, err := c.documents.Get(ctx, caller, docID)
	if err != nil {
		return nil, c.fail(span, err)
	}
	span.SetAttributes(attribute.String("session.id", doc.SessionID.String()))

	var result Decision
	err = c.withSession(ctx, doc.SessionID, func(ctx context.Context) error {
		decided, err := c.documents.Decide(ctx, caller, docID, approved, reason)
		if err != nil {
			return err
		}
		result.Document = decided
		session, err := c.resolve(ctx, caller, doc.SessionID)
		if err != nil {
			return err
		}
		result.Session = session
		return nil
	})
	if err != nil {
		return nil, c.fail(span, err)
	}

	decision := "rejected"
	if approved {
		decision = "verified"
	}
	c.metrics.IncReviewDecision(decision)
	if result.Session != nil {
		span.SetAttributes(attribute.String("session.status", string(result.Session.Status)))
		c.logger.InfoContext(ctx, "review resolved claim session",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", result.Session.ID,
			"status", result.Session.Status,
			"document_id", docID,
		)
	}
	return &result, nil
}

// BeginReview assigns a reviewer and, if the document set was already
// decided before review started, records the outcome immediately.
func (c *Coordinator) BeginReview(ctx context.Context, caller id.Caller, sessionID id.SessionID, reviewer id.UserID) (*claimsmodels.Session, error) {
	var result *claimsmodels.Session
	err := c.withSession(ctx, sessionID, func(ctx context.Context) error {
		session, err := c.sessions.BeginReview(ctx, caller, sessionID, reviewer)
		if err != nil {
			return err
		}
		result = session
		resolved, err := c.resolve(ctx, caller, sessionID)
		if err != nil {
			return err
		}
		if resolved != nil {
			result = resolved
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordVerificationOutcome records a reviewer's explicit outcome under the
// same per-session serialization as document decisions. A VERIFIED outcome is
// only accepted while the session's document set is resolved as all verified;
// rejection with notes is always available to the reviewer.
func (c *Coordinator) RecordVerificationOutcome(ctx context.Context, caller id.Caller, sessionID id.SessionID, allVerified bool, notes string) (*claimsmodels.Session, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	var result *claimsmodels.Session
	err := c.withSession(ctx, sessionID, func(ctx context.Context) error {
		if allVerified {
			if err := c.requireVerifiedSet(ctx, sessionID); err != nil {
				return err
			}
		}
		session, err := c.sessions.RecordVerificationOutcome(ctx, caller, sessionID, allVerified, notes)
		result = session
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// requireVerifiedSet refuses a VERIFIED outcome for a session under review
// whose required documents are not all verified. Sessions in other states
// fall through to the state machine, which reports repeats and conflicts.
func (c *Coordinator) requireVerifiedSet(ctx context.Context, sessionID id.SessionID) error {
	session, err := c.sessions.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != claimsmodels.StatusUnderReview {
		return nil
	}
	res, err := c.documents.Resolution(ctx, sessionID)
	if err != nil {
		return err
	}
	if !res.Resolved || !res.AllVerified {
		return dErrors.New(dErrors.CodePrecondition, "every required document must be verified before the claim can be verified")
	}
	return nil
}

// resolve records the session outcome when the session is under review and
// its document set is resolved. It returns nil when nothing changed.
func (c *Coordinator) resolve(ctx context.Context, caller id.Caller, sessionID id.SessionID) (*claimsmodels.Session, error) {
	session, err := c.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != claimsmodels.StatusUnderReview {
		return nil, nil
	}
	res, err := c.documents.Resolution(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !res.Resolved {
		return nil, nil
	}
	return c.sessions.RecordVerificationOutcome(ctx, caller, sessionID, res.AllVerified, outcomeNotes(res))
}

func outcomeNotes(res docmodels.Resolution) string {
	if res.AllVerified {
		return ""
	}
	failed := make([]string, len(res.Failed))
	for i, t := range res.Failed {
		failed[i] = t.Label()
	}
	return fmt.Sprintf("required documents rejected: %s", strings.Join(failed, ", "))
}

// withSession runs fn as one unit of work while holding the session lock.
func (c *Coordinator) withSession(ctx context.Context, sessionID id.SessionID, fn func(ctx context.Context) error) error {
	release, err := c.locker.Acquire(ctx, "session:"+sessionID.String())
	if err != nil {
		return err
	}
	defer release()
	return c.tx.RunInTx(ctx, func(ctx context.Context) error {
		// The row lock serializes with transitions that skip the coordinator,
		// such as SubmitDocuments and WithdrawConsent.
		if _, err := c.sessions.SessionForUpdate(ctx, sessionID); err != nil {
			return err
		}
		return fn(ctx)
	})
}

func (c *Coordinator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
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
