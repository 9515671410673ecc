// Package service runs the document verification state machine and answers
// completeness questions for the claim session engine and the review
// coordinator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"estateclaims/internal/audit"
	"estateclaims/internal/blob"
	claimsmodels "estateclaims/internal/claims/models"
	"estateclaims/internal/documents/models"
	"estateclaims/internal/documents/ocr"
	"estateclaims/internal/platform/external"
	"estateclaims/internal/platform/metrics"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/sentinel"
	"estateclaims/pkg/platform/tx"
	"estateclaims/pkg/requestcontext"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.Document, error)
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Document, error)
}

// SessionReader loads the owning claim session for consent and ownership checks.
type SessionReader interface {
	Session(ctx context.Context, sessionID id.SessionID) (*claimsmodels.Session, error)
	SessionForUpdate(ctx context.Context, sessionID id.SessionID) (*claimsmodels.Session, error)
}

type Extractor interface {
	Extract(ctx context.Context, req ocr.Request) (models.OCRResult, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actor id.UserID, action audit.Action, entityType, entityID string, detail map[string]any) error
}

type Service struct {
	documents DocumentStore
	sessions  SessionReader
	blobs     blob.Store
	extractor Extractor
	tx        tx.Runner
	auditor   AuditRecorder
	blobGuard *external.Guard
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

// WithBlobGuard retries and breaks blob store calls. Without it blob errors
// surface on the first failure.
func WithBlobGuard(g *external.Guard) Option {
	return func(s *Service) {
		s.blobGuard = g
	}
}

func New(documents DocumentStore, sessions SessionReader, blobs blob.Store, extractor Extractor, runner tx.Runner, auditor AuditRecorder, opts ...Option) *Service {
	s := &Service{
		documents: documents,
		sessions:  sessions,
		blobs:     blobs,
		extractor: extractor,
		tx:        runner,
		auditor:   auditor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadRequest describes one evidence file.
type UploadRequest struct {
	SessionID id.SessionID
	DocType   models.DocType
	File      models.FileMeta
	Content   []byte
}

// Upload stores the file, then commits a PENDING document pointing at it.
// A failed commit leaves an orphan blob, never a document without content.
func (s *Service) Upload(ctx context.Context, caller id.Caller, req UploadRequest) (*models.Document, error) {
	if !req.DocType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown document type")
	}
	req.File.Size = int64(len(req.Content))
	if err := req.File.Validate(); err != nil {
		return nil, err
	}
	session, err := s.sessions.Session(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOwnedBy(caller.UserID) && !caller.Has(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the claimant may upload evidence")
	}
	if err := session.CanAttachDocuments(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	key := blob.DocumentKey(session.ClaimantID, session.ID, string(req.DocType), now, req.File.Name)
	locator, err := s.putBlob(ctx, key, req.File.MIMEType, req.Content)
	if err != nil {
		return nil, err
	}

	doc, err := models.NewDocument(id.NewDocumentID(), session.ID, req.DocType, req.File, locator, now)
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// Consent may have been withdrawn while the blob was uploading. The
		// row lock keeps it from being withdrawn before this unit commits.
		current, err := s.sessions.SessionForUpdate(ctx, session.ID)
		if err != nil {
			return err
		}
		if err := current.CanAttachDocuments(); err != nil {
			return err
		}
		if err := s.documents.Create(ctx, doc); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save document")
		}
		return s.auditor.Record(ctx, caller.UserID, audit.ActionUpload, audit.EntityDocument, doc.ID.String(), map[string]any{
			"session_id":    session.ID.String(),
			"document_type": string(doc.Type),
			"file_name":     doc.File.Name,
			"mime_type":     doc.File.MIMEType,
			"size_bytes":    doc.File.Size,
		})
	})
	if err != nil {
		s.logger.WarnContext(ctx, "document upload not committed; blob left orphaned",
			"request_id", requestcontext.RequestID(ctx),
			"locator", locator,
			"error", err,
		)
		return nil, err
	}
	s.metrics.IncTransition(audit.EntityDocument, string(doc.Status))
	s.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", doc.ID,
		"session_id", doc.SessionID,
		"document_type", doc.Type,
	)
	return doc, nil
}

// RunOCR extracts fields from a PENDING document. The provider call happens
// outside the transaction; on failure the document stays PENDING.
func (s *Service) RunOCR(ctx context.Context, caller id.Caller, docID id.DocumentID) (*models.Document, error) {
	doc, session, err := s.loadWithSession(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return nil, err
	}
	if doc.Status != models.StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("OCR can only run on a PENDING document, document is %s", doc.Status))
	}

	content, err := s.getBlob(ctx, doc.StorageLocator)
	if err != nil {
		return nil, err
	}
	result, err := s.extractor.Extract(ctx, ocr.Request{
		DocType:  doc.Type,
		MIMEType: doc.File.MIMEType,
		FileName: doc.File.Name,
		Content:  content,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "ocr failed; document left pending",
			"request_id", requestcontext.RequestID(ctx),
			"document_id", doc.ID,
			"error", err,
		)
		return nil, err
	}

	return s.mutate(ctx, docID, func(ctx context.Context, d *models.Document, now time.Time) (*change, error) {
		if err := d.CompleteOCR(result, now); err != nil {
			return nil, err
		}
		return &change{actor: caller.UserID, action: audit.ActionUpdate, detail: map[string]any{
			"status":     string(d.Status),
			"confidence": result.Confidence,
		}}, nil
	})
}

// Decide records a reviewer verdict. It joins the caller's transaction when
// one is active, which lets the review coordinator compose it with the
// session outcome.
func (s *Service) Decide(ctx context.Context, caller id.Caller, docID id.DocumentID, approved bool, reason string) (*models.Document, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, docID, func(ctx context.Context, d *models.Document, now time.Time) (*change, error) {
		if err := d.Decide(caller.UserID, approved, reason, now); err != nil {
			return nil, err
		}
		action := audit.ActionVerify
		detail := map[string]any{"session_id": d.SessionID.String(), "status": string(d.Status)}
		if !approved {
			action = audit.ActionReject
			detail["reason"] = d.RejectionReason
		}
		return &change{actor: caller.UserID, action: action, detail: detail}, nil
	})
}

// Get returns one document to its claimant or to staff.
func (s *Service) Get(ctx context.Context, caller id.Caller, docID id.DocumentID) (*models.Document, error) {
	doc, session, err := s.loadWithSession(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return nil, err
	}
	return doc, nil
}

// Download returns the stored file and records the view.
func (s *Service) Download(ctx context.Context, caller id.Caller, docID id.DocumentID) (*models.Document, []byte, error) {
	doc, err := s.Get(ctx, caller, docID)
	if err != nil {
		return nil, nil, err
	}
	content, err := s.getBlob(ctx, doc.StorageLocator)
	if err != nil {
		return nil, nil, err
	}
	if err := s.auditor.Record(ctx, caller.UserID, audit.ActionView, audit.EntityDocument, doc.ID.String(), nil); err != nil {
		return nil, nil, err
	}
	return doc, content, nil
}

// ListForSession returns a session's documents in upload order.
func (s *Service) ListForSession(ctx context.Context, caller id.Caller, sessionID id.SessionID) ([]*models.Document, error) {
	session, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return nil, err
	}
	return s.bySession(ctx, sessionID)
}

// ListPending returns documents awaiting a reviewer across all sessions,
// newest upload first.
func (s *Service) ListPending(ctx context.Context, caller id.Caller) ([]*models.Document, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByStatus(ctx, models.StatusPending, models.StatusOCRComplete)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending documents")
	}
	return docs, nil
}

// MissingRequiredTypes implements the claim engine's submission gate.
func (s *Service) MissingRequiredTypes(ctx context.Context, sessionID id.SessionID) ([]string, int, error) {
	docs, err := s.bySession(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	missing := models.MissingRequired(docs)
	out := make([]string, len(missing))
	for i, t := range missing {
		out[i] = string(t)
	}
	return out, len(models.RequiredTypes()), nil
}

// IsSessionDocumentSetComplete reports whether every required type is verified.
func (s *Service) IsSessionDocumentSetComplete(ctx context.Context, sessionID id.SessionID) (bool, error) {
	docs, err := s.bySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return models.IsComplete(docs), nil
}

// Resolution reports whether the session's documents have a final outcome.
func (s *Service) Resolution(ctx context.Context, sessionID id.SessionID) (models.Resolution, error) {
	docs, err := s.bySession(ctx, sessionID)
	if err != nil {
		return models.Resolution{}, err
	}
	return models.Resolve(docs), nil
}

type change struct {
	actor  id.UserID
	action audit.Action
	detail map[string]any
}

func (s *Service) mutate(ctx context.Context, docID id.DocumentID, apply func(context.Context, *models.Document, time.Time) (*change, error)) (*models.Document, error) {
	var result *models.Document
	var committed *change
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := s.load(ctx, docID)
		if err != nil {
			return err
		}
		c, err := apply(ctx, doc, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.documents.Update(ctx, doc); err != nil {
			return s.translateWriteErr(err)
		}
		if err := s.auditor.Record(ctx, c.actor, c.action, audit.EntityDocument, doc.ID.String(), c.detail); err != nil {
			return err
		}
		result, committed = doc, c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(audit.EntityDocument, string(result.Status))
	s.logger.InfoContext(ctx, "document updated",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", result.ID,
		"action", committed.action,
		"status", result.Status,
	)
	return result, nil
}

func (s *Service) load(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	return doc, nil
}

func (s *Service) loadWithSession(ctx context.Context, docID id.DocumentID) (*models.Document, *claimsmodels.Session, error) {
	doc, err := s.load(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.sessions.Session(ctx, doc.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return doc, session, nil
}

func (s *Service) bySession(ctx context.Context, sessionID id.SessionID) ([]*models.Document, error) {
	docs, err := s.documents.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list session documents")
	}
	return docs, nil
}

func (s *Service) translateWriteErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrStaleWrite):
		s.metrics.IncConflict(audit.EntityDocument)
		return dErrors.Wrap(err, dErrors.CodeConcurrentModification, "document was modified concurrently; reload and retry")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update document")
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
		return "", dErrors.Wrap(err, dErrors.CodeExternalService, "failed to store document file")
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
		return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "failed to read document file")
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

func authorizeRead(caller id.Caller, session *claimsmodels.Session) error {
	if session.IsOwnedBy(caller.UserID) || caller.IsStaff() {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "not allowed to access this document")
}
