package review

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"estateclaims/internal/audit"
	auditmemory "estateclaims/internal/audit/store/memory"
	"estateclaims/internal/blob"
	claimsmodels "estateclaims/internal/claims/models"
	claimsservice "estateclaims/internal/claims/service"
	claimsstore "estateclaims/internal/claims/store"
	docmodels "estateclaims/internal/documents/models"
	"estateclaims/internal/documents/ocr"
	docservice "estateclaims/internal/documents/service"
	docstore "estateclaims/internal/documents/store"
	"estateclaims/internal/platform/lock"
	"estateclaims/internal/platform/logger"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/tx"
	"estateclaims/pkg/testutil"
)

type noExtractor struct{}

func (noExtractor) Extract(context.Context, ocr.Request) (docmodels.OCRResult, error) {
	return docmodels.OCRResult{}, errors.New("not used")
}

type failingOutcome struct {
	Sessions
	err error
}

func (f failingOutcome) RecordVerificationOutcome(context.Context, id.Caller, id.SessionID, bool, string) (*claimsmodels.Session, error) {
	return nil, f.err
}

type lockingSessions struct {
	Sessions
	mu     sync.Mutex
	locked []id.SessionID
}

func (l *lockingSessions) SessionForUpdate(ctx context.Context, sessionID id.SessionID) (*claimsmodels.Session, error) {
	l.mu.Lock()
	l.locked = append(l.locked, sessionID)
	l.mu.Unlock()
	return l.Sessions.SessionForUpdate(ctx, sessionID)
}

type CoordinatorSuite struct {
	suite.Suite
	ctx         context.Context
	runner      *tx.Memory
	auditStore  *auditmemory.InMemoryStore
	claims      *claimsservice.Service
	documents   *docservice.Service
	coordinator *Coordinator
	claimant    id.Caller
	reviewer    id.Caller
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.runner = tx.NewMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	recorder := audit.NewRecorder(s.auditStore)
	sessions := claimsstore.NewInMemory()

	s.documents = docservice.New(docstore.NewInMemory(), claimsservice.NewLookup(sessions), blob.NewMemoryStore(),
		noExtractor{}, s.runner, recorder, docservice.WithLogger(logger.Discard()))
	s.claims = claimsservice.New(sessions, s.documents, s.runner, recorder,
		claimsservice.WithLogger(logger.Discard()))
	s.coordinator = New(s.documents, s.claims, lock.NewMemory(), s.runner, WithLogger(logger.Discard()))
	s.claimant = testutil.Claimant()
	s.reviewer = testutil.Reviewer()
}

// submitted returns a DOCUMENTS_UPLOADED session holding one document per
// required type.
func (s *CoordinatorSuite) submitted() (*claimsmodels.Session, map[docmodels.DocType]*docmodels.Document) {
	session, err := s.claims.CreateSession(s.ctx, s.claimant, claimsmodels.CreateSessionRequest{
		DeceasedName: "Barbara Liskov", Relationship: "daughter", Consent: true,
	})
	s.Require().NoError(err)
	docs := make(map[docmodels.DocType]*docmodels.Document)
	for _, t := range docmodels.RequiredTypes() {
		doc, err := s.documents.Upload(s.ctx, s.claimant, docservice.UploadRequest{
			SessionID: session.ID,
			DocType:   t,
			File:      docmodels.FileMeta{Name: string(t) + ".pdf", MIMEType: "application/pdf"},
			Content:   []byte("%PDF-1.7 " + string(t)),
		})
		s.Require().NoError(err)
		docs[t] = doc
	}
	session, err = s.claims.SubmitDocuments(s.ctx, s.claimant, session.ID)
	s.Require().NoError(err)
	return session, docs
}

func (s *CoordinatorSuite) underReview() (*claimsmodels.Session, map[docmodels.DocType]*docmodels.Document) {
	session, docs := s.submitted()
	session, err := s.coordinator.BeginReview(s.ctx, s.reviewer, session.ID, id.UserID{})
	s.Require().NoError(err)
	s.Require().Equal(claimsmodels.StatusUnderReview, session.Status)
	return session, docs
}

func (s *CoordinatorSuite) sessionStatus(sessionID id.SessionID) claimsmodels.Status {
	session, err := s.claims.Session(s.ctx, sessionID)
	s.Require().NoError(err)
	return session.Status
}

func (s *CoordinatorSuite) sessionActions(sessionID id.SessionID) []audit.Action {
	entries, err := s.auditStore.ListByEntity(s.ctx, audit.EntityClaimSession, sessionID.String())
	s.Require().NoError(err)
	var out []audit.Action
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func (s *CoordinatorSuite) TestLastVerificationResolvesSession() {
	session, docs := s.underReview()
	types := docmodels.RequiredTypes()

	for _, t := range types[:len(types)-1] {
		decision, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, docs[t].ID, true, "")
		s.Require().NoError(err)
		s.Equal(docmodels.StatusVerified, decision.Document.Status)
		s.Nil(decision.Session)
		s.Equal(claimsmodels.StatusUnderReview, s.sessionStatus(session.ID))
	}

	decision, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, docs[types[len(types)-1]].ID, true, "")
	s.Require().NoError(err)
	s.Require().NotNil(decision.Session)
	s.Equal(claimsmodels.StatusVerified, decision.Session.Status)
	s.Equal(claimsmodels.StatusVerified, s.sessionStatus(session.ID))
	s.Equal(audit.ActionVerify, s.sessionActions(session.ID)[len(s.sessionActions(session.ID))-1])
}

func (s *CoordinatorSuite) TestRejectedRequiredDocumentRejectsSession() {
	session, docs := s.underReview()

	decision, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, docs[docmodels.DocDeathCertificate].ID, false, "illegible")
	s.Require().NoError(err)
	s.Require().NotNil(decision.Session)
	s.Equal(claimsmodels.StatusRejected, decision.Session.Status)
	s.Contains(decision.Session.Notes, "Death Certificate")
	s.Equal(claimsmodels.StatusRejected, s.sessionStatus(session.ID))
}

func (s *CoordinatorSuite) TestDecisionsBeforeReviewResolveOnBegin() {
	session, docs := s.submitted()
	for _, doc := range docs {
		decision, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, doc.ID, true, "")
		s.Require().NoError(err)
		s.Nil(decision.Session, "sessions not under review are left alone")
	}
	s.Equal(claimsmodels.StatusDocumentsUploaded, s.sessionStatus(session.ID))

	begun, err := s.coordinator.BeginReview(s.ctx, s.reviewer, session.ID, id.UserID{})
	s.Require().NoError(err)
	s.Equal(claimsmodels.StatusVerified, begun.Status)
	s.Require().NotNil(begun.AssignedReviewer)
	s.Equal(s.reviewer.UserID, *begun.AssignedReviewer)
}

func (s *CoordinatorSuite) TestOutcomeFailureRollsBackDecision() {
	session, docs := s.underReview()
	types := docmodels.RequiredTypes()
	for _, t := range types[:len(types)-1] {
		_, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, docs[t].ID, true, "")
		s.Require().NoError(err)
	}

	broken := New(s.documents, failingOutcome{Sessions: s.claims, err: dErrors.New(dErrors.CodeInternal, "store down")},
		lock.NewMemory(), s.runner, WithLogger(logger.Discard()))
	last := docs[types[len(types)-1]]
	_, err := broken.DecideDocument(s.ctx, s.reviewer, last.ID, true, "")
	s.Require().Error(err)

	doc, err := s.documents.Get(s.ctx, s.reviewer, last.ID)
	s.Require().NoError(err)
	s.Equal(docmodels.StatusPending, doc.Status)
	s.Equal(claimsmodels.StatusUnderReview, s.sessionStatus(session.ID))
}

func (s *CoordinatorSuite) TestClaimantCannotDecide() {
	_, docs := s.underReview()
	_, err := s.coordinator.DecideDocument(s.ctx, s.claimant, docs[docmodels.DocClaimantID].ID, true, "")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *CoordinatorSuite) TestConcurrentReviewersResolveOnce() {
	session, docs := s.underReview()
	types := docmodels.RequiredTypes()
	_, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, docs[types[0]].ID, true, "")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 0, 2)
	var mu sync.Mutex
	for _, t := range types[1:] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.coordinator.DecideDocument(s.ctx, testutil.Reviewer(), docs[t].ID, true, "")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		s.NoError(err)
	}
	s.Equal(claimsmodels.StatusVerified, s.sessionStatus(session.ID))
	verifies := 0
	for _, a := range s.sessionActions(session.ID) {
		if a == audit.ActionVerify {
			verifies++
		}
	}
	s.Equal(1, verifies)
}

func (s *CoordinatorSuite) TestConcurrentConflictingDecisions() {
	session, docs := s.underReview()
	types := docmodels.RequiredTypes()
	for _, t := range types[:len(types)-1] {
		_, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, docs[t].ID, true, "")
		s.Require().NoError(err)
	}
	last := docs[types[len(types)-1]]

	approvals := []bool{true, false}
	errs := make([]error, len(approvals))
	var wg sync.WaitGroup
	for i, approved := range approvals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.coordinator.DecideDocument(s.ctx, testutil.Reviewer(), last.ID, approved, "does not match")
		}()
	}
	wg.Wait()

	committed := -1
	for i, err := range errs {
		if err == nil {
			s.Equal(-1, committed, "only one decision may commit")
			committed = i
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState) || dErrors.HasCode(err, dErrors.CodeConcurrentModification), err)
	}
	s.Require().NotEqual(-1, committed)

	want := claimsmodels.StatusVerified
	if !approvals[committed] {
		want = claimsmodels.StatusRejected
	}
	s.Equal(want, s.sessionStatus(session.ID))
}

func (s *CoordinatorSuite) TestExplicitOutcome() {
	s.Run("rejection with notes is always available", func() {
		session, _ := s.underReview()
		_, err := s.coordinator.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, false, "identity mismatch")
		s.Require().NoError(err)
		s.Equal(claimsmodels.StatusRejected, s.sessionStatus(session.ID))

		again, err := s.coordinator.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, false, "identity mismatch")
		s.Require().NoError(err)
		s.Equal(claimsmodels.StatusRejected, again.Status)
	})

	s.Run("verified needs every required document verified", func() {
		session, _ := s.underReview()
		complete, err := s.documents.IsSessionDocumentSetComplete(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Require().False(complete)
		before := s.sessionActions(session.ID)

		_, err = s.coordinator.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, true, "")
		s.True(dErrors.HasCode(err, dErrors.CodePrecondition), err)
		s.Equal(claimsmodels.StatusUnderReview, s.sessionStatus(session.ID))
		s.Equal(before, s.sessionActions(session.ID))
	})

	s.Run("verified with one document still pending", func() {
		session, docs := s.underReview()
		types := docmodels.RequiredTypes()
		for _, t := range types[:len(types)-1] {
			_, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, docs[t].ID, true, "")
			s.Require().NoError(err)
		}

		_, err := s.coordinator.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, true, "")
		s.True(dErrors.HasCode(err, dErrors.CodePrecondition), err)
		s.Equal(claimsmodels.StatusUnderReview, s.sessionStatus(session.ID))
	})

	s.Run("repeating a resolved verification is a no-op", func() {
		session, docs := s.underReview()
		for _, doc := range docs {
			_, err := s.coordinator.DecideDocument(s.ctx, s.reviewer, doc.ID, true, "")
			s.Require().NoError(err)
		}
		s.Require().Equal(claimsmodels.StatusVerified, s.sessionStatus(session.ID))

		again, err := s.coordinator.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, true, "")
		s.Require().NoError(err)
		s.Equal(claimsmodels.StatusVerified, again.Status)
	})

	s.Run("claimants cannot record outcomes", func() {
		session, _ := s.underReview()
		_, err := s.coordinator.RecordVerificationOutcome(s.ctx, s.claimant, session.ID, false, "withdrawn")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *CoordinatorSuite) TestPendingDocuments() {
	session, docs := s.underReview()
	pending, err := s.coordinator.PendingDocuments(s.ctx, s.reviewer)
	s.Require().NoError(err)
	s.Len(pending, len(docs))
	for i := 1; i < len(pending); i++ {
		s.False(pending[i].UploadedAt.After(pending[i-1].UploadedAt))
	}
	for _, p := range pending {
		s.Equal(session.ID, p.SessionID)
		s.Equal(session.DeceasedName, p.DeceasedName)
		s.Equal(session.ClaimantID, p.ClaimantID)
	}

	_, err = s.coordinator.PendingDocuments(s.ctx, s.claimant)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *CoordinatorSuite) TestDecisionsLockTheSessionRow() {
	session, docs := s.underReview()
	sessions := &lockingSessions{Sessions: s.claims}
	coordinator := New(s.documents, sessions, lock.NewMemory(), s.runner, WithLogger(logger.Discard()))

	_, err := coordinator.DecideDocument(s.ctx, s.reviewer, docs[docmodels.DocDeathCertificate].ID, true, "")
	s.Require().NoError(err)
	_, err = coordinator.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, false, "estate dispute")
	s.Require().NoError(err)

	s.Equal([]id.SessionID{session.ID, session.ID}, sessions.locked)
}
