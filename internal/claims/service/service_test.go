package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"estateclaims/internal/audit"
	auditmemory "estateclaims/internal/audit/store/memory"
	"estateclaims/internal/claims/models"
	"estateclaims/internal/claims/store"
	"estateclaims/internal/platform/logger"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/tx"
	"estateclaims/pkg/testutil"
)

type stubDocuments struct {
	missing  []string
	required int
	err      error
}

func (s *stubDocuments) MissingRequiredTypes(context.Context, id.SessionID) ([]string, int, error) {
	return s.missing, s.required, s.err
}

type stubDiscoverer struct {
	mu    sync.Mutex
	calls []id.SessionID
	err   error
}

func (s *stubDiscoverer) DiscoverForSession(_ context.Context, sessionID id.SessionID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sessionID)
	return 2, s.err
}

type stubAssetCounter struct {
	perSession map[id.SessionID]int
	err        error
}

func (s *stubAssetCounter) CountAssets(_ context.Context, sessionIDs []id.SessionID) (int, error) {
	n := 0
	for _, sid := range sessionIDs {
		n += s.perSession[sid]
	}
	return n, s.err
}

type lockCountingStore struct {
	*store.InMemory
	mu        sync.Mutex
	forUpdate int
}

func (l *lockCountingStore) FindForUpdate(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	l.mu.Lock()
	l.forUpdate++
	l.mu.Unlock()
	return l.InMemory.FindForUpdate(ctx, sessionID)
}

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	sessions   *store.InMemory
	auditStore *auditmemory.InMemoryStore
	documents  *stubDocuments
	discoverer *stubDiscoverer
	assets     *stubAssetCounter
	service    *Service
	claimant   id.Caller
	reviewer   id.Caller
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.sessions = store.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.documents = &stubDocuments{required: 3}
	s.discoverer = &stubDiscoverer{}
	s.assets = &stubAssetCounter{perSession: map[id.SessionID]int{}}
	s.service = New(s.sessions, s.documents, tx.NewMemory(), audit.NewRecorder(s.auditStore),
		WithLogger(logger.Discard()),
		WithDiscoverer(s.discoverer, time.Second),
		WithAssetCounter(s.assets),
	)
	s.claimant = testutil.Claimant()
	s.reviewer = testutil.Reviewer()
}

func (s *ServiceSuite) create() *models.Session {
	session, err := s.service.CreateSession(s.ctx, s.claimant, models.CreateSessionRequest{
		DeceasedName: "Margaret Hamilton",
		Relationship: "daughter",
		Consent:      true,
	})
	s.Require().NoError(err)
	return session
}

func (s *ServiceSuite) seed(status models.Status) *models.Session {
	session := s.create()
	session.Status = status
	s.sessions.Put(session)
	return session
}

func (s *ServiceSuite) auditActions(sessionID id.SessionID) []audit.Action {
	entries, err := s.auditStore.ListByEntity(s.ctx, audit.EntityClaimSession, sessionID.String())
	s.Require().NoError(err)
	var out []audit.Action
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestCreateSession() {
	s.Run("creates STARTED session with CREATE audit", func() {
		session := s.create()
		s.Equal(models.StatusStarted, session.Status)
		s.Equal(s.claimant.UserID, session.ClaimantID)
		s.Equal([]audit.Action{audit.ActionCreate}, s.auditActions(session.ID))
	})

	s.Run("consent false is a validation error", func() {
		_, err := s.service.CreateSession(s.ctx, s.claimant, models.CreateSessionRequest{
			DeceasedName: "X", Relationship: "son", Consent: false,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("audit failure rolls back the session", func() {
		s.auditStore.FailWith(errors.New("audit down"))
		defer s.auditStore.FailWith(nil)

		_, err := s.service.CreateSession(s.ctx, s.claimant, models.CreateSessionRequest{
			DeceasedName: "Y", Relationship: "son", Consent: true,
		})
		s.Require().Error(err)
		all, _ := s.sessions.List(s.ctx, store.ListFilter{ClaimantID: s.claimant.UserID})
		for _, session := range all {
			s.NotEqual("Y", session.DeceasedName)
		}
	})
}

func (s *ServiceSuite) TestSubmitDocuments() {
	s.Run("missing required type is a precondition error", func() {
		session := s.create()
		s.documents.missing = []string{"proof_of_relationship"}
		defer func() { s.documents.missing = nil }()

		_, err := s.service.SubmitDocuments(s.ctx, s.claimant, session.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePrecondition))
		s.Contains(dErrors.MessageOf(err), "proof_of_relationship")
	})

	s.Run("complete set submits once and repeats as a no-op", func() {
		session := s.create()
		updated, err := s.service.SubmitDocuments(s.ctx, s.claimant, session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDocumentsUploaded, updated.Status)

		again, err := s.service.SubmitDocuments(s.ctx, s.claimant, session.ID)
		s.Require().NoError(err)
		s.Equal(updated.Version, again.Version)
		s.Equal([]audit.Action{audit.ActionCreate, audit.ActionUpdate}, s.auditActions(session.ID))
	})

	s.Run("other claimants are forbidden", func() {
		session := s.create()
		_, err := s.service.SubmitDocuments(s.ctx, testutil.Claimant(), session.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestConsent() {
	session := s.create()

	withdrawn, err := s.service.WithdrawConsent(s.ctx, s.claimant, session.ID)
	s.Require().NoError(err)
	s.False(withdrawn.ConsentGiven)
	s.Nil(withdrawn.ConsentAt)

	granted, err := s.service.GrantConsent(s.ctx, s.claimant, session.ID)
	s.Require().NoError(err)
	s.True(granted.ConsentGiven)
	s.NotNil(granted.ConsentAt)

	_, err = s.service.GrantConsent(s.ctx, s.reviewer, session.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestBeginReview() {
	s.Run("claimants cannot start review", func() {
		session := s.seed(models.StatusDocumentsUploaded)
		_, err := s.service.BeginReview(s.ctx, s.claimant, session.ID, id.UserID{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("defaults the reviewer to the caller", func() {
		session := s.seed(models.StatusDocumentsUploaded)
		updated, err := s.service.BeginReview(s.ctx, s.reviewer, session.ID, id.UserID{})
		s.Require().NoError(err)
		s.Equal(models.StatusUnderReview, updated.Status)
		s.Equal(s.reviewer.UserID, *updated.AssignedReviewer)
	})

	s.Run("state error from STARTED", func() {
		session := s.create()
		_, err := s.service.BeginReview(s.ctx, s.reviewer, session.ID, id.UserID{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ServiceSuite) TestRecordVerificationOutcome() {
	s.Run("verified then identical repeat is a no-op", func() {
		session := s.seed(models.StatusUnderReview)
		first, err := s.service.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, true, "")
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, first.Status)

		second, err := s.service.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, true, "")
		s.Require().NoError(err)
		s.Equal(first.Version, second.Version)
		s.Equal([]audit.Action{audit.ActionCreate, audit.ActionVerify}, s.auditActions(session.ID))
	})

	s.Run("conflicting resubmission is a state error", func() {
		session := s.seed(models.StatusUnderReview)
		_, err := s.service.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, false, "forged certificate")
		s.Require().NoError(err)

		_, err = s.service.RecordVerificationOutcome(s.ctx, s.reviewer, session.ID, true, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		stored, _ := s.sessions.FindByID(s.ctx, session.ID)
		s.Equal(models.StatusRejected, stored.Status)
		s.Equal("forged certificate", stored.Notes)
	})
}

func (s *ServiceSuite) TestRejectSubmission() {
	s.Run("closes a submitted claim with notes", func() {
		session := s.seed(models.StatusDocumentsUploaded)
		rejected, err := s.service.RejectSubmission(s.ctx, s.reviewer, session.ID, "  duplicate of an open claim ")
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, rejected.Status)
		s.Equal("duplicate of an open claim", rejected.Notes)
		s.Equal([]audit.Action{audit.ActionCreate, audit.ActionReject}, s.auditActions(session.ID))
	})

	s.Run("notes are required", func() {
		session := s.seed(models.StatusDocumentsUploaded)
		_, err := s.service.RejectSubmission(s.ctx, s.reviewer, session.ID, " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("claimants cannot reject", func() {
		session := s.seed(models.StatusDocumentsUploaded)
		_, err := s.service.RejectSubmission(s.ctx, s.claimant, session.ID, "withdrawn")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("under review goes through the verification outcome", func() {
		session := s.seed(models.StatusUnderReview)
		_, err := s.service.RejectSubmission(s.ctx, s.reviewer, session.ID, "late")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ServiceSuite) TestApproveTriggersDiscovery() {
	session := s.seed(models.StatusVerified)
	approved, err := s.service.Approve(s.ctx, s.reviewer, session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, approved.Status)
	s.Equal([]id.SessionID{session.ID}, s.discoverer.calls)

	s.Run("discovery failure does not undo approval", func() {
		other := s.seed(models.StatusVerified)
		s.discoverer.err = errors.New("institution api down")
		defer func() { s.discoverer.err = nil }()

		approved, err := s.service.Approve(s.ctx, s.reviewer, other.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, approved.Status)
	})

	s.Run("approve requires VERIFIED", func() {
		other := s.seed(models.StatusUnderReview)
		_, err := s.service.Approve(s.ctx, s.reviewer, other.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("manual discovery requires eligibility", func() {
		other := s.seed(models.StatusUnderReview)
		_, err := s.service.Discover(s.ctx, s.reviewer, other.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePrecondition))

		n, err := s.service.Discover(s.ctx, s.reviewer, session.ID)
		s.Require().NoError(err)
		s.Equal(2, n)
	})
}

func (s *ServiceSuite) TestReadPaths() {
	mine := s.create()
	s.create()
	_, err := s.service.CreateSession(s.ctx, testutil.Claimant(), models.CreateSessionRequest{
		DeceasedName: "Other", Relationship: "spouse", Consent: true,
	})
	s.Require().NoError(err)

	s.Run("claimants list only their own", func() {
		list, err := s.service.ListSessions(s.ctx, s.claimant, "")
		s.Require().NoError(err)
		s.Len(list, 2)
	})

	s.Run("staff list everything", func() {
		list, err := s.service.ListSessions(s.ctx, s.reviewer, models.StatusStarted)
		s.Require().NoError(err)
		s.Len(list, 3)
	})

	s.Run("get records a VIEW entry", func() {
		_, err := s.service.GetSession(s.ctx, s.claimant, mine.ID)
		s.Require().NoError(err)
		s.Contains(s.auditActions(mine.ID), audit.ActionView)
	})

	s.Run("strangers are forbidden", func() {
		_, err := s.service.GetSession(s.ctx, testutil.Claimant(), mine.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown session is not found", func() {
		_, err := s.service.GetSession(s.ctx, s.reviewer, id.NewSessionID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("progress reflects missing types", func() {
		s.documents.missing = []string{"claimant_id"}
		defer func() { s.documents.missing = nil }()
		progress, err := s.service.Progress(s.ctx, s.claimant, mine.ID)
		s.Require().NoError(err)
		s.Equal(3, progress.RequiredTotal)
		s.Equal(2, progress.RequiredPresent)
		s.Equal(66, progress.Percent)
		s.False(progress.ReadyToSubmit)
	})
}

// TestConcurrentConflictingOutcomes races two reviewers resolving the same
// session with opposite outcomes. Exactly one commits.
func TestConcurrentConflictingOutcomes(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewInMemory()
	svc := New(sessions, &stubDocuments{}, tx.NewMemory(), audit.NewRecorder(auditmemory.NewInMemoryStore()),
		WithLogger(logger.Discard()))

	session, err := svc.CreateSession(ctx, testutil.Claimant(), models.CreateSessionRequest{
		DeceasedName: "Dorothy Vaughan", Relationship: "grandson", Consent: true,
	})
	require.NoError(t, err)
	session.Status = models.StatusUnderReview
	sessions.Put(session)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	outcomes := []bool{true, false}
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordVerificationOutcome(ctx, testutil.Reviewer(), session.ID, outcomes[i], "mismatched names")
		}(i)
	}
	wg.Wait()

	var winner = -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "only one outcome may commit")
			winner = i
			continue
		}
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState) || dErrors.HasCode(err, dErrors.CodeConcurrentModification))
	}
	require.NotEqual(t, -1, winner)

	final, err := sessions.FindByID(ctx, session.ID)
	require.NoError(t, err)
	if outcomes[winner] {
		assert.Equal(t, models.StatusVerified, final.Status)
	} else {
		assert.Equal(t, models.StatusRejected, final.Status)
	}
}

func (s *ServiceSuite) TestStats() {
	started := s.seed(models.StatusStarted)
	s.seed(models.StatusUnderReview)
	approved := s.seed(models.StatusApproved)
	s.seed(models.StatusRejected)
	s.assets.perSession[approved.ID] = 4
	s.assets.perSession[started.ID] = 1

	other := testutil.Claimant()
	foreign, err := s.service.CreateSession(s.ctx, other, models.CreateSessionRequest{
		DeceasedName: "Ada Lovelace",
		Relationship: "son",
		Consent:      true,
	})
	s.Require().NoError(err)
	s.assets.perSession[foreign.ID] = 10

	s.Run("claimant sees own claims only", func() {
		stats, err := s.service.Stats(s.ctx, s.claimant)
		s.Require().NoError(err)
		s.Equal(models.Stats{TotalClaims: 4, PendingReview: 2, ClaimsApproved: 1, AssetsDiscovered: 5}, *stats)
	})

	s.Run("staff see every claim", func() {
		stats, err := s.service.Stats(s.ctx, s.reviewer)
		s.Require().NoError(err)
		s.Equal(5, stats.TotalClaims)
		s.Equal(3, stats.PendingReview)
		s.Equal(15, stats.AssetsDiscovered)
	})

	s.Run("claimant without claims gets zeros", func() {
		stats, err := s.service.Stats(s.ctx, testutil.Claimant())
		s.Require().NoError(err)
		s.Equal(models.Stats{}, *stats)
	})

	s.Run("asset count failure is internal", func() {
		s.assets.err = errors.New("connection reset")
		defer func() { s.assets.err = nil }()

		_, err := s.service.Stats(s.ctx, s.claimant)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("anonymous caller is rejected", func() {
		_, err := s.service.Stats(s.ctx, id.Caller{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestTransitionsLockTheSessionRow() {
	counting := &lockCountingStore{InMemory: s.sessions}
	svc := New(counting, s.documents, tx.NewMemory(), audit.NewRecorder(s.auditStore),
		WithLogger(logger.Discard()))
	session := s.create()

	_, err := svc.SubmitDocuments(s.ctx, s.claimant, session.ID)
	s.Require().NoError(err)
	_, err = svc.GetSession(s.ctx, s.claimant, session.ID)
	s.Require().NoError(err)

	s.Equal(1, counting.forUpdate, "reads do not take the row lock")
}
