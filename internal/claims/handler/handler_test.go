package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"estateclaims/internal/claims/handler/mocks"
	"estateclaims/internal/claims/models"
	"estateclaims/internal/platform/logger"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/claims-mocks.go -package=mocks Service

type HandlerSuite struct {
	suite.Suite
	service  *mocks.MockService
	router   chi.Router
	claimant id.Caller
	reviewer id.Caller
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, logger.Discard()).Register(s.router)
	s.claimant = testutil.Claimant()
	s.reviewer = testutil.Reviewer()
}

func (s *HandlerSuite) session(status models.Status) *models.Session {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &models.Session{
		ID:           id.NewSessionID(),
		ClaimantID:   s.claimant.UserID,
		DeceasedName: "Ada Lovelace",
		Relationship: "daughter",
		ConsentGiven: true,
		ConsentAt:    &now,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}

func (s *HandlerSuite) TestCreate() {
	s.Run("returns 201 with the new session", func() {
		created := s.session(models.StatusStarted)
		s.service.EXPECT().CreateSession(gomock.Any(), s.claimant, models.CreateSessionRequest{
			DeceasedName: "Ada Lovelace",
			Relationship: "daughter",
			Consent:      true,
		}).Return(created, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims/sessions", map[string]any{
			"deceased_name": "  Ada Lovelace ",
			"relationship":  "daughter",
			"consent":       true,
		})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.claimant))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		body := testutil.UnmarshalResponse[models.Session](s.T(), rr)
		s.Equal(created.ID, body.ID)
		s.Equal(models.StatusStarted, body.Status)
	})

	s.Run("validation error maps to 400", func() {
		s.service.EXPECT().CreateSession(gomock.Any(), s.claimant, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "consent is required to open a claim"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims/sessions", map[string]any{
			"deceased_name": "Ada", "relationship": "son", "consent": false,
		})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.claimant))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("anonymous request is 401", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/claims/sessions", map[string]any{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("unknown fields are rejected", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/claims/sessions", `{"deceased":"x"}`)
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.claimant))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

func (s *HandlerSuite) TestList() {
	s.Run("passes the status filter", func() {
		s.service.EXPECT().ListSessions(gomock.Any(), s.reviewer, models.StatusUnderReview).
			Return([]*models.Session{s.session(models.StatusUnderReview)}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/claims/sessions?status=UNDER_REVIEW")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))

		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[struct {
			Sessions []models.Session `json:"sessions"`
		}](s.T(), rr)
		s.Len(body.Sessions, 1)
	})

	s.Run("unknown status is 400", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/claims/sessions?status=PAID")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestStats() {
	s.Run("returns the dashboard counters", func() {
		s.service.EXPECT().Stats(gomock.Any(), s.claimant).
			Return(&models.Stats{TotalClaims: 3, PendingReview: 2, ClaimsApproved: 1, AssetsDiscovered: 4}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/claims/stats")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.claimant))

		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"total_claims":3,"pending_review":2,"claims_approved":1,"assets_discovered":4}`, rr.Body.String())
	})

	s.Run("anonymous request is 401", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/claims/stats")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})
}

func (s *HandlerSuite) TestSessionPaths() {
	s.Run("malformed id is 400", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/claims/sessions/not-a-uuid")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.claimant))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("missing documents on submit is 412", func() {
		session := s.session(models.StatusStarted)
		s.service.EXPECT().SubmitDocuments(gomock.Any(), s.claimant, session.ID).
			Return(nil, dErrors.New(dErrors.CodePrecondition, "required documents missing: proof_of_relationship"))

		req := testutil.NewRequest(s.T(), http.MethodPost, "/claims/sessions/"+session.ID.String()+"/submit")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.claimant))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusPreconditionFailed, string(dErrors.CodePrecondition))
	})

	s.Run("approve state error is 409", func() {
		session := s.session(models.StatusUnderReview)
		s.service.EXPECT().Approve(gomock.Any(), s.reviewer, session.ID).
			Return(nil, dErrors.New(dErrors.CodeInvalidState, "cannot approve from UNDER_REVIEW"))

		req := testutil.NewRequest(s.T(), http.MethodPost, "/claims/sessions/"+session.ID.String()+"/approve")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvalidState))
	})

	s.Run("withdraw consent uses DELETE", func() {
		session := s.session(models.StatusStarted)
		session.ConsentGiven, session.ConsentAt = false, nil
		s.service.EXPECT().WithdrawConsent(gomock.Any(), s.claimant, session.ID).Return(session, nil)

		req := testutil.NewRequest(s.T(), http.MethodDelete, "/claims/sessions/"+session.ID.String()+"/consent")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.claimant))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "consent_given", false)
	})

	s.Run("discover reports the count", func() {
		session := s.session(models.StatusApproved)
		s.service.EXPECT().Discover(gomock.Any(), s.reviewer, session.ID).Return(3, nil)

		req := testutil.NewRequest(s.T(), http.MethodPost, "/claims/sessions/"+session.ID.String()+"/discover")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "discovered", float64(3))
	})
}

func (s *HandlerSuite) TestReviewBodies() {
	session := s.session(models.StatusDocumentsUploaded)
	path := "/claims/sessions/" + session.ID.String()

	s.Run("begin review defaults to an empty reviewer", func() {
		s.service.EXPECT().BeginReview(gomock.Any(), s.reviewer, session.ID, id.UserID{}).Return(session, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/review", map[string]any{})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("begin review parses an explicit reviewer", func() {
		other := id.NewUserID()
		s.service.EXPECT().BeginReview(gomock.Any(), s.reviewer, session.ID, other).Return(session, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/review", map[string]any{"reviewer_id": other.String()})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("outcome requires all_verified", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/outcome", map[string]any{"notes": "x"})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("outcome forwards the decision", func() {
		s.service.EXPECT().RecordVerificationOutcome(gomock.Any(), s.reviewer, session.ID, false, "illegible certificate").
			Return(session, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/outcome", map[string]any{
			"all_verified": false, "notes": " illegible certificate ",
		})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("reject requires notes", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/reject", map[string]any{"notes": "  "})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.reviewer))
		assert.Equal(s.T(), http.StatusBadRequest, rr.Code)
	})

	s.Run("internal errors hide their message", func() {
		s.service.EXPECT().Progress(gomock.Any(), s.claimant, session.ID).
			Return(nil, dErrors.New(dErrors.CodeInternal, "db password wrong"))
		req := testutil.NewRequest(s.T(), http.MethodGet, path+"/progress")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.claimant))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(rr.Body.String(), "password")
	})
}
