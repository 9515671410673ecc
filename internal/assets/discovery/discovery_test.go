package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"estateclaims/internal/assets/models"
	"estateclaims/internal/assets/store"
	"estateclaims/internal/audit"
	auditmemory "estateclaims/internal/audit/store/memory"
	claimsmodels "estateclaims/internal/claims/models"
	claimsservice "estateclaims/internal/claims/service"
	claimsstore "estateclaims/internal/claims/store"
	"estateclaims/internal/platform/config"
	"estateclaims/internal/platform/external"
	"estateclaims/internal/platform/logger"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/tx"
)

type DiscoverySuite struct {
	suite.Suite
	ctx        context.Context
	sessions   *claimsstore.InMemory
	assets     *store.InMemory
	auditStore *auditmemory.InMemoryStore
}

func TestDiscoverySuite(t *testing.T) {
	suite.Run(t, new(DiscoverySuite))
}

func (s *DiscoverySuite) SetupTest() {
	s.ctx = context.Background()
	s.sessions = claimsstore.NewInMemory()
	s.assets = store.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
}

func (s *DiscoverySuite) discoverer(sources ...Source) *Discoverer {
	return New(claimsservice.NewLookup(s.sessions), s.assets, sources, tx.NewMemory(),
		audit.NewRecorder(s.auditStore), WithLogger(logger.Discard()))
}

func (s *DiscoverySuite) session(status claimsmodels.Status) *claimsmodels.Session {
	session, err := claimsmodels.NewSession(id.NewSessionID(), id.NewUserID(), "Ada Lovelace", "4501015800081", "son", true, "", time.Now())
	s.Require().NoError(err)
	session.Status = status
	s.sessions.Put(session)
	return session
}

func (s *DiscoverySuite) TestDefaultSourcesPopulateOnce() {
	session := s.session(claimsmodels.StatusApproved)
	d := s.discoverer(DefaultSources()...)

	created, err := d.DiscoverForSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(4, created)

	again, err := d.DiscoverForSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Zero(again, "rediscovery must not duplicate assets")

	assets, err := s.assets.ListAssets(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Len(assets, 4)

	types := map[models.AssetType]bool{}
	for _, a := range assets {
		types[a.Type] = true
		entries, err := s.auditStore.ListByEntity(s.ctx, audit.EntityAsset, a.ID.String())
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionCreate, entries[0].Action)
		s.Equal(id.SystemActor, entries[0].ActorID)
	}
	s.True(types[models.AssetLoan])
	s.True(types[models.AssetInsurance])
}

func (s *DiscoverySuite) TestFindingsAreDeterministicPerSession() {
	session := s.session(claimsmodels.StatusVerified)
	src := DefaultSources()[0]
	first, err := src.Discover(s.ctx, session)
	s.Require().NoError(err)
	second, err := src.Discover(s.ctx, session)
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *DiscoverySuite) TestIneligibleSession() {
	session := s.session(claimsmodels.StatusUnderReview)
	_, err := s.discoverer(DefaultSources()...).DiscoverForSession(s.ctx, session.ID)
	s.True(dErrors.HasCode(err, dErrors.CodePrecondition))
}

func (s *DiscoverySuite) TestSourceFailureWritesNothing() {
	session := s.session(claimsmodels.StatusApproved)
	sources := DefaultSources()
	sources = append(sources, Mock{SourceName: "broken", Err: errors.New("registry offline")})

	_, err := s.discoverer(sources...).DiscoverForSession(s.ctx, session.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))

	assets, _ := s.assets.ListAssets(s.ctx, session.ID)
	s.Empty(assets)
}

func (s *DiscoverySuite) TestAuditFailureRollsBackAssets() {
	session := s.session(claimsmodels.StatusApproved)
	s.auditStore.FailWith(errors.New("audit down"))
	defer s.auditStore.FailWith(nil)

	_, err := s.discoverer(DefaultSources()...).DiscoverForSession(s.ctx, session.ID)
	s.Require().Error(err)

	assets, _ := s.assets.ListAssets(s.ctx, session.ID)
	s.Empty(assets)
}

func (s *DiscoverySuite) TestGuardedSourceTimesOut() {
	session := s.session(claimsmodels.StatusApproved)
	guard := external.New("discovery", 20*time.Millisecond,
		config.ExternalConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond, FailureThreshold: 5},
		external.WithLogger(logger.Discard()))
	slow := Guarded(Mock{SourceName: "slow", Institution: "Slow Bank", Latency: time.Second}, guard)

	started := time.Now()
	_, err := s.discoverer(slow).DiscoverForSession(s.ctx, session.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	s.Less(time.Since(started), 500*time.Millisecond)

	assets, _ := s.assets.ListAssets(s.ctx, session.ID)
	s.Empty(assets)
}

func (s *DiscoverySuite) TestInvalidFindingIsRejected() {
	session := s.session(claimsmodels.StatusApproved)
	bad := Mock{SourceName: "bad", Institution: "Bad Bank", Holdings: []Holding{
		{Key: "x", Type: models.AssetType("CRYPTO"), Currency: "ZAR"},
	}}
	_, err := s.discoverer(bad).DiscoverForSession(s.ctx, session.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
}
