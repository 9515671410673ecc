//go:build integration

package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"estateclaims/internal/audit"
	"estateclaims/internal/audit/outbox"
	auditpg "estateclaims/internal/audit/store/postgres"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/tx"
	"estateclaims/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	client   *kgo.Client
	topic    string
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.topic = "estate.audit.test"

	client, err := outbox.NewKafkaClient(s.redpanda.Brokers)
	s.Require().NoError(err)
	s.client = client
	s.Require().NoError(outbox.EnsureTopic(context.Background(), client, s.topic, 1, 1))
	// Creating an existing topic is not an error.
	s.Require().NoError(outbox.EnsureTopic(context.Background(), client, s.topic, 1, 1))
}

func (s *RelaySuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *RelaySuite) TestRelayPublishesCommittedEntries() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "audit_log", "outbox"))

	runner := tx.NewPostgres(s.postgres.DB, 5*time.Second)
	recorder := audit.NewRecorder(auditpg.New(s.postgres.DB))
	entityID := uuid.NewString()
	s.Require().NoError(runner.RunInTx(ctx, func(ctx context.Context) error {
		return recorder.Record(ctx, id.NewUserID(), audit.ActionCreate, audit.EntityClaimSession, entityID, nil)
	}))

	relay := outbox.NewRelay(outbox.NewPostgresSource(s.postgres.DB), outbox.NewKafkaProducer(s.client, s.topic), runner)
	n, err := relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Zero(n)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	var found bool
	for !found && pollCtx.Err() == nil {
		consumer.PollFetches(pollCtx).EachRecord(func(r *kgo.Record) {
			if string(r.Key) == audit.EntityClaimSession+":"+entityID {
				found = true
			}
		})
	}
	s.True(found, "relayed entry should be consumable from the topic")
}
