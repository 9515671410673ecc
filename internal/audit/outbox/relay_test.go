package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateclaims/internal/platform/logger"
	"estateclaims/pkg/platform/tx"
)

type fakeSource struct {
	mu        sync.Mutex
	pending   []Message
	published map[uuid.UUID]bool
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{published: map[uuid.UUID]bool{}}
	for i := 0; i < n; i++ {
		s.pending = append(s.pending, Message{ID: uuid.New(), AggregateType: "document", AggregateID: "doc", EventType: "UPLOAD"})
	}
	return s
}

func (s *fakeSource) FetchUnpublished(_ context.Context, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.pending {
		if !s.published[m.ID] && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeSource) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = true
	}
	return nil
}

type fakeProducer struct {
	err  error
	sent []Message
}

func (p *fakeProducer) Publish(_ context.Context, msgs []Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

func TestRelayOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes in batches and marks rows", func(t *testing.T) {
		src := newFakeSource(5)
		prod := &fakeProducer{}
		relay := NewRelay(src, prod, tx.NewMemory(), WithBatchSize(3), WithLogger(logger.Discard()))

		n, err := relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, prod.sent, 5)
	})

	t.Run("producer failure leaves rows pending", func(t *testing.T) {
		src := newFakeSource(2)
		prod := &fakeProducer{err: errors.New("broker down")}
		relay := NewRelay(src, prod, tx.NewMemory(), WithLogger(logger.Discard()))

		_, err := relay.RelayOnce(ctx)
		require.Error(t, err)
		assert.Empty(t, src.published)

		prod.err = nil
		n, err := relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}
