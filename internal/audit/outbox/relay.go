// Package outbox relays committed audit entries from the outbox table to the
// audit topic. Delivery is at-least-once; consumers dedupe on the entry id.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"estateclaims/internal/platform/metrics"
	"estateclaims/pkg/platform/tx"
)

// Message is one unpublished outbox row.
type Message struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Source reads and acknowledges outbox rows inside the unit carried in ctx.
type Source interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer delivers a batch to the event stream and returns once acknowledged.
type Producer interface {
	Publish(ctx context.Context, msgs []Message) error
}

type Relay struct {
	source    Source
	producer  Producer
	tx        tx.Runner
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewRelay(source Source, producer Producer, runner tx.Runner, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		producer:  producer,
		tx:        runner,
		batchSize: 100,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. Failed batches are retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and marks it published in the same unit, so
// a publish failure leaves the rows for the next attempt.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		msgs, err := r.source.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		if err := r.producer.Publish(ctx, msgs); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(msgs))
		for _, m := range msgs {
			ids = append(ids, m.ID)
		}
		if err := r.source.MarkPublished(ctx, ids, time.Now()); err != nil {
			return err
		}
		published = len(msgs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		r.metrics.AddOutboxPublished(published)
		r.logger.DebugContext(ctx, "outbox batch relayed", "count", published)
	}
	return published, nil
}
