// Package external wraps calls to out-of-process collaborators (OCR, asset
// discovery) with a per-attempt timeout, bounded exponential retry, a circuit
// breaker, a tracing span and latency metrics. Failures surface as
// CodeExternalService or CodeTimeout so callers leave entities unchanged.
package external

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"estateclaims/internal/platform/config"
	"estateclaims/internal/platform/metrics"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/circuit"
)

const tracerName = "estateclaims/external"

// ErrPermanent marks a collaborator answer that retrying cannot change.
var ErrPermanent = errors.New("permanent external failure")

// Guard holds the call policy for one collaborator.
type Guard struct {
	service     string
	timeout     time.Duration
	maxAttempts int
	baseBackoff time.Duration
	breaker     *circuit.Breaker
	tracer      trace.Tracer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Guard) {
		g.breaker = b
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(g *Guard) {
		g.tracer = t
	}
}

// New builds a guard for service using the shared external-call settings.
func New(service string, timeout time.Duration, cfg config.ExternalConfig, opts ...Option) *Guard {
	g := &Guard{
		service:     service,
		timeout:     timeout,
		maxAttempts: max(cfg.MaxAttempts, 1),
		baseBackoff: cfg.BaseBackoff,
		breaker:     circuit.New(service, circuit.WithFailureThreshold(cfg.FailureThreshold)),
		tracer:      otel.Tracer(tracerName),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Service() string { return g.service }

// Do runs fn under the guard's policy. Each attempt gets its own timeout;
// errors wrapping ErrPermanent are not retried.
func Do[T any](ctx context.Context, g *Guard, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	ctx, span := g.tracer.Start(ctx, g.service+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("external.service", g.service)),
	)
	defer span.End()

	if !g.breaker.Allow() {
		err := dErrors.New(dErrors.CodeExternalService, g.service+" is temporarily unavailable")
		span.SetStatus(codes.Error, "circuit open")
		return zero, err
	}

	started := time.Now()
	attempts := 0
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.baseBackoff
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.maxAttempts-1)), ctx)

	result, err := backoff.RetryWithData(func() (T, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		out, err := fn(attemptCtx)
		if err == nil {
			return out, nil
		}
		g.logger.WarnContext(ctx, "external call attempt failed",
			"service", g.service,
			"operation", operation,
			"attempt", attempts,
			"error", err,
		)
		if errors.Is(err, ErrPermanent) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}, retry)

	span.SetAttributes(attribute.Int("external.attempts", attempts))
	g.metrics.ObserveExternal(g.service, started, err)
	if err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.ErrorContext(ctx, "circuit opened", "service", g.service)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, dErrors.Wrap(err, dErrors.CodeExternalService, g.service+" timed out")
		}
		if ctx.Err() != nil {
			return zero, dErrors.Wrap(err, dErrors.CodeTimeout, g.service+" call cancelled")
		}
		return zero, dErrors.Wrap(err, dErrors.CodeExternalService, g.service+" call failed")
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "circuit closed", "service", g.service)
	}
	return result, nil
}
