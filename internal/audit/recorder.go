// Package audit records the append-only trail of every state change.
//
// Record is fail-closed: it writes inside the caller's unit of work and
// returns an error the caller must propagate, so a state change whose audit
// entry cannot be persisted rolls back with it.
package audit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"estateclaims/internal/platform/metrics"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/requestcontext"
)

type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one entry. The returned error must fail the caller's operation.
func (r *Recorder) Record(ctx context.Context, actor id.UserID, action Action, entityType, entityID string, detail map[string]any) error {
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeInternal, "audit entry requires an actor")
	}
	if !action.IsValid() {
		return dErrors.New(dErrors.CodeInternal, "audit entry has unknown action")
	}
	if strings.TrimSpace(entityType) == "" || strings.TrimSpace(entityID) == "" {
		return dErrors.New(dErrors.CodeInternal, "audit entry requires an entity")
	}

	entry := Entry{
		ID:         uuid.New(),
		ActorID:    actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		Timestamp:  requestcontext.Now(ctx).UTC(),
		Request:    requestMetadata(ctx),
	}

	if err := r.store.Append(ctx, entry); err != nil {
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: audit write failed",
				"action", action,
				"entity_type", entityType,
				"entity_id", entityID,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit write failed")
	}

	r.metrics.IncAuditWrite(string(action))
	if r.logger != nil {
		r.logger.InfoContext(ctx, string(action),
			"log_type", "audit",
			"actor_id", actor,
			"entity_type", entityType,
			"entity_id", entityID,
			"request_id", entry.Request.RequestID,
		)
	}
	return nil
}

// List returns the trail of one entity, oldest first. Staff only.
func (r *Recorder) List(ctx context.Context, caller id.Caller, entityType, entityID string) ([]Entry, error) {
	if !caller.IsStaff() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only staff may read the audit trail")
	}
	if strings.TrimSpace(entityType) == "" || strings.TrimSpace(entityID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "entity_type and entity_id are required")
	}
	entries, err := r.store.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
	}
	return entries, nil
}

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 200
)

// ListRecent returns the newest entries across all entities for the activity
// feed. A non-positive limit means DefaultRecentLimit. Staff only.
func (r *Recorder) ListRecent(ctx context.Context, caller id.Caller, limit int) ([]Entry, error) {
	if !caller.IsStaff() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only staff may read the audit trail")
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)
	entries, err := r.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list recent audit entries")
	}
	return entries, nil
}

func requestMetadata(ctx context.Context) RequestMetadata {
	client := requestcontext.ClientInfo(ctx)
	return RequestMetadata{
		RequestID: requestcontext.RequestID(ctx),
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Device:    client.Device,
	}
}
