// Package discovery populates assets for approved claim sessions. Real
// institution searches are out of scope; sources here return canned findings
// with the shape a registry lookup would produce.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"estateclaims/internal/assets/models"
	"estateclaims/internal/audit"
	claimsmodels "estateclaims/internal/claims/models"
	"estateclaims/internal/platform/external"
	"estateclaims/internal/platform/metrics"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/tx"
	"estateclaims/pkg/requestcontext"
)

// Finding is one holding reported by a source. SourceRef must be stable
// across runs so rediscovery does not duplicate assets.
type Finding struct {
	SourceRef       string
	InstitutionName string
	Type            models.AssetType
	AccountNumber   string
	EstimatedValue  int64
	Currency        string
	Details         map[string]any
}

type Source interface {
	Name() string
	Discover(ctx context.Context, session *claimsmodels.Session) ([]Finding, error)
}

type SessionReader interface {
	Session(ctx context.Context, sessionID id.SessionID) (*claimsmodels.Session, error)
}

type AssetWriter interface {
	CreateAsset(ctx context.Context, asset *models.Asset) (bool, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actor id.UserID, action audit.Action, entityType, entityID string, detail map[string]any) error
}

type Discoverer struct {
	sessions SessionReader
	assets   AssetWriter
	sources  []Source
	tx       tx.Runner
	auditor  AuditRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Discoverer)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Discoverer) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Discoverer) {
		d.metrics = m
	}
}

func New(sessions SessionReader, assets AssetWriter, sources []Source, runner tx.Runner, auditor AuditRecorder, opts ...Option) *Discoverer {
	d := &Discoverer{
		sessions: sessions,
		assets:   assets,
		sources:  sources,
		tx:       runner,
		auditor:  auditor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscoverForSession queries every source concurrently and stores the new
// findings in one transaction. Any source failure aborts the run before
// anything is written; a retry is safe because findings are keyed by source
// reference. It returns the number of assets created.
func (d *Discoverer) DiscoverForSession(ctx context.Context, sessionID id.SessionID) (int, error) {
	session, err := d.sessions.Session(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if !claimsmodels.EligibleForDiscovery(session) {
		return 0, dErrors.New(dErrors.CodePrecondition, "claim is not eligible for asset discovery")
	}

	results := make([][]Finding, len(d.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range d.sources {
		g.Go(func() error {
			found, err := src.Discover(gctx, session)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, asExternal(err)
	}

	created := 0
	err = d.tx.RunInTx(ctx, func(ctx context.Context) error {
		created = 0
		now := requestcontext.Now(ctx)
		for i, findings := range results {
			for _, f := range findings {
				ok, err := d.store(ctx, session.ID, d.sources[i].Name(), f, now)
				if err != nil {
					return err
				}
				if ok {
					created++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for range created {
		d.metrics.IncTransition(audit.EntityAsset, "DISCOVERED")
	}
	d.logger.InfoContext(ctx, "asset discovery completed",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"sources", len(d.sources),
		"created", created,
	)
	return created, nil
}

func (d *Discoverer) store(ctx context.Context, sessionID id.SessionID, source string, f Finding, now time.Time) (bool, error) {
	asset, err := models.NewAsset(id.NewAssetID(), sessionID, f.SourceRef, f.InstitutionName, f.Type,
		f.AccountNumber, f.EstimatedValue, f.Currency, f.Details, now)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeExternalService, source+" returned an invalid finding")
	}
	created, err := d.assets.CreateAsset(ctx, asset)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store discovered asset")
	}
	if !created {
		return false, nil
	}
	err = d.auditor.Record(ctx, id.SystemActor, audit.ActionCreate, audit.EntityAsset, asset.ID.String(), map[string]any{
		"session_id":  sessionID.String(),
		"source":      source,
		"source_ref":  asset.SourceRef,
		"institution": asset.InstitutionName,
		"asset_type":  asset.Type,
	})
	return err == nil, err
}

// asExternal leaves domain errors from guarded sources alone and classifies
// anything else as a collaborator failure.
func asExternal(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeExternalService, "asset discovery failed")
}

// Guarded runs a source under an external.Guard.
func Guarded(src Source, guard *external.Guard) Source {
	return guarded{Source: src, guard: guard}
}

type guarded struct {
	Source
	guard *external.Guard
}

func (g guarded) Discover(ctx context.Context, session *claimsmodels.Session) ([]Finding, error) {
	return external.Do(ctx, g.guard, "discover."+g.Name(), func(ctx context.Context) ([]Finding, error) {
		return g.Source.Discover(ctx, session)
	})
}
