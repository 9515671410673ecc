package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"estateclaims/internal/assets/discovery"
	assetshandler "estateclaims/internal/assets/handler"
	assetsservice "estateclaims/internal/assets/service"
	assetsstore "estateclaims/internal/assets/store"
	"estateclaims/internal/audit"
	audithandler "estateclaims/internal/audit/handler"
	"estateclaims/internal/audit/outbox"
	auditmemory "estateclaims/internal/audit/store/memory"
	auditpostgres "estateclaims/internal/audit/store/postgres"
	"estateclaims/internal/blob"
	claimshandler "estateclaims/internal/claims/handler"
	claimsservice "estateclaims/internal/claims/service"
	claimsstore "estateclaims/internal/claims/store"
	docshandler "estateclaims/internal/documents/handler"
	"estateclaims/internal/documents/ocr"
	docsservice "estateclaims/internal/documents/service"
	docsstore "estateclaims/internal/documents/store"
	"estateclaims/internal/identity"
	"estateclaims/internal/platform/config"
	"estateclaims/internal/platform/external"
	"estateclaims/internal/platform/httpserver"
	"estateclaims/internal/platform/lock"
	"estateclaims/internal/platform/logger"
	"estateclaims/internal/platform/metrics"
	"estateclaims/internal/platform/postgres"
	"estateclaims/internal/platform/redis"
	"estateclaims/internal/review"
	reviewhandler "estateclaims/internal/review/handler"
	httptransport "estateclaims/internal/transport/http"
	"estateclaims/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type assetStore interface {
	assetsservice.AssetStore
	discovery.AssetWriter
	claimsservice.AssetCounter
}

// stores groups the persistence layer selected by configuration.
type stores struct {
	db       *sql.DB
	runner   tx.Runner
	sessions claimsservice.SessionStore
	docs     docsservice.DocumentStore
	assets   assetStore
	audit    audit.Store
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*stores, error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set; using in-memory stores")
		return &stores{
			runner:   tx.NewMemory(),
			sessions: claimsstore.NewInMemory(),
			docs:     docsstore.NewInMemory(),
			assets:   assetsstore.NewInMemory(),
			audit:    auditmemory.NewInMemoryStore(),
		}, nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("connected to postgres")
	return &stores{
		db:       db,
		runner:   tx.NewPostgres(db, cfg.TxTimeout),
		sessions: claimsstore.NewPostgres(db),
		docs:     docsstore.NewPostgres(db),
		assets:   assetsstore.NewPostgres(db),
		audit:    auditpostgres.New(db),
	}, nil
}

func openBlobs(ctx context.Context, cfg config.BlobConfig, log *slog.Logger) (blob.Store, error) {
	if cfg.Bucket == "" {
		log.Warn("BLOB_BUCKET not set; keeping documents in memory")
		return blob.NewMemoryStore(), nil
	}
	return blob.NewS3(ctx, cfg)
}

func openLocker(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (lock.Locker, *redis.Client, error) {
	client, err := redis.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("REDIS_URL not set; review lock is process-local")
		return lock.NewMemory(), nil, nil
	}
	return lock.NewRedis(client.Client, cfg.LockTTL, lock.WithLogger(log)), client, nil
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New()

	st, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	if st.db != nil {
		defer st.db.Close()
	}
	blobs, err := openBlobs(ctx, cfg.Blob, log)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	locker, redisClient, err := openLocker(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("open review lock: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	guard := func(service string, timeout time.Duration) *external.Guard {
		return external.New(service, timeout, cfg.External, external.WithLogger(log), external.WithMetrics(m))
	}
	blobGuard := guard("blob", cfg.External.BlobTimeout)

	recorder := audit.NewRecorder(st.audit, audit.WithLogger(log), audit.WithMetrics(m))
	lookup := claimsservice.NewLookup(st.sessions)

	docs := docsservice.New(st.docs, lookup, blobs,
		ocr.NewClient(ocr.Mock{}, guard("ocr", cfg.External.OCRTimeout)),
		st.runner, recorder,
		docsservice.WithLogger(log), docsservice.WithMetrics(m), docsservice.WithBlobGuard(blobGuard),
	)

	discoveryGuard := guard("discovery", cfg.External.DiscoveryTimeout)
	var sources []discovery.Source
	for _, src := range discovery.DefaultSources() {
		sources = append(sources, discovery.Guarded(src, discoveryGuard))
	}
	discoverer := discovery.New(lookup, st.assets, sources, st.runner, recorder,
		discovery.WithLogger(log), discovery.WithMetrics(m))

	claims := claimsservice.New(st.sessions, docs, st.runner, recorder,
		claimsservice.WithLogger(log), claimsservice.WithMetrics(m),
		claimsservice.WithDiscoverer(discoverer, cfg.External.DiscoveryTimeout),
		claimsservice.WithAssetCounter(st.assets),
	)
	coordinator := review.New(docs, claims, locker, st.runner,
		review.WithLogger(log), review.WithMetrics(m))
	assets := assetsservice.New(st.assets, lookup, blobs, st.runner, recorder,
		assetsservice.WithLogger(log), assetsservice.WithMetrics(m), assetsservice.WithBlobGuard(blobGuard))

	checks := map[string]httptransport.HealthCheck{}
	if st.db != nil {
		checks["postgres"] = st.db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:        log,
		Authenticator: identity.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience),
		Checks:        checks,
		Metrics:       httptransport.MetricsHandler(),
	},
		claimshandler.New(review.NewSessionAPI(claims, coordinator), log),
		docshandler.New(docs, log),
		assetshandler.New(assets, log),
		reviewhandler.New(coordinator, log),
		audithandler.New(recorder, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	relay, closeRelay, err := newRelay(ctx, cfg.Kafka, st, m, log)
	if err != nil {
		return err
	}
	if closeRelay != nil {
		defer closeRelay()
	}

	g, ctx := errgroup.WithContext(ctx)
	log.Info("starting estate claims server", "env", cfg.Environment)
	g.Go(func() error {
		return httpserver.Serve(ctx, srv, shutdownTimeout, log)
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// newRelay starts the audit outbox relay when both Postgres and Kafka are
// configured. The in-memory audit store has no outbox.
func newRelay(ctx context.Context, cfg config.KafkaConfig, st *stores, m *metrics.Metrics, log *slog.Logger) (*outbox.Relay, func(), error) {
	if st.db == nil || len(cfg.Brokers) == 0 {
		log.Info("audit outbox relay disabled")
		return nil, nil, nil
	}
	client, err := outbox.NewKafkaClient(cfg.Brokers)
	if err != nil {
		return nil, nil, err
	}
	if err := outbox.EnsureTopic(ctx, client, cfg.AuditTopic, 3, 1); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	relay := outbox.NewRelay(outbox.NewPostgresSource(st.db), outbox.NewKafkaProducer(client, cfg.AuditTopic), st.runner,
		outbox.WithLogger(log), outbox.WithMetrics(m),
		outbox.WithBatchSize(cfg.BatchSize), outbox.WithInterval(cfg.PollInterval),
	)
	return relay, client.Close, nil
}
