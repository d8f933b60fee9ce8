package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/lynex/internal/config"
	"github.com/wisbric/lynex/internal/httpserver"
	"github.com/wisbric/lynex/internal/platform"
	"github.com/wisbric/lynex/internal/seed"
	"github.com/wisbric/lynex/internal/telemetry"
	"github.com/wisbric/lynex/pkg/alert"
	"github.com/wisbric/lynex/pkg/analytics"
	"github.com/wisbric/lynex/pkg/archiver"
	"github.com/wisbric/lynex/pkg/billing"
	"github.com/wisbric/lynex/pkg/bus"
	"github.com/wisbric/lynex/pkg/credential"
	"github.com/wisbric/lynex/pkg/ingest"
	"github.com/wisbric/lynex/pkg/notifier"
	"github.com/wisbric/lynex/pkg/processor"
	"github.com/wisbric/lynex/pkg/usage"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting lynex",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb)
	case "seed-rules":
		return runSeedRules(ctx, cfg, logger, db)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// runSeedRules provisions a project's default alert rules (internal/seed)
// and exits; it does not start any server or worker loop.
func runSeedRules(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool) error {
	alertStore := alert.NewStore(db)
	alertSvc := alert.NewService(alertStore)
	return seed.Run(ctx, alertSvc, cfg.SeedProjectID, logger)
}

// newBus builds the durable event bus shared by api and worker mode: a
// Redis-backed stream with an in-memory ring fallback for Append during a
// Redis outage (spec §4.7).
func newBus(rdb *redis.Client, cfg *config.Config, logger *slog.Logger) bus.Bus {
	redisBus := bus.NewRedisBus(rdb, cfg.BusStream, cfg.BusGroup, cfg.BusMaxLen)
	memBus := bus.NewMemoryBus(cfg.BusMemoryFallbackSize, logger)
	return bus.NewFallbackBus(redisBus, memBus)
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	credentialSvc := credential.NewService(db, logger)
	resolver := credentialResolverAdapter{service: credentialSvc}

	limitLookup := &billingLimitLookup{}
	usageAccountant := usage.New(rdb, limitLookup, logger)

	billingStore := billing.NewStore(db)
	billingSvc := billing.NewService(billingStore, usageAccountant, logger)
	limitLookup.svc = billingSvc

	b := newBus(rdb, cfg, logger)

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, resolver)

	ingestHandler := ingest.NewHandler(credentialSvc, usageAccountant, b, logger)
	srv.Router.Mount("/events", ingestHandler.Routes())
	srv.Router.Mount("/health", ingestHandler.HealthRoutes())

	billingHandler := billing.NewHandler(billingSvc, cfg.WhopWebhookSecret, logger)
	srv.APIRouter.Mount("/billing", billingHandler.Routes())

	alertStore := alert.NewStore(db)
	alertSvc := alert.NewService(alertStore)
	alertHandler := alert.NewHandler(alertSvc)
	srv.APIRouter.With(httpserver.RequireAuth).Mount("/alerts/rules", alertHandler.Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	b := newBus(rdb, cfg, logger)
	if err := b.CreateGroup(ctx); err != nil {
		return fmt.Errorf("creating bus consumer group: %w", err)
	}

	alertStore := alert.NewStore(db)
	ruleManager := alert.NewManager(alertStore, logger)
	if err := ruleManager.Load(ctx); err != nil {
		return fmt.Errorf("loading alert rules: %w", err)
	}
	go ruleManager.Run(ctx)

	var notifiers []notifier.Notifier
	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, notifier.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notifier.NewChatNotifier(cfg.SlackWebhookURL))
	}
	notifiers = append(notifiers, notifier.NewConsoleNotifier(os.Stdout))
	fanout := notifier.NewFanout(logger, notifiers...)

	chStore, err := analytics.Connect(ctx, analytics.ClickHouseConfig{
		Addr:     cfg.ClickHouseAddr(),
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
	})
	if err != nil {
		return fmt.Errorf("connecting to clickhouse: %w", err)
	}
	analyticsWriter := analytics.NewWriter(chStore, cfg.AnalyticsFlushThreshold, logger)
	go analyticsWriter.Run(ctx, cfg.AnalyticsFlushInterval)

	// Declared as an interface (rather than *archiver.Archiver) so a
	// disabled archiver is a true nil interface, not a typed nil pointer
	// that would satisfy processor's "arch != nil" check by accident.
	var arch interface{ Run(context.Context) }
	if cfg.S3ArchiveBucket != "" {
		s3Store, err := archiver.NewS3Store(ctx, archiver.S3Config{
			Bucket:          cfg.S3ArchiveBucket,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
		})
		if err != nil {
			return fmt.Errorf("building s3 archive store: %w", err)
		}
		arch = archiver.New(chStore, s3Store, logger, archiver.Config{
			Prefix:             cfg.S3ArchivePrefix,
			AfterDays:          cfg.ArchiveAfterDays,
			BatchSize:          cfg.ArchiveBatchSize,
			Interval:           time.Duration(cfg.ArchiveIntervalHours) * time.Hour,
			DeleteAfterArchive: cfg.DeleteAfterArchive,
		})
	} else {
		logger.Info("archiver disabled (S3_ARCHIVE_BUCKET not set)")
	}

	proc := processor.New(b, ruleManager, fanout, analyticsWriter, arch, logger, processor.Config{
		ReadCount:     cfg.BusReadCount,
		ReadBlock:     cfg.BusReadBlock,
		ClaimInterval: cfg.BusClaimInterval,
		ClaimIdle:     cfg.BusClaimIdle,
	})

	logger.Info("worker started")
	return proc.Run(ctx)
}
