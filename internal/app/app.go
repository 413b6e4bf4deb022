// Package app builds and holds the long-lived services behind one ingestion
// run, acting as the composition root.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/arremate/ingestor/internal/api"
	"github.com/arremate/ingestor/internal/archive"
	"github.com/arremate/ingestor/internal/classify"
	"github.com/arremate/ingestor/internal/clock/system"
	"github.com/arremate/ingestor/internal/config"
	"github.com/arremate/ingestor/internal/discovery"
	"github.com/arremate/ingestor/internal/emit"
	"github.com/arremate/ingestor/internal/extract"
	"github.com/arremate/ingestor/internal/fetch"
	"github.com/arremate/ingestor/internal/hash/sha256"
	"github.com/arremate/ingestor/internal/id/uuid"
	"github.com/arremate/ingestor/internal/index"
	"github.com/arremate/ingestor/internal/logging"
	"github.com/arremate/ingestor/internal/metrics"
	"github.com/arremate/ingestor/internal/normalize"
	"github.com/arremate/ingestor/internal/pipeline"
	memorypublisher "github.com/arremate/ingestor/internal/publisher/memory"
	gcppublisher "github.com/arremate/ingestor/internal/publisher/pubsub"
	"github.com/arremate/ingestor/internal/quarantine"
	"github.com/arremate/ingestor/internal/ratelimit"
	"github.com/arremate/ingestor/internal/runner"
)

// App contains the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	runner *runner.Runner
	server *api.Server

	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	storageClient   *storage.Client
	emitPG          *emit.PostgresSink
	quarantinePG    *quarantine.PostgresSink
}

// Build creates the application's dependencies from configuration.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("sources", len(cfg.Sources)),
		zap.String("mode", cfg.Run.Mode),
	)

	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	tombstones, err := fetch.NewFileTombstoneStore(filepath.Join(cfg.Run.DataDir, "tombstones.ndjson"))
	if err != nil {
		return nil, fmt.Errorf("tombstone store init failed: %w", err)
	}
	processed, err := index.NewFileIndex(filepath.Join(cfg.Run.DataDir, "processed.ndjson"))
	if err != nil {
		return nil, fmt.Errorf("processed index init failed: %w", err)
	}

	sourceRPS := make(map[string]float64, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src.RPS > 0 {
			sourceRPS[src.Name] = src.RPS
		}
	}
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS: cfg.Fetch.DefaultRPS,
		SourceRPS:  sourceRPS,
	})

	client := fetch.NewCollyClient(fetch.CollyClientConfig{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       cfg.FetchTimeout(),
		RespectRobots: true,
	})
	policy := fetch.NewRetryPolicy(
		cfg.Fetch.MaxRetries,
		time.Duration(cfg.Fetch.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.Fetch.BackoffMaxMs)*time.Millisecond,
	)
	fetcher := fetch.New(client, limiter, policy, tombstones, hasher, clock, logger.Named("fetch"))

	emitter, err := app.setupEmitter(ctx)
	if err != nil {
		return nil, err
	}
	quarantineSink, err := app.setupQuarantine(ctx)
	if err != nil {
		return nil, err
	}
	archiveStore, err := app.setupArchive(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}

	sources := make([]runner.SourceRun, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		disc := discovery.New(
			discovery.Source{
				Name:       src.Name,
				SitemapURL: src.SitemapURL,
				ListingURL: src.ListingURL,
				Category:   src.Category,
			},
			fetcher,
			tombstones,
			cfg.RecencyWindow(),
			clock,
			logger.Named("discovery").With(zap.String("source", src.Name)),
		)
		sources = append(sources, runner.SourceRun{Name: src.Name, Discoverer: disc})
	}

	app.runner = runner.New(
		sources,
		fetcher,
		classify.New(),
		extract.Default(),
		normalize.New(hasher, normalize.Config{AllowedDomains: cfg.Normalize.AllowedDomains}),
		emitter,
		quarantineSink,
		processed,
		archiveStore,
		publisher,
		idGen,
		clock,
		logger.Named("runner"),
		runner.Config{
			Mode:           pipeline.RunMode(cfg.Run.Mode),
			DocumentBudget: cfg.Run.DocumentBudget,
			ArchivePrefix:  cfg.Archive.Prefix,
		},
	)

	if cfg.Server.Enabled {
		app.server = api.NewServer(app.runner, logger.Named("api"))
	}

	return app, nil
}

// Run executes one ingestion run, serving the observability endpoints while
// it is in flight, and blocks until the run completes or a signal arrives.
func (a *App) Run(ctx context.Context) (pipeline.RunReport, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if a.server != nil {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.server.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", zap.Error(err))
			}
		}()
	}

	report, runErr := a.runner.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown error", zap.Error(err))
		}
	}
	return report, runErr
}

// Close releases connections and flushes the logger.
func (a *App) Close(_ context.Context) {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.emitPG != nil {
		a.emitPG.Close()
	}
	if a.quarantinePG != nil {
		a.quarantinePG.Close()
	}
	_ = a.logger.Sync()
}

// Logger exposes the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

func (a *App) setupEmitter(ctx context.Context) (pipeline.Emitter, error) {
	fileSink, err := emit.NewFileSink(a.cfg.Sinks.ValidPath)
	if err != nil {
		return nil, fmt.Errorf("valid sink init failed: %w", err)
	}
	if !a.cfg.DB.Enabled {
		return fileSink, nil
	}
	a.emitPG, err = emit.NewPostgresSink(ctx, emit.PostgresConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: int32(a.cfg.DB.MaxOpenConns),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres emitter init failed: %w", err)
	}
	a.logger.Info("postgres emitter initialized")
	return emit.Multi(fileSink, a.emitPG), nil
}

func (a *App) setupQuarantine(ctx context.Context) (pipeline.QuarantineSink, error) {
	fileSink, err := quarantine.NewFileSink(a.cfg.Sinks.QuarantinePath, a.logger.Named("quarantine"))
	if err != nil {
		return nil, fmt.Errorf("quarantine sink init failed: %w", err)
	}
	if !a.cfg.DB.Enabled {
		return fileSink, nil
	}
	a.quarantinePG, err = quarantine.NewPostgresSink(ctx, quarantine.PostgresConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: int32(a.cfg.DB.MaxOpenConns),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres quarantine init failed: %w", err)
	}
	return quarantine.Multi(fileSink, a.quarantinePG), nil
}

func (a *App) setupArchive(ctx context.Context) (pipeline.ArchiveStore, error) {
	switch a.cfg.Archive.Provider {
	case "gcs":
		var err error
		a.storageClient, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := archive.NewGCSStore(a.storageClient, a.cfg.Archive.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.logger.Info("using GCS archive", zap.String("bucket", a.cfg.Archive.GCSBucket))
		return store, nil
	case "memory":
		return archive.NewMemoryStore(), nil
	default:
		store, err := archive.NewLocalStore(a.cfg.Archive.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		a.logger.Info("using local archive", zap.String("base_dir", a.cfg.Archive.BaseDir))
		return store, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (pipeline.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		a.logger.Debug("pubsub disabled, run reports stay local")
		return memorypublisher.New(), nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher = a.pubsubClient.Publisher(a.cfg.PubSub.TopicName)
	a.logger.Info("pubsub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(a.pubsubPublisher, ""), nil
}
