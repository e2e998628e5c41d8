package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jkaninda/samsara/internal/appeal"
	"github.com/jkaninda/samsara/internal/atonement"
	"github.com/jkaninda/samsara/internal/bridge"
	"github.com/jkaninda/samsara/internal/classifier"
	"github.com/jkaninda/samsara/internal/config"
	"github.com/jkaninda/samsara/internal/debt"
	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/gateway/ws"
	"github.com/jkaninda/samsara/internal/ledger"
	"github.com/jkaninda/samsara/internal/lifecycle"
	"github.com/jkaninda/samsara/internal/notification"
	"github.com/jkaninda/samsara/internal/observability"
	"github.com/jkaninda/samsara/internal/predictor"
	"github.com/jkaninda/samsara/internal/storage"
	"github.com/jkaninda/samsara/internal/storage/memory"
	pgstore "github.com/jkaninda/samsara/internal/storage/postgres"
	sqlitestore "github.com/jkaninda/samsara/internal/storage/sqlite"
)

// SharedComponents holds all initialized subsystems the serve and audit
// commands require. Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger
	Store  storage.Store // Unified store (memory, SQLite, or PostgreSQL).

	Obs        *observability.Observability
	Dispatcher *notification.Dispatcher // nil = notifications disabled.
	WSServer   *ws.Server               // nil = websocket stream disabled.
	Classifier *classifier.Classifier
	Engine     *engine.Engine
	Sweeper    *atonement.Sweeper // nil = plan expiry sweep disabled.

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs all common initialization shared between serve and
// audit modes. Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Ensure data directory exists.
	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	logger.Debug("data directory initialized", slog.String("path", dataDir))

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}
	registry := obs.RegistryOrNil()

	// Storage (unified: SQLite default, PostgreSQL and memory optional).
	store, err := initStore(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	sc.Store = store
	sc.addCleanup(func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	})

	// Run migrations.
	if err := store.Migrate(context.Background()); err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Debug("store initialized", slog.String("driver", store.Driver()))

	if obs != nil && obs.Health != nil {
		obs.Health.AddCheck("store", store.Ping)
	}

	// Token catalog.
	catalog := classifier.DefaultCatalog()
	if cfg.Classifier.CatalogPath != "" {
		catalog, err = classifier.LoadCatalog(cfg.Classifier.CatalogPath)
		if err != nil {
			sc.Cleanup()
			return nil, fmt.Errorf("loading token catalog: %w", err)
		}
		logger.Debug("token catalog loaded", slog.String("path", cfg.Classifier.CatalogPath))
	}
	provider := classifier.NewProvider(catalog)

	// Notification dispatcher (optional).
	if cfg.Notification != nil && cfg.Notification.Enabled {
		dispatcher := notification.NewDispatcher(store, notification.NewMetrics(registry), logger)
		dispatcher.RegisterSender(notification.NewWebhookSender(logger))
		dispatcher.RegisterSender(notification.NewLogSender(logger))
		if cfg.Notification.Slack != nil && cfg.Notification.Slack.BotToken != "" {
			dispatcher.RegisterSender(notification.NewSlackSender(cfg.Notification.Slack.BotToken, logger))
		}
		sc.Dispatcher = dispatcher
		logger.Debug("notification dispatcher initialized")
	}

	// WebSocket event stream (optional).
	if cfg.Gateway.WebSocket != nil && cfg.Gateway.WebSocket.Enabled {
		var mc *observability.MetricsCollector
		if obs != nil {
			mc = obs.Metrics
		}
		sc.WSServer = ws.NewServer(cfg.Gateway.WebSocket, mc, logger)
		logger.Debug("websocket event stream initialized",
			slog.String("path", cfg.Gateway.WebSocket.WSPath()),
		)
	}

	// Outbound publishers.
	var outbound engine.Outbound

	var feedback feedbackFanout
	var lifecycleSinks lifecycleFanout
	if sc.Dispatcher != nil {
		pub := notification.NewPublisher(sc.Dispatcher)
		feedback = append(feedback, pub)
		lifecycleSinks = append(lifecycleSinks, pub)
	}
	if sc.WSServer != nil {
		feedback = append(feedback, sc.WSServer)
		lifecycleSinks = append(lifecycleSinks, sc.WSServer)
	}
	if len(feedback) > 0 {
		outbound.Feedback = feedback
	}
	if len(lifecycleSinks) > 0 {
		outbound.Lifecycle = lifecycleSinks
	}

	if cfg.Bridge != nil && cfg.Bridge.Endpoint != "" {
		outbound.Influence = bridge.New(bridge.Config{
			Endpoint: cfg.Bridge.Endpoint,
			Bias:     cfg.Bridge.Bias,
			Timeout:  cfg.Bridge.Timeout(),
		}, bridge.NewMetrics(registry), logger)
		logger.Debug("influence bridge initialized", slog.String("endpoint", cfg.Bridge.Endpoint))
	}
	outbound.Debt = debt.NewLedger(store, debt.NewMetrics(registry), logger)

	// Domain components.
	cls := classifier.New(provider, store, classifier.Config{
		RecencyWindow: cfg.Classifier.RecencyWindow(),
	}, classifier.NewMetrics(registry), logger)
	sc.Classifier = cls

	lgr := ledger.New(cfg.Ledger.DecayUnit(), ledger.NewMetrics(registry), logger)
	calc := ledger.Calculator{CurrentLifeWeight: cfg.Ledger.LifeWeight()}

	roleThresholds := cfg.Engine.Thresholds()
	// The provider is the action source, so a catalog reload updates the
	// predictor's action space along with the classifier's table.
	pred := predictor.New(store, provider, roleThresholds, predictor.Config{
		Alpha:             cfg.Predictor.Alpha,
		Gamma:             cfg.Predictor.Gamma,
		Epsilon:           cfg.Predictor.Epsilon,
		BehavioralBias:    cfg.Predictor.BehavioralBias,
		LowVisitThreshold: cfg.Predictor.LowVisitThreshold,
	}, predictor.NewMetrics(registry), logger)

	atoneCfg := atonement.DefaultConfig()
	atoneCfg.IncrementalRedemption = cfg.Atonement.IncrementalRedemption
	atoneMetrics := atonement.NewMetrics(registry)
	atone := atonement.NewEngine(atoneCfg, atoneMetrics)

	machine := lifecycle.NewMachine(lifecycle.Config{
		DeathThreshold: cfg.Lifecycle.DeathThreshold,
		SwargaMin:      cfg.Lifecycle.SwargaMin,
		NarakaMax:      cfg.Lifecycle.NarakaMax,
		Thresholds:     roleThresholds,
	}, lifecycle.NewMetrics(registry), logger)

	sc.Engine = engine.New(
		store,
		provider,
		cls,
		lgr,
		calc,
		pred,
		atone,
		machine,
		appeal.NewProcessor(),
		outbound,
		engine.Config{
			MaxRetries:  cfg.Engine.Retries(),
			DefaultRole: domain.Role(cfg.Engine.Role()),
		},
		engine.NewMetrics(registry),
		obs.TracerOrNil(),
		logger,
	)

	// Plan expiry sweep (optional).
	if cfg.Sweep != nil && cfg.Sweep.Enabled {
		sc.Sweeper = atonement.NewSweeper(store, atonement.SweepConfig{
			Schedule:  cfg.Sweep.Schedule,
			BatchSize: cfg.Sweep.BatchSize,
		}, atoneMetrics, logger)
	}

	return sc, nil
}

func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch driver := cfg.StorageDriverName(); driver {
	case "postgres":
		return initPostgresStore(cfg, logger)
	case "sqlite":
		return initSQLiteStore(cfg, logger)
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

func initSQLiteStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	dbPath := cfg.DatabasePath()
	journalMode := "wal"

	if cfg.Storage != nil && cfg.Storage.SQLite != nil {
		if cfg.Storage.SQLite.Path != "" {
			dbPath = cfg.Storage.SQLite.Path
		}
		if cfg.Storage.SQLite.JournalMode != "" {
			journalMode = cfg.Storage.SQLite.JournalMode
		}
	}

	return sqlitestore.Open(sqlitestore.Config{
		Path:        dbPath,
		JournalMode: journalMode,
	}, logger)
}

func initPostgresStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	var dsn string
	if cfg.Storage != nil && cfg.Storage.Postgres != nil {
		dsn = cfg.Storage.Postgres.DSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required (set storage.postgres.dsn or SAMSARA_DB_DSN)")
	}

	pgCfg := pgstore.Config{DSN: dsn}
	if cfg.Storage != nil && cfg.Storage.Postgres != nil {
		pgCfg.MaxOpenConns = cfg.Storage.Postgres.MaxOpenConns
		pgCfg.MaxIdleConns = cfg.Storage.Postgres.MaxIdleConns
		pgCfg.ConnMaxLifetime = time.Duration(cfg.Storage.Postgres.ConnMaxLifetimeS) * time.Second
	}

	pgDB, err := pgstore.Open(pgCfg, logger)
	if err != nil {
		return nil, err
	}
	return pgstore.NewStore(pgDB), nil
}
