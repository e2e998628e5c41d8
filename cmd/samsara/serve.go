package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/samsara/internal/config"
	"github.com/jkaninda/samsara/internal/gateway"
	"github.com/jkaninda/samsara/internal/gateway/httpapi"
	"github.com/jkaninda/samsara/internal/ratelimit"
	goutils "github.com/jkaninda/go-utils"
)

var (
	serveConfigPath string
	servePort       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine (HTTP API, WebSocket event stream)",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `samsara --config path` and `samsara serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen port (e.g. :8080)")
	}
}

// runServe starts the engine with its configured gateways.
func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(goutils.Env("SAMSARA_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if servePort != "" {
		if cfg.Gateway.HTTP == nil {
			cfg.Gateway.HTTP = &config.HTTPGatewayConfig{Enabled: true}
		}
		cfg.Gateway.HTTP.ListenAddr = servePort
	}

	logger.Info("starting samsara", slog.String("config", serveConfigPath))

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the plan expiry sweep.
	if sc.Sweeper != nil {
		cancelSweep, err := sc.Sweeper.Start(ctx)
		if err != nil {
			return fmt.Errorf("starting plan expiry sweep: %w", err)
		}
		defer cancelSweep()
		logger.Debug("plan expiry sweep started", slog.String("schedule", cfg.Sweep.Schedule))
	}

	// Hot-reload the token catalog on SIGHUP.
	if cfg.Classifier.CatalogPath != "" {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for range hup {
				if err := sc.Classifier.ReloadCatalog(cfg.Classifier.CatalogPath); err != nil {
					logger.Error("catalog reload failed", slog.String("error", err.Error()))
				}
			}
		}()
	}

	// Build enabled gateways.
	gateways := buildGateways(cfg, sc)
	if len(gateways) == 0 {
		return fmt.Errorf("no gateways enabled in config")
	}
	// Start all gateways in goroutines.
	errs := make(chan error, len(gateways))
	for _, gw := range gateways {
		logger.Info("starting gateway", slog.String("gateway", gw.Name()))
		go func(g gateway.Gateway) {
			errs <- g.Start(ctx)
		}(gw)
	}

	// Wait for signal or first gateway error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
		}
	}

	// Graceful shutdown with deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := len(gateways) - 1; i >= 0; i-- {
		if err := gateways[i].Stop(shutdownCtx); err != nil {
			logger.Error("stopping gateway", slog.String("error", err.Error()))
		}
	}

	return nil
}

// buildGateways assembles the enabled gateway list from config.
func buildGateways(cfg *config.Config, sc *SharedComponents) []gateway.Gateway {
	var gateways []gateway.Gateway

	if cfg.Gateway.HTTP != nil && cfg.Gateway.HTTP.Enabled {
		var limiter *ratelimit.Limiter
		if rl := cfg.Gateway.HTTP.RateLimit; rl.RequestsPerMinute > 0 {
			limiter = ratelimit.NewLimiter(ratelimit.Config{
				RequestsPerMinute: rl.RequestsPerMinute,
				BurstSize:         rl.BurstSize,
			})
		}

		gwCfg := httpapi.Config{
			ListenAddr:     cfg.Gateway.HTTP.Addr(),
			EnableDocs:     true,
			APIKey:         cfg.Gateway.HTTP.APIKey,
			MaxRequestSize: cfg.Gateway.HTTP.MaxRequestSize(),
		}
		if sc.Obs != nil {
			gwCfg.MetricsRegistry = sc.Obs.RegistryOrNil()
			gwCfg.Metrics = sc.Obs.Metrics
			gwCfg.Tracer = sc.Obs.TracerOrNil()
			gwCfg.HealthChecker = sc.Obs.Health
			if sc.Obs.Metrics != nil && cfg.Observability != nil && cfg.Observability.Metrics != nil {
				gwCfg.MetricsPath = cfg.Observability.Metrics.MetricsPath()
			}
		}

		httpGW := httpapi.NewGateway(gwCfg, sc.Engine, sc.Store, limiter, sc.Logger)
		if sc.Dispatcher != nil {
			httpGW = httpGW.WithNotifications(sc.Dispatcher)
		}
		if sc.WSServer != nil {
			httpGW = httpGW.WithHandler(cfg.Gateway.WebSocket.WSPath(), sc.WSServer.Handler())
		}
		gateways = append(gateways, httpGW)
	}

	return gateways
}
