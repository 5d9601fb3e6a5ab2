// =============================================================================
// Agentcore daemon entry point
//
// Usage:
//
//	agentd run                        # start the agent
//	agentd run --config config.yaml   # with a config file
//	agentd run --restore latest       # resume from the latest snapshot
//	agentd version                    # show version information
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/researchmesh/agentcore/agent"
	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/internal/metrics"
	"github.com/researchmesh/agentcore/internal/telemetry"
	"github.com/researchmesh/agentcore/snapshot"
	"github.com/researchmesh/agentcore/tools"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runAgent(os.Args[2:])
	case "version":
		fmt.Printf("agentd %s (built %s)\n", Version, BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runAgent(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	restore := fs.String("restore", "", "Snapshot ID to resume from, or \"latest\"")
	metricsAddr := fs.String("metrics-addr", ":9090", "Prometheus listen address, empty to disable")
	fs.Parse(args)

	loader := config.NewLoader().WithEnvPrefix("AGENTCORE")
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting agentd",
		zap.String("version", Version),
		zap.String("agent_name", cfg.AgentName),
		zap.String("planner_mode", string(cfg.PlannerMode)))

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry initialization failed", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProviders.Shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector("agentcore", promRegistry)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, promRegistry, logger)
	}

	registry := tools.NewRegistry(logger)
	if err := tools.RegisterBuiltins(registry, logger); err != nil {
		logger.Fatal("tool registration failed", zap.Error(err))
	}

	store := snapshot.NewFileStore(cfg.SnapshotDir, logger)
	audit := openAuditLog(cfg.SnapshotDir, logger)
	var snapStore snapshot.Store = store
	if audit != nil {
		snapStore = snapshot.WithAudit(store, audit, logger)
	}

	controller := agent.New(agent.Options{
		Store:    snapStore,
		Registry: registry,
		Metrics:  collector,
		Logger:   logger,
	})

	ctx := context.Background()
	if *restore != "" {
		id := *restore
		if id == "latest" {
			id = ""
		}
		if err := controller.Restore(ctx, id); err != nil {
			logger.Fatal("restore failed", zap.Error(err))
		}
	} else if err := controller.Configure(ctx, cfg); err != nil {
		logger.Fatal("configure failed", zap.Error(err))
	}

	go func() {
		if err := controller.Run(ctx); err != nil {
			logger.Error("event loop ended", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM: the controller finishes any
	// in-flight task and writes a final snapshot before exiting.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	if err := controller.Shutdown(ctx); err != nil {
		logger.Error("shutdown event failed", zap.Error(err))
		return
	}
	select {
	case <-controller.Done():
		logger.Info("agentd stopped")
	case <-time.After(30 * time.Second):
		logger.Error("shutdown timed out")
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

// openAuditLog opens the sqlite-backed snapshot audit log next to the
// snapshot files. Audit is best-effort: failure to open disables it.
func openAuditLog(dir string, logger *zap.Logger) *snapshot.AuditLog {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("audit log disabled", zap.Error(err))
		return nil
	}
	db, err := gorm.Open(sqlite.Open(dir+"/audit.db"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Warn("audit log disabled", zap.Error(err))
		return nil
	}
	audit, err := snapshot.NewAuditLog(db, logger)
	if err != nil {
		logger.Warn("audit log disabled", zap.Error(err))
		return nil
	}
	return audit
}

func printUsage() {
	fmt.Println(`agentd - research agent daemon

Usage:
  agentd <command> [options]

Commands:
  run       Start the agent event loop
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>        Path to configuration file (YAML)
  --restore <id|latest>  Resume from a persisted snapshot
  --metrics-addr <addr>  Prometheus listen address (default :9090)

Examples:
  agentd run
  agentd run --config /etc/agentcore/config.yaml
  agentd run --restore latest`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
