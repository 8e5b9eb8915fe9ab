package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/xid"

	"bikeshare-explorer/internal/config"
	"bikeshare-explorer/internal/prompt"
	"bikeshare-explorer/internal/repository"
	"bikeshare-explorer/internal/services"
	"bikeshare-explorer/internal/session"
	"bikeshare-explorer/pkg/database"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to an HCL configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	// Initialize logger
	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("bikeshare-explorer", version, logLevel)

	if cfg.Logging.Output != "" {
		logFile, err := os.OpenFile(cfg.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			return 1
		}
		defer logFile.Close()
		logger.SetOutput(logFile)
	}

	ctx := logging.WithSessionID(context.Background(), xid.New().String())
	logger.Info(ctx, "[STARTUP] Starting bikeshare explorer", logging.Fields{
		"version":  version,
		"source":   cfg.Source,
		"data_dir": cfg.DataDir,
		"cities":   len(cfg.Cities),
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("bikeshare_explorer")

	if cfg.Metrics.Addr != "" {
		server := startMetricsServer(ctx, cfg.Metrics.Addr, metricsCollector, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error(ctx, "[SHUTDOWN_ERROR] Metrics server forced to shutdown", logging.Fields{}, err)
			}
		}()
	}

	// Initialize trip source
	var source repository.TripSource
	switch cfg.Source {
	case config.SourceSQL:
		db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
		if err != nil {
			logger.Error(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
			fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
			return 1
		}
		defer db.Close()
		tripRepo := repository.NewTripRepository(db, logger, metricsCollector)
		if err := tripRepo.HealthCheck(ctx); err != nil {
			logger.Error(ctx, "[STARTUP_ERROR] Trip store is not ready", logging.Fields{}, err)
			fmt.Fprintf(os.Stderr, "Trip store is not ready: %v\n", err)
			return 1
		}
		source = tripRepo
	default:
		source = repository.NewCSVSource(cfg.DataDir, logger)
	}

	// Initialize services
	loader := services.NewLoaderService(source, cfg.Cities, os.Stdout, logger, metricsCollector)
	stats := services.NewStatisticsService(logger, metricsCollector)

	explorer := session.New(
		prompt.NewPrompter(os.Stdin, os.Stdout, metricsCollector),
		loader,
		stats,
		session.NewScreen(os.Stdout),
		os.Stdout,
		cfg.CityNames(),
		logger,
		metricsCollector,
	)

	err = explorer.Run(ctx)
	switch {
	case err == nil:
		fmt.Println("\nThanks for exploring US bikeshare data. Goodbye!")
		logger.Info(ctx, "[SHUTDOWN_COMPLETE] Explorer finished", logging.Fields{})
		return 0
	case errors.Is(err, prompt.ErrEnd):
		fmt.Println("\nExploration ended. Goodbye!")
		logger.Info(ctx, "[SHUTDOWN_END] Explorer ended by user", logging.Fields{})
		return 0
	case errors.Is(err, prompt.ErrInputClosed):
		fmt.Println()
		logger.Info(ctx, "[SHUTDOWN_EOF] Input closed, stopping explorer", logging.Fields{})
		return 0
	default:
		logger.Error(ctx, "[SESSION_ERROR] Explorer stopped on error", logging.Fields{}, err)
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		return 1
	}
}

// startMetricsServer serves /metrics in the background
func startMetricsServer(ctx context.Context, addr string, collector *metrics.Collector, logger *logging.StructuredLogger) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info(ctx, "[METRICS_START] Metrics server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "[METRICS_ERROR] Metrics server failed", logging.Fields{}, err)
		}
	}()

	return server
}
