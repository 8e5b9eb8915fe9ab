package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/xid"

	"bikeshare-explorer/internal/config"
	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/internal/repository"
	"bikeshare-explorer/internal/services"
	"bikeshare-explorer/pkg/database"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to an HCL configuration file")
	batchSize := flag.Int("batch-size", 1000, "Number of records to insert in each batch")
	cityName := flag.String("city", "", "Ingest only this city (default: every configured city)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	cities, err := selectCities(cfg.Cities, *cityName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	if logLevel > logging.InfoLevel {
		logLevel = logging.InfoLevel
	}
	logger := logging.NewStructuredLogger("bikeshare-ingester", "1.0.0", logLevel)

	ctx := logging.WithSessionID(context.Background(), xid.New().String())
	logger.Info(ctx, "[INGESTER_START] Starting trip ingestion", logging.Fields{
		"version":    "1.0.0",
		"data_dir":   cfg.DataDir,
		"batch_size": *batchSize,
		"cities":     len(cities),
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("bikeshare_ingester")

	// Initialize database
	db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and services
	tripRepo := repository.NewTripRepository(db, logger, metricsCollector)
	files := repository.NewCSVSource(cfg.DataDir, logger)
	ingestionService := services.NewIngestionService(tripRepo, files, logger, metricsCollector)

	// Ingest data
	result, err := ingestionService.IngestCities(ctx, cities, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Cities:       %d\n", result.TotalCities)
	fmt.Printf("Total Records:      %s\n", humanize.Comma(int64(result.TotalRecords)))
	fmt.Printf("Successful Records: %s\n", humanize.Comma(int64(result.SuccessfulRecords)))
	fmt.Printf("Failed Records:     %s\n", humanize.Comma(int64(result.FailedRecords)))
	fmt.Printf("Replaced Records:   %s\n", humanize.Comma(result.ReplacedRecords))
	fmt.Printf("Duration:           %v\n", result.Duration)
	fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/result.Duration.Seconds())

	fmt.Println("\nStored trips:")
	for _, city := range cities {
		count, err := tripRepo.CountTrips(ctx, city.Name)
		if err != nil {
			logger.Error(ctx, "[INGESTER_ERROR] Failed to count stored trips", logging.Fields{"city": city.Name}, err)
			continue
		}
		fmt.Printf("  %-20s %s\n", city.Name, humanize.Comma(int64(count)))
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})

	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

// selectCities narrows the configured cities to name, when given
func selectCities(cities []models.City, name string) ([]models.City, error) {
	if name == "" {
		return cities, nil
	}

	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range cities {
		if c.Name == name {
			return []models.City{c}, nil
		}
	}
	return nil, fmt.Errorf("unknown city %q", name)
}
