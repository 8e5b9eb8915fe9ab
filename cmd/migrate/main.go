package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bikeshare-explorer/internal/config"
	"bikeshare-explorer/migrations"
	"bikeshare-explorer/pkg/database"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to an HCL configuration file")
	direction := flag.String("direction", "up", "Migration direction: up or down")
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

	statements, err := migrations.Statements(migrations.Latest, *direction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read migration: %v\n", err)
		os.Exit(1)
	}

	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("bikeshare-migrate", "1.0.0", logLevel)

	// Connect to database
	db, err := database.Open(cfg.DatabaseConfig(), logger, metrics.NewCollector("bikeshare_migrate"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")
	fmt.Printf("Running migration: %s (%s)\n", migrations.Latest, *direction)

	// Execute migration
	ctx := context.Background()
	tx, err := db.BeginTx(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to begin transaction: %v\n", err)
		os.Exit(1)
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
			os.Exit(1)
		}
	}

	if err := tx.Commit(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to commit migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
