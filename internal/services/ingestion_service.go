package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/internal/repository"
	"bikeshare-explorer/pkg/frame"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

// IngestionService copies the city CSV files into the trips table
type IngestionService struct {
	repo    repository.TripRepository
	files   *repository.CSVSource
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalCities       int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	ReplacedRecords   int64
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service reading city files
// through files
func NewIngestionService(repo repository.TripRepository, files *repository.CSVSource, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		files:   files,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestCities ingests the file of every city. A city's previous rows are
// replaced, so running the ingester twice leaves one copy of each trip. A
// city that fails keeps its previous rows and all its records count as failed.
func (s *IngestionService) IngestCities(ctx context.Context, cities []models.City, batchSize int) (*IngestionResult, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("invalid batch size: %d", batchSize)
	}
	if len(cities) == 0 {
		return nil, fmt.Errorf("no cities to ingest")
	}

	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting trip ingestion", logging.Fields{
		"city_count": len(cities),
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{
		TotalCities: len(cities),
		Errors:      make([]string, 0),
	}

	for _, city := range cities {
		cityResult, err := s.ingestCity(ctx, city, batchSize)
		if err != nil {
			errMsg := fmt.Sprintf("failed to ingest %s: %v", city.Name, err)
			result.Errors = append(result.Errors, errMsg)
			if cityResult != nil {
				result.TotalRecords += cityResult.TotalRecords
				result.FailedRecords += cityResult.TotalRecords
			}
			s.logger.Error(ctx, "[INGEST_CITY_ERROR] City ingestion failed", logging.Fields{
				"city":      city.Name,
				"file_path": s.files.Path(city),
				"stage":     "CITY_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError(ingestionErrorType(err))
			continue
		}

		result.TotalRecords += cityResult.TotalRecords
		result.SuccessfulRecords += cityResult.SuccessfulRecords
		result.FailedRecords += cityResult.FailedRecords
		result.ReplacedRecords += cityResult.ReplacedRecords

		s.logger.Info(ctx, "[INGEST_CITY_SUCCESS] City ingested successfully", logging.Fields{
			"city":               city.Name,
			"total_records":      cityResult.TotalRecords,
			"successful_records": cityResult.SuccessfulRecords,
			"failed_records":     cityResult.FailedRecords,
			"replaced_records":   cityResult.ReplacedRecords,
			"stage":              "CITY_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Trip ingestion completed", logging.Fields{
		"total_cities":       result.TotalCities,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// CityIngestionResult contains per-city ingestion statistics
type CityIngestionResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	ReplacedRecords   int64
}

// RowError reports the source row that stopped a city's ingestion
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

func ingestionErrorType(err error) string {
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		return "conversion_error"
	}
	return "file_error"
}

// ingestCity streams one city file into the trips table, replacing the
// city's stored trips in one transaction. The first row that fails
// conversion aborts the city and leaves its stored trips untouched. On
// failure the returned result still counts the records read.
func (s *IngestionService) ingestCity(ctx context.Context, city models.City, batchSize int) (*CityIngestionResult, error) {
	path := s.files.Path(city)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, frame.ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	names := frame.NormalizeHeader(header)

	result := &CityIngestionResult{}

	load := func(insert repository.InsertFunc) error {
		batch := make([]*models.Trip, 0, batchSize)
		for row := 0; ; row++ {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("error reading file: %w", err)
			}
			result.TotalRecords++

			raw := make(models.RawTripRecord, len(names))
			for i, name := range names {
				raw[name] = record[i]
			}

			trip, err := raw.ToTrip(city.Name, row)
			if err != nil {
				s.logger.Debug(ctx, "[INGEST_ROW_REJECTED] Row failed conversion", logging.Fields{
					"city":  city.Name,
					"row":   row,
					"error": err.Error(),
				})
				return &RowError{Row: row, Err: err}
			}

			batch = append(batch, trip)

			// Process batch when full
			if len(batch) >= batchSize {
				if err := insert(batch); err != nil {
					return fmt.Errorf("failed to insert batch: %w", err)
				}
				result.SuccessfulRecords += len(batch)
				batch = batch[:0]
			}
		}

		// Process remaining records
		if len(batch) > 0 {
			if err := insert(batch); err != nil {
				return fmt.Errorf("failed to insert final batch: %w", err)
			}
			result.SuccessfulRecords += len(batch)
		}
		return nil
	}

	replaced, err := s.repo.ReplaceCity(ctx, city.Name, load)
	if err != nil {
		result.SuccessfulRecords = 0
		return result, err
	}
	result.ReplacedRecords = replaced

	return result, nil
}
