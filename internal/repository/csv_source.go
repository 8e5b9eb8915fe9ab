package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/pkg/frame"
	"bikeshare-explorer/pkg/logging"
)

// TripSource provides the raw trip table of one city
type TripSource interface {
	LoadCity(ctx context.Context, city models.City) (dataframe.DataFrame, error)
}

// CSVSource reads one CSV file per city from a data directory
type CSVSource struct {
	dataDir string
	logger  *logging.StructuredLogger
}

// NewCSVSource creates a CSV-backed trip source
func NewCSVSource(dataDir string, logger *logging.StructuredLogger) *CSVSource {
	return &CSVSource{
		dataDir: dataDir,
		logger:  logger,
	}
}

// Path resolves the file of a city relative to the data directory
func (s *CSVSource) Path(city models.City) string {
	if filepath.IsAbs(city.File) {
		return city.File
	}
	return filepath.Join(s.dataDir, city.File)
}

// LoadCity reads the whole CSV file of a city as a text table
func (s *CSVSource) LoadCity(ctx context.Context, city models.City) (dataframe.DataFrame, error) {
	start := time.Now()
	path := s.Path(city)

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return dataframe.DataFrame{}, &NotFoundError{
			Resource: "city data file",
			ID:       path,
		}
	}
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	table, err := frame.ReadCSV(file)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	s.logger.Debug(ctx, "[CSV_LOAD] City file read", logging.Fields{
		"city":        city.Name,
		"file_path":   path,
		"rows":        table.Nrow(),
		"columns":     len(frame.Columns(table)),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return table, nil
}
