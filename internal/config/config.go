package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/pkg/database"
	"bikeshare-explorer/pkg/logging"
)

// Trip sources
const (
	SourceCSV = "csv"
	SourceSQL = "sql"
)

// Config holds the application configuration
type Config struct {
	Cities   []models.City
	DataDir  string
	Source   string
	Database DatabaseConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database settings for the SQL trip source
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Output string // empty means stderr
}

// MetricsConfig holds the metrics listener settings
type MetricsConfig struct {
	Addr string // empty disables the listener
}

// fileConfig mirrors the HCL configuration file.
// Every attribute is optional; absent values keep their defaults.
type fileConfig struct {
	DataDir  *string        `hcl:"data_dir,optional"`
	Source   *string        `hcl:"source,optional"`
	Cities   []*cityBlock   `hcl:"city,block"`
	Database *databaseBlock `hcl:"database,block"`
	Logging  *loggingBlock  `hcl:"logging,block"`
	Metrics  *metricsBlock  `hcl:"metrics,block"`
}

type cityBlock struct {
	Name string `hcl:"name,label"`
	File string `hcl:"file"`
}

type databaseBlock struct {
	Driver          *string `hcl:"driver,optional"`
	Host            *string `hcl:"host,optional"`
	Port            *int    `hcl:"port,optional"`
	User            *string `hcl:"user,optional"`
	Password        *string `hcl:"password,optional"`
	Name            *string `hcl:"name,optional"`
	SSLMode         *string `hcl:"sslmode,optional"`
	Path            *string `hcl:"path,optional"`
	MaxOpenConns    *int    `hcl:"max_open_conns,optional"`
	MaxIdleConns    *int    `hcl:"max_idle_conns,optional"`
	ConnMaxLifetime *string `hcl:"conn_max_lifetime,optional"`
	ConnMaxIdleTime *string `hcl:"conn_max_idle_time,optional"`
}

type loggingBlock struct {
	Level  *string `hcl:"level,optional"`
	Output *string `hcl:"output,optional"`
}

type metricsBlock struct {
	Addr *string `hcl:"addr,optional"`
}

// Default returns the built-in configuration: the three bundled cities read
// as CSV files from the working directory. City order is prompt order.
func Default() *Config {
	return &Config{
		Cities: []models.City{
			{Name: "new york city", File: "new_york_city.csv"},
			{Name: "chicago", File: "chicago.csv"},
			{Name: "washington", File: "washington.csv"},
		},
		DataDir: ".",
		Source:  SourceCSV,
		Database: DatabaseConfig{
			Driver:          database.DriverPostgres,
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "bikeshare",
			SSLMode:         "disable",
			Path:            "bikeshare.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional HCL file at
// path and finally the environment
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	setString(&c.DataDir, fc.DataDir)
	setString(&c.Source, fc.Source)

	if len(fc.Cities) > 0 {
		c.Cities = make([]models.City, 0, len(fc.Cities))
		for _, city := range fc.Cities {
			c.Cities = append(c.Cities, models.City{
				Name: strings.ToLower(strings.TrimSpace(city.Name)),
				File: city.File,
			})
		}
	}

	if db := fc.Database; db != nil {
		setString(&c.Database.Driver, db.Driver)
		setString(&c.Database.Host, db.Host)
		setInt(&c.Database.Port, db.Port)
		setString(&c.Database.User, db.User)
		setString(&c.Database.Password, db.Password)
		setString(&c.Database.Database, db.Name)
		setString(&c.Database.SSLMode, db.SSLMode)
		setString(&c.Database.Path, db.Path)
		setInt(&c.Database.MaxOpenConns, db.MaxOpenConns)
		setInt(&c.Database.MaxIdleConns, db.MaxIdleConns)
		if err := setDuration(&c.Database.ConnMaxLifetime, db.ConnMaxLifetime, "conn_max_lifetime"); err != nil {
			return err
		}
		if err := setDuration(&c.Database.ConnMaxIdleTime, db.ConnMaxIdleTime, "conn_max_idle_time"); err != nil {
			return err
		}
	}

	if l := fc.Logging; l != nil {
		setString(&c.Logging.Level, l.Level)
		setString(&c.Logging.Output, l.Output)
	}

	if m := fc.Metrics; m != nil {
		setString(&c.Metrics.Addr, m.Addr)
	}

	return nil
}

func (c *Config) applyEnv() error {
	c.DataDir = getEnv("BIKESHARE_DATA_DIR", c.DataDir)
	c.Source = getEnv("BIKESHARE_SOURCE", c.Source)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)

	port, err := getEnvInt("DB_PORT", c.Database.Port)
	if err != nil {
		return err
	}
	c.Database.Port = port

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Cities) == 0 {
		return errors.New("at least one city is required")
	}

	seen := make(map[string]bool, len(c.Cities))
	for _, city := range c.Cities {
		if city.Name == "" {
			return errors.New("city name is required")
		}
		if city.File == "" {
			return fmt.Errorf("city %q: file is required", city.Name)
		}
		if seen[city.Name] {
			return fmt.Errorf("city %q is defined twice", city.Name)
		}
		seen[city.Name] = true
	}

	switch c.Source {
	case SourceCSV:
		if c.DataDir == "" {
			return errors.New("data directory is required for the csv source")
		}
	case SourceSQL:
	default:
		return fmt.Errorf("unknown source %q, expected %q or %q", c.Source, SourceCSV, SourceSQL)
	}

	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Database == "" {
			return errors.New("database name is required")
		}
	case database.DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// CityNames returns the selectable city names in configured order
func (c *Config) CityNames() []string {
	names := make([]string, len(c.Cities))
	for i, city := range c.Cities {
		names[i] = city.Name
	}
	return names
}

// DatabaseConfig converts the database settings for pkg/database
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}
