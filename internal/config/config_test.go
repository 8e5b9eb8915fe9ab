package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/pkg/database"
)

var envKeys = []string{
	"BIKESHARE_DATA_DIR", "BIKESHARE_SOURCE", "DB_DRIVER", "DB_HOST", "DB_PORT",
	"DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_PATH",
	"LOG_LEVEL", "LOG_OUTPUT", "METRICS_ADDR",
}

// clearEnv blanks every variable LoadConfig reads so host settings do not leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "explorer.hcl")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	want := []string{"new york city", "chicago", "washington"}
	if diff := cmp.Diff(want, cfg.CityNames()); diff != "" {
		t.Errorf("CityNames() mismatch (-want +got):\n%s", diff)
	}
	if cfg.Source != SourceCSV || cfg.DataDir != "." {
		t.Errorf("source = %q, data dir = %q", cfg.Source, cfg.DataDir)
	}
	if cfg.Logging.Level != "warn" || cfg.Metrics.Addr != "" {
		t.Errorf("logging = %+v, metrics = %+v", cfg.Logging, cfg.Metrics)
	}
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
data_dir = "/srv/bikeshare"
source   = "sql"

city "chicago" {
  file = "chicago.csv"
}

city "Boston" {
  file = "boston.csv"
}

database {
  driver            = "sqlite"
  path              = "/srv/bikeshare/trips.db"
  conn_max_lifetime = "10m"
}

logging {
  level  = "debug"
  output = "explorer.log"
}

metrics {
  addr = ":9100"
}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	wantCities := []models.City{
		{Name: "chicago", File: "chicago.csv"},
		{Name: "boston", File: "boston.csv"},
	}
	if diff := cmp.Diff(wantCities, cfg.Cities); diff != "" {
		t.Errorf("Cities mismatch (-want +got):\n%s", diff)
	}

	db := cfg.DatabaseConfig()
	if db.Driver != database.DriverSQLite || db.Path != "/srv/bikeshare/trips.db" {
		t.Errorf("DatabaseConfig() = %+v", db)
	}
	if db.ConnMaxLifetime != 10*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want 10m", db.ConnMaxLifetime)
	}
	// untouched attributes keep their defaults
	if db.MaxOpenConns != 10 {
		t.Errorf("MaxOpenConns = %d, want default 10", db.MaxOpenConns)
	}
	if cfg.Logging.Output != "explorer.log" || cfg.Metrics.Addr != ":9100" {
		t.Errorf("logging = %+v, metrics = %+v", cfg.Logging, cfg.Metrics)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `data_dir = "/from/file"`)

	t.Setenv("BIKESHARE_DATA_DIR", "/from/env")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("LOG_LEVEL", "info")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DataDir != "/from/env" || cfg.Database.Port != 6543 || cfg.Logging.Level != "info" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{
			name: "syntax error",
			body: `data_dir = `,
			want: "failed to parse config file",
		},
		{
			name: "unknown attribute",
			body: `colour = "blue"`,
			want: "failed to decode config file",
		},
		{
			name: "bad duration",
			body: "database {\n  conn_max_idle_time = \"soon\"\n}\n",
			want: "invalid conn_max_idle_time",
		},
		{
			name: "bad port env",
			body: ``,
			env:  map[string]string{"DB_PORT": "fifty"},
			want: "invalid DB_PORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{
			name:   "no cities",
			mutate: func(c *Config) { c.Cities = nil },
			want:   "at least one city",
		},
		{
			name: "duplicate city",
			mutate: func(c *Config) {
				c.Cities = append(c.Cities, models.City{Name: "chicago", File: "other.csv"})
			},
			want: "defined twice",
		},
		{
			name:   "unknown source",
			mutate: func(c *Config) { c.Source = "parquet" },
			want:   "unknown source",
		},
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Database.Port = 70000 },
			want:   "invalid database port",
		},
		{
			name:   "unknown driver",
			mutate: func(c *Config) { c.Database.Driver = "oracle" },
			want:   "unknown database driver",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "loud" },
			want:   "unknown log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
