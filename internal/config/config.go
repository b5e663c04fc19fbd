package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danee593/carris-encm/pkg/encm"
)

// Warehouse backends
const (
	WarehouseBigQuery = "bigquery"
	WarehousePostgres = "postgres"
	WarehouseSQLite   = "sqlite"
)

// Config holds all configuration for one invocation of the loader
type Config struct {
	// Destination table. Not validated: a missing value surfaces as a load failure
	TableID string `yaml:"table_id"`

	// Source API
	FacilitiesURL      string `yaml:"facilities_url" validate:"required,url"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds" validate:"gt=0"`
	CaptureTimezone    string `yaml:"capture_timezone" validate:"required"`

	// Warehouse
	Warehouse        string `yaml:"warehouse" validate:"oneof=bigquery postgres sqlite"`
	ProjectID        string `yaml:"project_id"`
	BigQueryLocation string `yaml:"bigquery_location"`
	BigQueryEndpoint string `yaml:"bigquery_endpoint" validate:"omitempty,url"`
	DatabaseURL      string `yaml:"database_url" validate:"required_if=Warehouse postgres"`
	CloudSQLInstance string `yaml:"cloudsql_instance"`
	SQLitePath       string `yaml:"sqlite_database" validate:"required_if=Warehouse sqlite"`

	// Trigger server
	Port int `yaml:"port" validate:"gt=0,lte=65535"`

	// Logging
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json console"`
}

// HTTPTimeout returns the source request timeout
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Location resolves CaptureTimezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.CaptureTimezone)
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		FacilitiesURL:      encm.DefaultFacilitiesURL,
		HTTPTimeoutSeconds: int(encm.DefaultHTTPTimeout / time.Second),
		CaptureTimezone:    "Local",
		Warehouse:          WarehouseBigQuery,
		SQLitePath:         "/data/encm.db",
		Port:               8080,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load builds the configuration in three layers: defaults, then the YAML
// file at path (skipped when path is empty), then environment variables.
// envFiles are loaded into the environment first without overriding values
// that are already set; a missing file is ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: env file %s: %w", encm.ErrInvalidConfig, f, err)
		}
	}

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", encm.ErrInvalidConfig, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", encm.ErrInvalidConfig, path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the capture time zone
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", encm.ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: capture_timezone: %w", encm.ErrInvalidConfig, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// Destination table; the lowercase name is what the deployed function used
	cfg.TableID = getEnv("TABLE_ID", getEnv("table_id", cfg.TableID))

	// Source API
	cfg.FacilitiesURL = getEnv("FACILITIES_URL", cfg.FacilitiesURL)
	cfg.HTTPTimeoutSeconds = getEnvInt("HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeoutSeconds)
	cfg.CaptureTimezone = getEnv("CAPTURE_TIMEZONE", cfg.CaptureTimezone)

	// Warehouse
	cfg.Warehouse = getEnv("WAREHOUSE", cfg.Warehouse)
	cfg.ProjectID = getEnv("GOOGLE_CLOUD_PROJECT", cfg.ProjectID)
	cfg.BigQueryLocation = getEnv("BIGQUERY_LOCATION", cfg.BigQueryLocation)
	cfg.BigQueryEndpoint = getEnv("BIGQUERY_ENDPOINT", cfg.BigQueryEndpoint)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.CloudSQLInstance = getEnv("CLOUDSQL_INSTANCE", cfg.CloudSQLInstance)
	cfg.SQLitePath = getEnv("SQLITE_DATABASE", cfg.SQLitePath)

	// Trigger server
	cfg.Port = getEnvInt("PORT", cfg.Port)

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
