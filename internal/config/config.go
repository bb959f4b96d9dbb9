package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lherron/ghl2hs/internal/domain"
)

const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config represents the application configuration
type Config struct {
	Backend  string `yaml:"backend" env:"GHL2HS_BACKEND" validate:"oneof=sqlite mongo"`
	DBPath   string `yaml:"db_path" env:"GHL2HS_DB_PATH"`
	MongoURI string `yaml:"mongo_uri" env:"GHL2HS_MONGO_URI"`
	MongoDB  string `yaml:"mongo_db" env:"GHL2HS_MONGO_DB"`

	HubSpotToken   string `yaml:"hubspot_token" env:"HUBSPOT_TOKEN"`
	HubSpotBaseURL string `yaml:"hubspot_base_url" env:"HUBSPOT_BASE_URL" validate:"omitempty,url"`

	GHLToken      string `yaml:"ghl_token" env:"GHL_TOKEN"`
	GHLLocationID string `yaml:"ghl_location_id" env:"GHL_LOCATION_ID"`
	GHLBaseURL    string `yaml:"ghl_base_url" env:"GHL_BASE_URL" validate:"omitempty,url"`

	DealStage      string        `yaml:"dealstage" env:"HUBSPOT_DEALSTAGE"`
	Pipeline       string        `yaml:"pipeline" env:"HUBSPOT_PIPELINE"`
	CalendarObject string        `yaml:"calendar_object" env:"HUBSPOT_CALENDAR_OBJECT"`
	ImportTag      string        `yaml:"import_tag" env:"GHL2HS_IMPORT_TAG"`
	RequestDelay   time.Duration `yaml:"request_delay" env:"GHL2HS_REQUEST_DELAY" validate:"gte=0"`
	PropertyGroup  string        `yaml:"property_group" env:"GHL2HS_PROPERTY_GROUP"`
	FieldRules     string        `yaml:"field_rules" env:"GHL2HS_FIELD_RULES"`

	LogLevel     string `yaml:"log_level" env:"GHL2HS_LOG_LEVEL" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat    string `yaml:"log_format" env:"GHL2HS_LOG_FORMAT" validate:"oneof=text json"`
	LogFile      string `yaml:"log_file" env:"GHL2HS_LOG_FILE"`
	Output       string `yaml:"output" env:"GHL2HS_OUTPUT" validate:"oneof=table json yaml"`
	MetricsAddr  string `yaml:"metrics_addr" env:"GHL2HS_METRICS_ADDR"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

var validate = validator.New()

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/ghl2hs/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Backend:      BackendSQLite,
		RequestDelay: 300 * time.Millisecond,
		LogLevel:     "info",
		LogFormat:    "text",
		Output:       "table",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional
	if err := loadYAMLConfig(cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if token := getEnvOrFile("HUBSPOT_TOKEN", "HUBSPOT_TOKEN_FILE"); token != "" {
		cfg.HubSpotToken = token
	}

	if cfg.DBPath == "" {
		// Check for project-local database first
		if _, err := os.Stat(".ghl2hs/ghl2hs.db"); err == nil {
			cfg.DBPath = ".ghl2hs/ghl2hs.db"
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", "ghl2hs", "ghl2hs.db")
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a migration needs before any stream starts.
// needsDestination is false for dry runs and offline commands.
func (c *Config) Validate(needsDestination bool) error {
	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			return &domain.ConfigError{Field: "GHL2HS_MONGO_URI", Reason: "is required for the mongo backend"}
		}
		if c.MongoDB == "" {
			return &domain.ConfigError{Field: "GHL2HS_MONGO_DB", Reason: "is required for the mongo backend"}
		}
	case BackendSQLite, "":
		if c.DBPath == "" {
			return &domain.ConfigError{Field: "GHL2HS_DB_PATH", Reason: "is required"}
		}
	default:
		return &domain.ConfigError{Field: "GHL2HS_BACKEND", Reason: fmt.Sprintf("must be sqlite or mongo, got %q", c.Backend)}
	}
	if needsDestination && c.HubSpotToken == "" {
		return &domain.ConfigError{Field: "HUBSPOT_TOKEN", Reason: "is required"}
	}
	return nil
}

// ValidateSource checks the settings the extract command needs
func (c *Config) ValidateSource() error {
	if c.GHLToken == "" {
		return &domain.ConfigError{Field: "GHL_TOKEN", Reason: "is required"}
	}
	if c.GHLLocationID == "" {
		return &domain.ConfigError{Field: "GHL_LOCATION_ID", Reason: "is required"}
	}
	return nil
}

// loadYAMLConfig loads configuration from ~/.config/ghl2hs/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "ghl2hs", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
