package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported credential store backends.
const (
	CredentialsBackendFile  = "file"
	CredentialsBackendMongo = "mongo"
)

// Supported cache storage backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
)

// Config represents the full application configuration surface.
type Config struct {
	Server      ServerConfig
	GreenAPI    GreenAPIConfig
	Credentials CredentialsConfig
	MongoDB     MongoDBConfig
	Cache       CacheConfig
	Sheets      SheetsConfig
	Debug       bool `env:"DEBUG" envDefault:"false"`
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port      string `env:"APP_PORT" envDefault:"8080"`
	StaticDir string `env:"STATIC_DIR" envDefault:"./web"`

	// PublicOrigin is the origin page assets are cached under.
	PublicOrigin string `env:"PUBLIC_ORIGIN" envDefault:"http://localhost:8080"`
}

// GreenAPIConfig contains options for the GREEN-API gateway client.
type GreenAPIConfig struct {
	BaseURL     string        `env:"GREEN_API_BASE_URL" envDefault:"https://api.green-api.com"`
	Timeout     time.Duration `env:"GREEN_API_TIMEOUT" envDefault:"15s"`
	HostPattern string        `env:"GREEN_API_HOST_PATTERN" envDefault:"^https://api\\.green-api\\.com/"`
}

// CredentialsConfig selects where the console keeps the instance credentials.
type CredentialsConfig struct {
	Backend string `env:"CREDENTIALS_BACKEND" envDefault:"file"`
	Path    string `env:"CREDENTIALS_PATH" envDefault:"./data/credentials.json"`
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string `env:"MONGODB_URI"`
	DBName string `env:"MONGODB_DB_NAME" envDefault:"greenconsole"`
}

// CacheConfig holds the offline cache worker settings.
type CacheConfig struct {
	Prefix          string        `env:"CACHE_PREFIX" envDefault:"green-api"`
	Version         string        `env:"CACHE_VERSION" envDefault:"v1.0.0"`
	Backend         string        `env:"CACHE_BACKEND" envDefault:"memory"`
	SQLitePath      string        `env:"CACHE_SQLITE_PATH" envDefault:"./data/cache.db"`
	Retention       time.Duration `env:"CACHE_RETENTION" envDefault:"168h"`
	CleanupSchedule string        `env:"CACHE_CLEANUP_SCHEDULE" envDefault:"0 3 * * *"`
}

// SheetsConfig contains configuration for the optional Google Sheets call journal.
type SheetsConfig struct {
	CredentialsPath string `env:"GOOGLE_SHEETS_CREDENTIALS_PATH"`
	SpreadsheetID   string `env:"GOOGLE_SHEET_JOURNAL_ID"`
	Range           string `env:"JOURNAL_RANGE" envDefault:"Journal!A:D"`
	ReportSchedule  string `env:"JOURNAL_REPORT_SCHEDULE" envDefault:"0 20 * * 5"`

	// ReportPhone receives the weekly call summary over WhatsApp when set.
	ReportPhone string `env:"JOURNAL_REPORT_PHONE"`
}

// Enabled reports whether the journal has enough configuration to be used.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Server.PublicOrigin == "" {
		return errors.New("PUBLIC_ORIGIN must not be empty")
	}
	c.Server.PublicOrigin = strings.TrimSuffix(c.Server.PublicOrigin, "/")

	if c.GreenAPI.BaseURL == "" {
		return errors.New("GREEN_API_BASE_URL must not be empty")
	}
	c.GreenAPI.BaseURL = strings.TrimSuffix(c.GreenAPI.BaseURL, "/")

	if c.GreenAPI.Timeout <= 0 {
		return errors.New("GREEN_API_TIMEOUT must be positive")
	}

	switch c.Credentials.Backend {
	case CredentialsBackendFile:
		if c.Credentials.Path == "" {
			return errors.New("CREDENTIALS_PATH must be provided for the file backend")
		}
	case CredentialsBackendMongo:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided for the mongo backend")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	default:
		return fmt.Errorf("unsupported CREDENTIALS_BACKEND %q", c.Credentials.Backend)
	}

	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendSQLite:
		if c.Cache.SQLitePath == "" {
			return errors.New("CACHE_SQLITE_PATH must be provided for the sqlite backend")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.Cache.Backend)
	}

	if c.Cache.Prefix == "" || c.Cache.Version == "" {
		return errors.New("CACHE_PREFIX and CACHE_VERSION must not be empty")
	}

	if _, err := regexp.Compile(c.GreenAPI.HostPattern); err != nil {
		return fmt.Errorf("invalid GREEN_API_HOST_PATTERN: %w", err)
	}

	if c.Cache.Retention <= 0 {
		return errors.New("CACHE_RETENTION must be positive")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_JOURNAL_ID must be set together")
	}

	return nil
}
