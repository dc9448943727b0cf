package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config contains all runtime settings for the NPC dialog service.
type Config struct {
	BindAddr                 string        `envconfig:"APP_BIND_ADDR" default:":8080"`
	ShutdownTimeout          time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"15s"`
	SessionInactivityTimeout time.Duration `envconfig:"APP_SESSION_INACTIVITY_TIMEOUT" default:"10m"`
	MetricsNamespace         string        `envconfig:"APP_METRICS_NAMESPACE" default:"npctalk"`
	AllowAnyOrigin           bool          `envconfig:"APP_ALLOW_ANY_ORIGIN" default:"false"`
	OutboundQueue            int           `envconfig:"APP_OUTBOUND_QUEUE" default:"64"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	ScriptDir       string `envconfig:"SCRIPT_DIR" default:"scripts"`
	CatalogSeedPath string `envconfig:"CATALOG_SEED_PATH" default:"data/catalog.yaml"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`

	RedisAddr             string `envconfig:"REDIS_ADDR"`
	RedisTerminateChannel string `envconfig:"REDIS_TERMINATE_CHANNEL" default:"npctalk:terminate"`
	RedisEventsChannel    string `envconfig:"REDIS_EVENTS_CHANNEL" default:"npctalk:conversations"`
}

// Load reads an optional .env file, then environment variables, and
// validates the result.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file. A missing file is not an error;
// variables already set in the environment win over the file.
func LoadFile(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.OutboundQueue <= 0 {
		return Config{}, fmt.Errorf("APP_OUTBOUND_QUEUE must be positive")
	}
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.LogFormat)
	}
	if strings.TrimSpace(cfg.ScriptDir) == "" {
		return Config{}, fmt.Errorf("SCRIPT_DIR must not be empty")
	}

	return cfg, nil
}
