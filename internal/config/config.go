// Package config provides configuration management functionality.
//
// This package handles loading configuration from environment variables
// (optionally via a .env file). Every physical database's path is
// derived from a single DataDir so operators only ever set one
// directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir         string // Base directory for the six SQLite databases (always absolute)
	ModelDir        string // Directory model artifacts are written to and loaded from
	ReportDir       string // Directory replay/backtest reports are written to
	BrokerURL       string // Event broker URL; loaded from the environment, not read by any package
	LogLevel        string // Log level (debug, info, warn, error)
	Port            int    // Operational HTTP server port (health/metrics/scheduler status)
	DevMode         bool   // Development mode flag
	DemoMode        bool   // Enables adapters' deterministic demo-data synthesis
	EnableLSTM      bool   // Read from SHELFOPS_ENABLE_LSTM (off by default); no package reads this flag and internal/training has no LSTM regressor
	SchedulerWorkers int   // Fixed-size worker pool concurrency for internal/scheduler

	// Backup, all optional: internal/backup is skipped entirely when
	// BackupBucket is empty.
	BackupBucket          string
	BackupRegion          string
	BackupEndpoint        string
	BackupAccessKeyID     string
	BackupSecretAccessKey string
}

// Load reads configuration from environment variables.
//
// 1. Loads .env file if present (via godotenv) — godotenv.Load's error
// when no .env file exists is intentionally ignored.
// 2. Reads environment variables with defaults.
// 3. Resolves DataDir/ModelDir/ReportDir to absolute paths and creates
// them if missing.
// 4. Validates the result.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	dataDir := ""
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("SHELFOPS_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}
	absDataDir, err := resolveDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	modelDir, err := resolveDir(getEnv("SHELFOPS_MODEL_DIR", filepath.Join(dataDir, "models")))
	if err != nil {
		return nil, fmt.Errorf("model directory: %w", err)
	}

	reportDir, err := resolveDir(getEnv("SHELFOPS_REPORT_DIR", filepath.Join(dataDir, "reports")))
	if err != nil {
		return nil, fmt.Errorf("report directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		ModelDir:         modelDir,
		ReportDir:        reportDir,
		BrokerURL:        getEnv("SHELFOPS_BROKER_URL", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnvAsInt("SHELFOPS_PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DemoMode:         getEnvAsBool("SHELFOPS_DEMO_MODE", false),
		EnableLSTM:       getEnvAsBool("SHELFOPS_ENABLE_LSTM", false),
		SchedulerWorkers: getEnvAsInt("SHELFOPS_SCHEDULER_WORKERS", 8),

		BackupBucket:          getEnv("SHELFOPS_BACKUP_BUCKET", ""),
		BackupRegion:          getEnv("SHELFOPS_BACKUP_REGION", "auto"),
		BackupEndpoint:        getEnv("SHELFOPS_BACKUP_ENDPOINT", ""),
		BackupAccessKeyID:     getEnv("SHELFOPS_BACKUP_ACCESS_KEY_ID", ""),
		BackupSecretAccessKey: getEnv("SHELFOPS_BACKUP_SECRET_ACCESS_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and
// internally consistent. It fails fast rather than letting a
// misconfigured value surface later as a confusing database or
// adapter error.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data directory is required")
	}
	if c.SchedulerWorkers <= 0 {
		return fmt.Errorf("config: scheduler worker pool size must be positive, got %d", c.SchedulerWorkers)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unrecognized log level %q", c.LogLevel)
	}
	return nil
}

// DBPath returns the absolute path of the named physical database
// file (one of "core", "facts", "ledger", "models", "alerts", "sync").
func (c *Config) DBPath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", abs, err)
	}
	return abs, nil
}

// ==========================================
// Helper Functions
// ==========================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
