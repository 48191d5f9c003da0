package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from SURVEYS_* variables.
// Empty paths are derived from DataDir.
type Config struct {
	DataDir        string        `env:"SURVEYS_DATA_DIR"`
	DBPath         string        `env:"SURVEYS_DB_PATH"`
	DefinitionsDir string        `env:"SURVEYS_DEFINITIONS_DIR"`
	ExportConfig   string        `env:"SURVEYS_EXPORT_CONFIG"`
	DraftRetention time.Duration `env:"SURVEYS_DRAFT_RETENTION" envDefault:"168h"`
	JanitorEvery   string        `env:"SURVEYS_JANITOR_SCHEDULE" envDefault:"@every 1h"`
	AnswerLogLimit int           `env:"SURVEYS_ANSWER_LOG_LIMIT" envDefault:"200"`
	WatchDefs      bool          `env:"SURVEYS_WATCH_DEFINITIONS" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and fills in derived paths.
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".local", "share", "surveys")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "surveys.db")
	}
	if cfg.DefinitionsDir == "" {
		cfg.DefinitionsDir = filepath.Join(cfg.DataDir, "definitions")
	}
	if cfg.DraftRetention < time.Hour {
		return nil, fmt.Errorf("SURVEYS_DRAFT_RETENTION must be at least 1h, got %s", cfg.DraftRetention)
	}
	return &cfg, nil
}
