// Package config loads trackmend settings from defaults, an optional YAML
// file, and TM_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/trackmend/internal/filesystem"
	"github.com/sydlexius/trackmend/internal/logging"
	"github.com/sydlexius/trackmend/internal/webhook"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Music    MusicConfig    `yaml:"music"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Matching MatchingConfig `yaml:"matching"`
	Logging  logging.Config `yaml:"logging"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path                string        `yaml:"path"`
	BackupDir           string        `yaml:"backup_dir"`
	BackupRetention     int           `yaml:"backup_retention"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// MusicConfig holds library location settings.
type MusicConfig struct {
	LibraryPath    string `yaml:"library_path"`
	QuarantinePath string `yaml:"quarantine_path"`
}

// ScannerConfig holds library scan settings.
type ScannerConfig struct {
	Workers      int           `yaml:"workers"`
	Extensions   []string      `yaml:"extensions"`
	Watch        bool          `yaml:"watch"`
	Debounce     time.Duration `yaml:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// MatchingConfig holds matcher settings.
type MatchingConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	LockDir string `yaml:"lock_dir"`
}

// WebhooksConfig holds outbound notification endpoints and the inbound
// Lidarr trigger.
type WebhooksConfig struct {
	Outbound    []webhook.Webhook `yaml:"outbound"`
	LidarrToken string            `yaml:"lidarr_token"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BasePath: "/",
		},
		Database: DatabaseConfig{
			Path:                "/data/trackmend.db",
			BackupRetention:     5,
			MaintenanceInterval: 24 * time.Hour,
		},
		Music: MusicConfig{
			LibraryPath: "/music",
		},
		Scanner: ScannerConfig{
			Workers:      4,
			Watch:        false,
			Debounce:     5 * time.Second,
			PollInterval: 15 * time.Minute,
		},
		Matching: MatchingConfig{
			MinConfidence: 0.70,
		},
		Logging: logging.DefaultConfig(),
		Jobs: JobsConfig{
			LockDir: "/data/locks",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	setString(&c.Server.Host, "TM_HOST")
	setString(&c.Server.BasePath, "TM_BASE_PATH")
	setString(&c.Database.Path, "TM_DB_PATH")
	setString(&c.Database.BackupDir, "TM_BACKUP_DIR")
	setString(&c.Music.LibraryPath, "TM_MUSIC_PATH")
	setString(&c.Music.QuarantinePath, "TM_QUARANTINE_PATH")
	setString(&c.Logging.Level, "TM_LOG_LEVEL")
	setString(&c.Logging.Format, "TM_LOG_FORMAT")
	setString(&c.Logging.FilePath, "TM_LOG_FILE")
	setString(&c.Jobs.LockDir, "TM_LOCK_DIR")
	setString(&c.Webhooks.LidarrToken, "TM_LIDARR_TOKEN")

	if v := os.Getenv("TM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TM_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("TM_SCAN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TM_SCAN_WORKERS: %w", err)
		}
		c.Scanner.Workers = n
	}
	if v := os.Getenv("TM_SCAN_EXTENSIONS"); v != "" {
		c.Scanner.Extensions = splitList(v)
	}
	if v := os.Getenv("TM_WATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TM_WATCH: %w", err)
		}
		c.Scanner.Watch = b
	}
	if v := os.Getenv("TM_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TM_MIN_CONFIDENCE: %w", err)
		}
		c.Matching.MinConfidence = f
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.BackupDir == "" {
		c.Database.BackupDir = filepath.Join(filepath.Dir(c.Database.Path), "backups")
	}
	if c.Database.BackupRetention < 0 {
		return fmt.Errorf("backup retention must not be negative, got %d", c.Database.BackupRetention)
	}
	if c.Database.MaintenanceInterval < 0 {
		return fmt.Errorf("maintenance interval must not be negative, got %s", c.Database.MaintenanceInterval)
	}
	if c.Music.LibraryPath == "" {
		return fmt.Errorf("music library path is required")
	}
	c.Music.LibraryPath = filepath.Clean(c.Music.LibraryPath)
	if q := c.Music.QuarantinePath; q != "" {
		q = filepath.Clean(q)
		if filesystem.Within(c.Music.LibraryPath, q) {
			return fmt.Errorf("quarantine path %q must be outside the library path %q", q, c.Music.LibraryPath)
		}
		c.Music.QuarantinePath = q
	}
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scanner workers must be at least 1, got %d", c.Scanner.Workers)
	}
	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be between 0 and 1, got %g", c.Matching.MinConfidence)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	for i := range c.Webhooks.Outbound {
		if err := c.Webhooks.Outbound[i].Validate(); err != nil {
			return err
		}
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
