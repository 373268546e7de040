// Package config loads daemon settings from defaults, an optional YAML
// file, a .env file and TABFLOW_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/domain"
)

// DefaultPort is the local port the extension and popup connect to.
const DefaultPort = 19192

// Config holds all daemon settings.
type Config struct {
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`

	// Classification
	DomainMode        string `yaml:"domain_mode"`
	CacheSize         int    `yaml:"cache_size"`
	CurrentWindowOnly bool   `yaml:"current_window_only"`

	// Timing
	DebounceDelay  time.Duration `yaml:"debounce_delay"`
	SnapshotTTL    time.Duration `yaml:"snapshot_ttl"`
	SyncInterval   time.Duration `yaml:"sync_interval"`
	SaveDelay      time.Duration `yaml:"save_delay"`
	AttachDelay    time.Duration `yaml:"attach_delay"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// Default returns the built-in settings.
func Default() *Config {
	dataDir := dataDir()
	return &Config{
		Port:              DefaultPort,
		DBPath:            filepath.Join(dataDir, "tabflow.db"),
		LogDir:            dataDir,
		LogLevel:          "info",
		DomainMode:        string(domain.ModeHeuristic),
		CacheSize:         domain.DefaultCacheSize,
		CurrentWindowOnly: true,
		DebounceDelay:     500 * time.Millisecond,
		SnapshotTTL:       5 * time.Second,
		SyncInterval:      5 * time.Second,
		SaveDelay:         time.Second,
		AttachDelay:       100 * time.Millisecond,
		CommandTimeout:    5 * time.Second,
	}
}

// DefaultPath returns ~/.config/tabflow/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabflow", "config.yaml")
}

func dataDir() string {
	if dir := os.Getenv("TABFLOW_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "tabflow")
}

// Load builds the configuration. An empty path reads DefaultPath if it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := godotenv.Load(); err != nil {
		applog.Debug("config.dotenv.skip", "error", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvIntOrDefault("TABFLOW_PORT", c.Port)
	c.DBPath = getEnvOrDefault("TABFLOW_DB", c.DBPath)
	c.LogDir = getEnvOrDefault("TABFLOW_LOG_DIR", c.LogDir)
	c.LogLevel = getEnvOrDefault("TABFLOW_LOG_LEVEL", c.LogLevel)
	c.DomainMode = getEnvOrDefault("TABFLOW_DOMAIN_MODE", c.DomainMode)
	c.CacheSize = getEnvIntOrDefault("TABFLOW_CACHE_SIZE", c.CacheSize)
	c.CurrentWindowOnly = getEnvBoolOrDefault("TABFLOW_CURRENT_WINDOW_ONLY", c.CurrentWindowOnly)
	c.DebounceDelay = getEnvDurationOrDefault("TABFLOW_DEBOUNCE", c.DebounceDelay)
	c.SnapshotTTL = getEnvDurationOrDefault("TABFLOW_SNAPSHOT_TTL", c.SnapshotTTL)
	c.SyncInterval = getEnvDurationOrDefault("TABFLOW_SYNC_INTERVAL", c.SyncInterval)
	c.SaveDelay = getEnvDurationOrDefault("TABFLOW_SAVE_DELAY", c.SaveDelay)
	c.AttachDelay = getEnvDurationOrDefault("TABFLOW_ATTACH_DELAY", c.AttachDelay)
	c.CommandTimeout = getEnvDurationOrDefault("TABFLOW_COMMAND_TIMEOUT", c.CommandTimeout)
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db path is empty")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	switch domain.Mode(strings.ToLower(c.DomainMode)) {
	case domain.ModeHeuristic, domain.ModePublicSuffix:
	default:
		return fmt.Errorf("unknown domain mode %q", c.DomainMode)
	}
	for name, d := range map[string]time.Duration{
		"debounce_delay":  c.DebounceDelay,
		"snapshot_ttl":    c.SnapshotTTL,
		"sync_interval":   c.SyncInterval,
		"save_delay":      c.SaveDelay,
		"attach_delay":    c.AttachDelay,
		"command_timeout": c.CommandTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
