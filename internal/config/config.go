package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Backup   BackupConfig   `yaml:"backup"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains replica database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig contains remote backend settings.
type RemoteConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"-"` // env-only, never in YAML
	Timeout Duration `yaml:"timeout"`
}

// SyncConfig contains sync coordinator settings.
type SyncConfig struct {
	Interval            Duration `yaml:"interval"`
	InitialDelay        Duration `yaml:"initial_delay"`
	Privileged          bool     `yaml:"privileged"`
	MaxRejectedAttempts int      `yaml:"max_rejected_attempts"`
	StartOnline         bool     `yaml:"start_online"`
}

// BackupConfig contains S3-compatible replica backup settings.
// An empty bucket disables backups.
type BackupConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	Bucket    string   `yaml:"bucket"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool    `yaml:"use_ssl"`
	Interval  Duration `yaml:"interval"`
	URLExpiry Duration `yaml:"url_expiry"`
	DeviceID  string   `yaml:"device_id"`
}

// AuthConfig contains the pre-shared key for admin API routes.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("SHOPSYNC_CONFIG_PATH", "config/shopsync.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/shopsync.db",
		},
		Remote: RemoteConfig{
			Timeout: Duration(10 * time.Second),
		},
		Sync: SyncConfig{
			Interval:            Duration(30 * time.Second),
			InitialDelay:        Duration(5 * time.Second),
			MaxRejectedAttempts: 5,
			StartOnline:         true,
		},
		Backup: BackupConfig{
			Interval:  Duration(1 * time.Hour),
			URLExpiry: Duration(15 * time.Minute),
			DeviceID:  "default",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("SHOPSYNC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SHOPSYNC_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SHOPSYNC_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SHOPSYNC_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("SHOPSYNC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Remote backend
	if v := os.Getenv("SHOPSYNC_REMOTE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("SHOPSYNC_REMOTE_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("SHOPSYNC_REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Remote.Timeout = Duration(d)
		}
	}

	// Sync
	if v := os.Getenv("SHOPSYNC_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = Duration(d)
		}
	}
	if v := os.Getenv("SHOPSYNC_SYNC_INITIAL_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.InitialDelay = Duration(d)
		}
	}
	if v := os.Getenv("SHOPSYNC_SYNC_PRIVILEGED"); v != "" {
		cfg.Sync.Privileged = v == "true" || v == "1"
	}
	if v := os.Getenv("SHOPSYNC_SYNC_MAX_REJECTED_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.MaxRejectedAttempts = n
		}
	}
	if v := os.Getenv("SHOPSYNC_SYNC_START_ONLINE"); v != "" {
		cfg.Sync.StartOnline = v == "true" || v == "1"
	}

	// Backup
	if v := os.Getenv("SHOPSYNC_BACKUP_ENDPOINT"); v != "" {
		cfg.Backup.Endpoint = v
	}
	if v := os.Getenv("SHOPSYNC_BACKUP_BUCKET"); v != "" {
		cfg.Backup.Bucket = v
	}
	if v := os.Getenv("SHOPSYNC_BACKUP_REGION"); v != "" {
		cfg.Backup.Region = v
	}
	if v := os.Getenv("SHOPSYNC_BACKUP_ACCESS_KEY"); v != "" {
		cfg.Backup.AccessKey = v
	}
	if v := os.Getenv("SHOPSYNC_BACKUP_SECRET_KEY"); v != "" {
		cfg.Backup.SecretKey = v
	}
	if v := os.Getenv("SHOPSYNC_BACKUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backup.Interval = Duration(d)
		}
	}
	if v := os.Getenv("SHOPSYNC_DEVICE_ID"); v != "" {
		cfg.Backup.DeviceID = v
	}

	// Auth
	if v := os.Getenv("SHOPSYNC_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Log
	if v := os.Getenv("SHOPSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SHOPSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (SHOPSYNC_DEV_MODE=true), key validation is skipped.
func (c *Config) validate() error {
	if os.Getenv("SHOPSYNC_DEV_MODE") == "true" {
		return nil
	}

	if c.Remote.BaseURL == "" {
		return errors.New("SHOPSYNC_REMOTE_URL is required")
	}
	if c.Auth.APIKey == "" {
		return errors.New("SHOPSYNC_API_KEY is required")
	}
	if c.Backup.Bucket != "" {
		if c.Backup.Endpoint == "" {
			return errors.New("backup endpoint is required when a bucket is configured")
		}
		if c.Backup.AccessKey == "" || c.Backup.SecretKey == "" {
			return errors.New("SHOPSYNC_BACKUP_ACCESS_KEY and SHOPSYNC_BACKUP_SECRET_KEY are required when a bucket is configured")
		}
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
