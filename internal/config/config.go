package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds all configuration for the API server
type AppConfig struct {
	Server  ServerSettings  `yaml:"server"`
	Influx  InfluxSettings  `yaml:"influxdb"`
	Storage StorageSettings `yaml:"storage"`
	Archive ArchiveSettings `yaml:"archive"`
	Demo    DemoSettings    `yaml:"demo"`
	Logging LoggingConfig   `yaml:"logging"`
}

// ServerSettings contains HTTP server configuration
type ServerSettings struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	BasePath       string        `yaml:"base_path"`
	APIKey         string        `yaml:"api_key"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// InfluxSettings contains the durable time-series store connection.
// An empty token means the server runs without a durable store and
// serves everything from the in-memory fallback.
type InfluxSettings struct {
	URL         string        `yaml:"url"`
	Token       string        `yaml:"token"`
	Org         string        `yaml:"org"`
	Bucket      string        `yaml:"bucket"`
	Measurement string        `yaml:"measurement"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Configured reports whether durable store credentials were supplied.
func (is InfluxSettings) Configured() bool {
	return is.Token != ""
}

// StorageSettings contains the in-memory fallback store configuration
type StorageSettings struct {
	BufferSize int `yaml:"buffer_size"`
}

// ArchiveSettings contains the optional local SQLite archive configuration
type ArchiveSettings struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	BatchSize     int           `yaml:"batch_size"`
	FlushPeriod   time.Duration `yaml:"flush_period"`
	ChannelSize   int           `yaml:"channel_size"`
	RetentionDays int           `yaml:"retention_days"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
}

// DemoSettings bounds the demo data generator
type DemoSettings struct {
	DefaultCount int `yaml:"default_count"`
	MaxCount     int `yaml:"max_count"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadAppConfig loads configuration from a YAML file. A missing file is not
// an error: the server can be configured entirely from environment
// variables, so defaults plus env overrides apply.
func LoadAppConfig(path string) (*AppConfig, error) {
	var config AppConfig

	yamlData, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(yamlData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.ApplyDefaults()
	config.OverrideFromEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyDefaults sets default values for any unset fields
func (ac *AppConfig) ApplyDefaults() {
	if ac.Server.Port == 0 {
		ac.Server.Port = 3000
	}
	if ac.Server.BasePath == "" {
		ac.Server.BasePath = "/api"
	}
	if ac.Server.ReadTimeout == 0 {
		ac.Server.ReadTimeout = 60 * time.Second
	}
	if ac.Server.WriteTimeout == 0 {
		ac.Server.WriteTimeout = 30 * time.Second
	}
	if ac.Influx.URL == "" {
		ac.Influx.URL = "http://localhost:8086"
	}
	if ac.Influx.Org == "" {
		ac.Influx.Org = "cheesense"
	}
	if ac.Influx.Bucket == "" {
		ac.Influx.Bucket = "cheesense_db"
	}
	if ac.Influx.Measurement == "" {
		ac.Influx.Measurement = "spectral_data"
	}
	if ac.Influx.Timeout == 0 {
		ac.Influx.Timeout = 5 * time.Second
	}
	if ac.Storage.BufferSize == 0 {
		ac.Storage.BufferSize = 1000
	}
	if ac.Archive.Path == "" {
		ac.Archive.Path = "./data/cheesense.db"
	}
	if ac.Archive.BatchSize == 0 {
		ac.Archive.BatchSize = 100
	}
	if ac.Archive.FlushPeriod == 0 {
		ac.Archive.FlushPeriod = 5 * time.Second
	}
	if ac.Archive.ChannelSize == 0 {
		ac.Archive.ChannelSize = 1000
	}
	if ac.Archive.RetentionDays == 0 {
		ac.Archive.RetentionDays = 30
	}
	if ac.Archive.CleanupPeriod == 0 {
		ac.Archive.CleanupPeriod = 1 * time.Hour
	}
	if ac.Demo.DefaultCount == 0 {
		ac.Demo.DefaultCount = 50
	}
	if ac.Demo.MaxCount == 0 {
		ac.Demo.MaxCount = 200
	}
	if ac.Logging.Level == "" {
		ac.Logging.Level = "info"
	}
	if ac.Logging.Format == "" {
		ac.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (ac *AppConfig) OverrideFromEnv() {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			ac.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		ac.Server.Host = v
	}
	if v := os.Getenv("API_BASE_PATH"); v != "" {
		ac.Server.BasePath = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		ac.Server.APIKey = v
	}
	if v := os.Getenv("INFLUXDB_URL"); v != "" {
		ac.Influx.URL = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		ac.Influx.Token = v
	}
	if v := os.Getenv("INFLUXDB_ORG"); v != "" {
		ac.Influx.Org = v
	}
	if v := os.Getenv("INFLUXDB_BUCKET"); v != "" {
		ac.Influx.Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		ac.Logging.Level = v
	}
}

// Validate checks if the configuration is valid
func (ac *AppConfig) Validate() error {
	if ac.Server.Port < 1 || ac.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if ac.Storage.BufferSize < 10 {
		return fmt.Errorf("buffer size must be at least 10")
	}
	if ac.Influx.Timeout < time.Second {
		return fmt.Errorf("influxdb timeout must be at least 1 second")
	}
	if ac.Demo.MaxCount < 1 {
		return fmt.Errorf("demo max count must be at least 1")
	}
	if ac.Archive.Enabled && ac.Archive.Path == "" {
		return fmt.Errorf("archive path is required when archive is enabled")
	}
	return nil
}

// String returns a safe string representation (hides secrets)
func (ac *AppConfig) String() string {
	return fmt.Sprintf("AppConfig{Server: [Host=%s, Port=%d, BasePath=%s, APIKey=%s], Influx: [URL=%s, Org=%s, Bucket=%s, Token=%s], Storage: %+v, Archive: %+v, Demo: %+v, Logging: %+v}",
		ac.Server.Host,
		ac.Server.Port,
		ac.Server.BasePath,
		maskSecret(ac.Server.APIKey),
		ac.Influx.URL,
		ac.Influx.Org,
		ac.Influx.Bucket,
		maskSecret(ac.Influx.Token),
		ac.Storage,
		ac.Archive,
		ac.Demo,
		ac.Logging,
	)
}

// maskSecret masks all but the first 4 characters of a secret
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
