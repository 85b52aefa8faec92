package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SimulatorConfig holds all configuration for the device simulator
type SimulatorConfig struct {
	Sensor  SimSensorSettings `yaml:"sensor"`
	Target  TargetSettings    `yaml:"target"`
	Buffer  BufferSettings    `yaml:"buffer"`
	Logging LoggingConfig     `yaml:"logging"`
}

// SimSensorSettings describes the simulated device
type SimSensorSettings struct {
	ID       string        `yaml:"id"`
	Interval time.Duration `yaml:"interval"`
}

// TargetSettings contains connection settings for the ingestion API
type TargetSettings struct {
	RecordURL        string        `yaml:"record_url"`
	APIKey           string        `yaml:"api_key"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	RetryInterval    time.Duration `yaml:"retry_interval"`
	MaxRetryInterval time.Duration `yaml:"max_retry_interval"`
}

// BufferSettings contains settings for the local sample buffer
type BufferSettings struct {
	Size int `yaml:"size"`
}

// LoadSimulatorConfig loads simulator configuration from a YAML file
func LoadSimulatorConfig(path string) (*SimulatorConfig, error) {
	var config SimulatorConfig

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
func (sc *SimulatorConfig) ApplyDefaults() {
	if sc.Sensor.ID == "" {
		sc.Sensor.ID = "cheesense_sim"
	}
	if sc.Sensor.Interval == 0 {
		sc.Sensor.Interval = 10 * time.Second
	}
	if sc.Target.RecordURL == "" {
		sc.Target.RecordURL = "http://localhost:3000/api/record"
	}
	if sc.Target.RequestTimeout == 0 {
		sc.Target.RequestTimeout = 10 * time.Second
	}
	if sc.Target.RetryInterval == 0 {
		sc.Target.RetryInterval = 1 * time.Second
	}
	if sc.Target.MaxRetryInterval == 0 {
		sc.Target.MaxRetryInterval = 5 * time.Minute
	}
	if sc.Buffer.Size == 0 {
		sc.Buffer.Size = 1000
	}
	if sc.Logging.Level == "" {
		sc.Logging.Level = "info"
	}
	if sc.Logging.Format == "" {
		sc.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (sc *SimulatorConfig) OverrideFromEnv() {
	if v := os.Getenv("SENSOR_ID"); v != "" {
		sc.Sensor.ID = v
	}
	if v := os.Getenv("RECORD_URL"); v != "" {
		sc.Target.RecordURL = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		sc.Target.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		sc.Logging.Level = v
	}
}

// Validate checks if the configuration is valid
func (sc *SimulatorConfig) Validate() error {
	if sc.Sensor.ID == "" {
		return fmt.Errorf("sensor ID is required")
	}
	if sc.Sensor.Interval < time.Second {
		return fmt.Errorf("sensor interval must be at least 1 second")
	}
	if sc.Target.RecordURL == "" {
		return fmt.Errorf("record URL is required")
	}
	if sc.Buffer.Size < 10 || sc.Buffer.Size > 100000 {
		return fmt.Errorf("buffer size must be between 10 and 100000")
	}
	return nil
}

// String returns a safe string representation (hides the API key)
func (sc *SimulatorConfig) String() string {
	return fmt.Sprintf("SimulatorConfig{Sensor: %+v, Target: [URL=%s, APIKey=%s], Buffer: %+v, Logging: %+v}",
		sc.Sensor,
		sc.Target.RecordURL,
		maskSecret(sc.Target.APIKey),
		sc.Buffer,
		sc.Logging,
	)
}
