package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the sensor unit
type Config struct {
	Sensor   SensorConfig   `yaml:"sensor"`
	Server   ServerConfig   `yaml:"server"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Storage  StorageConfig  `yaml:"storage"`
	TimeSync TimeSyncConfig `yaml:"time_sync"`
	Power    PowerConfig    `yaml:"power"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SensorConfig contains sensor identity and sampling settings
type SensorConfig struct {
	ID             string        `yaml:"id"`
	SetID          string        `yaml:"set_id"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// ServerConfig contains connection settings for the remote collector.
// URL scheme selects the transport: http(s) for the ingest API,
// ws(s) for the streaming endpoint.
type ServerConfig struct {
	URL             string        `yaml:"url"`
	AuthToken       string        `yaml:"auth_token"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
}

// DeliveryConfig contains settings for the send cycle
type DeliveryConfig struct {
	SendInterval time.Duration `yaml:"send_interval"`
	ChunkSize    int           `yaml:"chunk_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

// StorageConfig contains settings for the durable overflow store
type StorageConfig struct {
	Path       string `yaml:"path"`
	MaxBatches int    `yaml:"max_batches"`
}

// TimeSyncConfig contains NTP settings
type TimeSyncConfig struct {
	Server         string        `yaml:"server"`
	ResyncInterval time.Duration `yaml:"resync_interval"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// PowerConfig contains power management settings. Mode "low" tears the
// network down between send cycles and allows night deep sleep.
type PowerConfig struct {
	Mode           string        `yaml:"mode"`
	Timezone       string        `yaml:"timezone"`
	NightStartHour int           `yaml:"night_start_hour"`
	NightEndHour   int           `yaml:"night_end_hour"`
	CheckInterval  time.Duration `yaml:"check_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	config.OverrideFromEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Sensor.SampleInterval == 0 {
		c.Sensor.SampleInterval = 15 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Server.ConnectAttempts == 0 {
		c.Server.ConnectAttempts = 15
	}
	if c.Server.ConnectDelay == 0 {
		c.Server.ConnectDelay = 2 * time.Second
	}
	if c.Delivery.SendInterval == 0 {
		c.Delivery.SendInterval = 5 * time.Minute
	}
	if c.Delivery.ChunkSize == 0 {
		c.Delivery.ChunkSize = 50
	}
	if c.Delivery.MaxAttempts == 0 {
		c.Delivery.MaxAttempts = 3
	}
	if c.Delivery.RetryDelay == 0 {
		c.Delivery.RetryDelay = 5 * time.Second
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "sensor-overflow.db"
	}
	if c.Storage.MaxBatches == 0 {
		c.Storage.MaxBatches = 48
	}
	if c.TimeSync.Server == "" {
		c.TimeSync.Server = "pool.ntp.org"
	}
	if c.TimeSync.ResyncInterval == 0 {
		c.TimeSync.ResyncInterval = time.Hour
	}
	if c.TimeSync.MaxAttempts == 0 {
		c.TimeSync.MaxAttempts = 15
	}
	if c.TimeSync.RetryDelay == 0 {
		c.TimeSync.RetryDelay = 2 * time.Second
	}
	if c.Power.Mode == "" {
		c.Power.Mode = "low"
	}
	if c.Power.Timezone == "" {
		c.Power.Timezone = "UTC"
	}
	if c.Power.NightStartHour == 0 {
		c.Power.NightStartHour = 22
	}
	if c.Power.NightEndHour == 0 {
		c.Power.NightEndHour = 5
	}
	if c.Power.CheckInterval == 0 {
		c.Power.CheckInterval = 30 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (c *Config) OverrideFromEnv() {
	if v := os.Getenv("SENSOR_ID"); v != "" {
		c.Sensor.ID = v
	}
	if v := os.Getenv("SENSOR_SET_ID"); v != "" {
		c.Sensor.SetID = v
	}
	if v := os.Getenv("SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("SERVER_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// BufferCapacity returns the shared reading buffer capacity derived
// from the send and sample intervals. A 5-minute send interval with
// 15-second samples yields 20.
func (c *Config) BufferCapacity() int {
	n := int(c.Delivery.SendInterval / c.Sensor.SampleInterval)
	if n < 1 {
		n = 1
	}
	return n
}

// LowPower reports whether the unit runs in low power mode.
func (c *Config) LowPower() bool {
	return c.Power.Mode == "low"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Sensor.ID == "" {
		return fmt.Errorf("sensor ID is required")
	}
	if c.Sensor.SetID == "" {
		return fmt.Errorf("sensor set ID is required")
	}
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if !strings.HasPrefix(c.Server.URL, "http://") &&
		!strings.HasPrefix(c.Server.URL, "https://") &&
		!strings.HasPrefix(c.Server.URL, "ws://") &&
		!strings.HasPrefix(c.Server.URL, "wss://") {
		return fmt.Errorf("server URL must start with http(s):// or ws(s)://")
	}
	if c.Server.AuthToken == "" {
		return fmt.Errorf("server auth token is required")
	}
	if c.Sensor.SampleInterval < time.Second {
		return fmt.Errorf("sample interval must be at least 1 second")
	}
	if c.Delivery.SendInterval < c.Sensor.SampleInterval {
		return fmt.Errorf("send interval must not be shorter than the sample interval")
	}
	if c.Delivery.ChunkSize < 1 || c.Delivery.ChunkSize > 500 {
		return fmt.Errorf("chunk size must be between 1 and 500")
	}
	if c.Storage.MaxBatches < 1 {
		return fmt.Errorf("max batches must be at least 1")
	}
	if c.Power.Mode != "low" && c.Power.Mode != "high" {
		return fmt.Errorf("power mode must be \"low\" or \"high\"")
	}
	if c.Power.NightStartHour < 0 || c.Power.NightStartHour > 23 ||
		c.Power.NightEndHour < 0 || c.Power.NightEndHour > 23 {
		return fmt.Errorf("night window hours must be between 0 and 23")
	}
	return nil
}

// String returns a safe string representation (hides auth token)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Sensor: %+v, Server: [URL=%s, Token=%s], Delivery: %+v, Storage: %+v, Power: %+v, Logging: %+v}",
		c.Sensor,
		c.Server.URL,
		maskToken(c.Server.AuthToken),
		c.Delivery,
		c.Storage,
		c.Power,
		c.Logging,
	)
}

// maskToken masks all but first 4 characters of a token
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
