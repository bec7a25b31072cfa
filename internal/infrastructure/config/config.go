package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Matrix Gate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Matrix    MatrixConfig    `yaml:"matrix"`
	Security  SecurityConfig  `yaml:"security"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MatrixConfig contains matrix device link settings.
type MatrixConfig struct {
	// Host is the matrix device address.
	Host string `yaml:"host"`

	// Port is the device's control port.
	Port int `yaml:"port"`

	// ConnectTimeout is the maximum time to wait for the TCP dial (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// SendTimeout is the per-attempt response window for a command (milliseconds).
	SendTimeout int `yaml:"send_timeout"`

	// MaxRetries is the number of send attempts before giving up.
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the fixed delay between send attempts (milliseconds).
	RetryBackoff int `yaml:"retry_backoff"`

	// ReconnectCooldown is the minimum spacing between real connection
	// attempts (seconds). Attempts inside the window are refused locally.
	ReconnectCooldown int `yaml:"reconnect_cooldown"`

	// StatusCacheTTL is how long a routing snapshot stays fresh (seconds).
	StatusCacheTTL int `yaml:"status_cache_ttl"`
}

// SecurityConfig contains authentication and lockout settings.
type SecurityConfig struct {
	// EnableAuth gates the whole access-control layer. When false every
	// request is allowed. Only sensible on an isolated management LAN.
	EnableAuth bool `yaml:"enable_auth"`

	// MaxLoginAttempts is the failure count that triggers a lockout.
	MaxLoginAttempts int `yaml:"max_login_attempts"`

	// LockoutTime is how long a (address, username) pair stays locked (seconds).
	LockoutTime int `yaml:"lockout_time"`

	// SessionTTL is the session idle expiry (seconds).
	SessionTTL int `yaml:"session_ttl"`

	// AllowedIPs restricts login to these addresses or CIDR ranges.
	// Empty list allows all.
	AllowedIPs []string `yaml:"allowed_ips"`

	// Accounts is the immutable account table for this process lifetime.
	Accounts []AccountConfig `yaml:"accounts"`
}

// AccountConfig describes one account in the credential table.
type AccountConfig struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Role         string   `yaml:"role"`
	Permissions  []string `yaml:"permissions"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	TLS       TLSConfig        `yaml:"tls"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
}

// RateLimitConfig throttles requests per client address across the
// whole API surface.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker integration is optional; routing events are simply not
// published when disabled.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig contains SQLite database settings for the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MATRIXGATE_SECTION_KEY
// For example: MATRIXGATE_MATRIX_HOST, MATRIXGATE_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Matrix: MatrixConfig{
			Port:              23,
			ConnectTimeout:    5,
			SendTimeout:       1500,
			MaxRetries:        3,
			RetryBackoff:      1000,
			ReconnectCooldown: 5,
			StatusCacheTTL:    5,
		},
		Security: SecurityConfig{
			EnableAuth:       true,
			MaxLoginAttempts: 5,
			LockoutTime:      900,
			SessionTTL:       3600,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   54,
			PongTimeout:    60,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "matrix-gate",
			},
			QoS: 1,
		},
		Database: DatabaseConfig{
			Path:        "./data/matrixgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MATRIXGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Matrix device
	if v := os.Getenv("MATRIXGATE_MATRIX_HOST"); v != "" {
		cfg.Matrix.Host = v
	}
	if v := os.Getenv("MATRIXGATE_MATRIX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Matrix.Port = port
		}
	}

	// API
	if v := os.Getenv("MATRIXGATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("MATRIXGATE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Database
	if v := os.Getenv("MATRIXGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("MATRIXGATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MATRIXGATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MATRIXGATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Matrix link validation
	if c.Matrix.Host == "" {
		errs = append(errs, "matrix.host is required")
	}
	if c.Matrix.Port < 1 || c.Matrix.Port > 65535 {
		errs = append(errs, "matrix.port must be between 1 and 65535")
	}
	if c.Matrix.MaxRetries < 1 {
		errs = append(errs, "matrix.max_retries must be at least 1")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.RateLimit.Enabled {
		if c.API.RateLimit.RequestsPerMinute < 1 {
			errs = append(errs, "api.rate_limit.requests_per_minute must be at least 1")
		}
		if c.API.RateLimit.Burst < 1 {
			errs = append(errs, "api.rate_limit.burst must be at least 1")
		}
	}

	// WebSocket validation. The ping interval must fit inside the pong
	// deadline or healthy clients get dropped between pings.
	if c.WebSocket.PingInterval > 0 && c.WebSocket.PongTimeout > 0 &&
		c.WebSocket.PingInterval >= c.WebSocket.PongTimeout {
		errs = append(errs, "websocket.ping_interval must be less than websocket.pong_timeout")
	}

	// Security validation. An empty account table with auth enabled is a
	// bricked deployment: nobody can ever log in to reach the matrix.
	if c.Security.EnableAuth && len(c.Security.Accounts) == 0 {
		errs = append(errs, "security.accounts must not be empty when security.enable_auth is true")
	}
	for i, acc := range c.Security.Accounts {
		if acc.Username == "" {
			errs = append(errs, fmt.Sprintf("security.accounts[%d].username is required", i))
		}
		if acc.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("security.accounts[%d].password_hash is required", i))
		}
	}
	if c.Security.MaxLoginAttempts < 1 {
		errs = append(errs, "security.max_login_attempts must be at least 1")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DeviceAddress returns the matrix device address as host:port.
func (c *Config) DeviceAddress() string {
	return fmt.Sprintf("%s:%d", c.Matrix.Host, c.Matrix.Port)
}

// GetConnectTimeout returns the matrix connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Matrix.ConnectTimeout) * time.Second
}

// GetSendTimeout returns the matrix per-attempt send timeout as a Duration.
func (c *Config) GetSendTimeout() time.Duration {
	return time.Duration(c.Matrix.SendTimeout) * time.Millisecond
}

// GetRetryBackoff returns the delay between send attempts as a Duration.
func (c *Config) GetRetryBackoff() time.Duration {
	return time.Duration(c.Matrix.RetryBackoff) * time.Millisecond
}

// GetReconnectCooldown returns the reconnect rate limit window as a Duration.
func (c *Config) GetReconnectCooldown() time.Duration {
	return time.Duration(c.Matrix.ReconnectCooldown) * time.Second
}

// GetStatusCacheTTL returns the routing snapshot freshness window as a Duration.
func (c *Config) GetStatusCacheTTL() time.Duration {
	return time.Duration(c.Matrix.StatusCacheTTL) * time.Second
}

// GetLockoutTime returns the lockout duration as a Duration.
func (c *Config) GetLockoutTime() time.Duration {
	return time.Duration(c.Security.LockoutTime) * time.Second
}

// GetSessionTTL returns the session idle expiry as a Duration.
func (c *Config) GetSessionTTL() time.Duration {
	return time.Duration(c.Security.SessionTTL) * time.Second
}

// GetPingInterval returns the WebSocket ping interval as a Duration.
func (c *Config) GetPingInterval() time.Duration {
	return time.Duration(c.WebSocket.PingInterval) * time.Second
}

// GetPongTimeout returns the WebSocket pong deadline as a Duration.
func (c *Config) GetPongTimeout() time.Duration {
	return time.Duration(c.WebSocket.PongTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
