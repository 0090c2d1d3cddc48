// Package config loads gateway configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// GatewayConfig contains the load-balancing and backend configuration.
type GatewayConfig struct {
	DatabaseURL     string            `yaml:"database_url"`
	RedisURL        string            `yaml:"redis_url"`
	Strategy        string            `yaml:"strategy"`
	ProviderWeights map[string]int    `yaml:"provider_weights"`
	Secret          string            `yaml:"secret"`
	CORSOrigins     []string          `yaml:"cors_allowed_origins"`
	HealthCheck     HealthCheckConfig `yaml:"health_check"`
	RefreshInterval time.Duration     `yaml:"refresh_interval"`
	OwnerCacheTTL   time.Duration     `yaml:"owner_cache_ttl"`
}

// HealthCheckConfig contains probe configuration.
type HealthCheckConfig struct {
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with the documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Gateway: GatewayConfig{
			Strategy: "round-robin",
			HealthCheck: HealthCheckConfig{
				Interval:         30 * time.Second,
				Timeout:          5 * time.Second,
				FailureThreshold: 3,
			},
			RefreshInterval: 60 * time.Second,
			OwnerCacheTTL:   5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load builds the configuration from defaults, an optional CONFIG_FILE, and
// environment overrides, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Gateway.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Gateway.RedisURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("VK_SECRET"); v != "" {
		c.Gateway.Secret = v
	}
	if v := os.Getenv("LOAD_BALANCER_STRATEGY"); v != "" {
		c.Gateway.Strategy = v
	}
	if v := os.Getenv("HEALTH_CHECK_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Gateway.HealthCheck.Interval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("HEALTH_CHECK_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Gateway.HealthCheck.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Gateway.HealthCheck.FailureThreshold = n
		}
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Gateway.RefreshInterval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Gateway.CORSOrigins = splitOrigins(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func splitOrigins(value string) []string {
	var origins []string
	for _, part := range strings.Split(value, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// Validate checks the configuration for correctness. Unknown strategy names
// are deliberately not rejected here; the factory falls back to round robin.
func (c *Config) Validate() error {
	if c.Gateway.DatabaseURL == "" {
		return fmt.Errorf("database_url must be set (DATABASE_URL)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Gateway.HealthCheck.Interval <= 0 {
		return fmt.Errorf("health_check.interval must be positive")
	}
	if c.Gateway.HealthCheck.Timeout <= 0 {
		return fmt.Errorf("health_check.timeout must be positive")
	}
	if c.Gateway.HealthCheck.Timeout >= c.Gateway.HealthCheck.Interval {
		return fmt.Errorf("health_check.timeout must be shorter than health_check.interval")
	}
	if c.Gateway.HealthCheck.FailureThreshold <= 0 {
		return fmt.Errorf("health_check.failure_threshold must be positive")
	}
	if c.Gateway.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}
	for provider, weight := range c.Gateway.ProviderWeights {
		if weight <= 0 {
			return fmt.Errorf("provider_weights[%s] must be positive", provider)
		}
	}
	return nil
}
