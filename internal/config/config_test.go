package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "round-robin", cfg.Gateway.Strategy)
	assert.Equal(t, 30*time.Second, cfg.Gateway.HealthCheck.Interval)
	assert.Equal(t, 5*time.Second, cfg.Gateway.HealthCheck.Timeout)
	assert.Equal(t, 3, cfg.Gateway.HealthCheck.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Gateway.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.Gateway.OwnerCacheTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CONFIG_FILE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "postgres://gw:gw@localhost:5432/gateway")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORT", "8080")
	t.Setenv("VK_SECRET", "probe-secret")
	t.Setenv("LOAD_BALANCER_STRATEGY", "least-connections")
	t.Setenv("HEALTH_CHECK_INTERVAL", "10")
	t.Setenv("HEALTH_CHECK_TIMEOUT", "2")
	t.Setenv("FAILURE_THRESHOLD", "5")
	t.Setenv("REFRESH_INTERVAL", "120")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://vk.example.com, https://admin.example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://gw:gw@localhost:5432/gateway", cfg.Gateway.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Gateway.RedisURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "probe-secret", cfg.Gateway.Secret)
	assert.Equal(t, "least-connections", cfg.Gateway.Strategy)
	assert.Equal(t, 10*time.Second, cfg.Gateway.HealthCheck.Interval)
	assert.Equal(t, 2*time.Second, cfg.Gateway.HealthCheck.Timeout)
	assert.Equal(t, 5, cfg.Gateway.HealthCheck.FailureThreshold)
	assert.Equal(t, 120*time.Second, cfg.Gateway.RefreshInterval)
	assert.Equal(t, []string{"https://vk.example.com", "https://admin.example.com"}, cfg.Gateway.CORSOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfigFile(t *testing.T) {
	content := `
server:
  port: 9090
gateway:
  database_url: postgres://gw:gw@db:5432/gateway
  strategy: weighted-round-robin
  provider_weights:
    supabase: 3
    gdrive: 1
  health_check:
    interval: 15s
    timeout: 3s
`
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "weighted-round-robin", cfg.Gateway.Strategy)
	assert.Equal(t, map[string]int{"supabase": 3, "gdrive": 1}, cfg.Gateway.ProviderWeights)
	assert.Equal(t, 15*time.Second, cfg.Gateway.HealthCheck.Interval)
	assert.Equal(t, 3*time.Second, cfg.Gateway.HealthCheck.Timeout)
	// Defaults survive where the file is silent.
	assert.Equal(t, 3, cfg.Gateway.HealthCheck.FailureThreshold)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	content := `
gateway:
  database_url: postgres://file:file@db:5432/gateway
  strategy: random
`
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOAD_BALANCER_STRATEGY", "least-connections")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://file:file@db:5432/gateway", cfg.Gateway.DatabaseURL)
	assert.Equal(t, "least-connections", cfg.Gateway.Strategy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.Gateway.DatabaseURL = "" },
			wantErr: "database_url",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid port",
		},
		{
			name:    "timeout not shorter than interval",
			mutate:  func(c *Config) { c.Gateway.HealthCheck.Timeout = c.Gateway.HealthCheck.Interval },
			wantErr: "shorter than",
		},
		{
			name:    "non-positive threshold",
			mutate:  func(c *Config) { c.Gateway.HealthCheck.FailureThreshold = 0 },
			wantErr: "failure_threshold",
		},
		{
			name:    "non-positive refresh interval",
			mutate:  func(c *Config) { c.Gateway.RefreshInterval = 0 },
			wantErr: "refresh_interval",
		},
		{
			name:    "non-positive provider weight",
			mutate:  func(c *Config) { c.Gateway.ProviderWeights = map[string]int{"supabase": 0} },
			wantErr: "provider_weights",
		},
		{
			// The factory falls back to round robin instead.
			name:    "unknown strategy is accepted",
			mutate:  func(c *Config) { c.Gateway.Strategy = "fastest-ever" },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Gateway.DatabaseURL = "postgres://gw:gw@localhost:5432/gateway"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
