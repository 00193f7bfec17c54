package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
app:
  name: staybook
  environment: test
database:
  path: "data/test.db"
auth:
  jwt_secret: "0123456789abcdef0123"
payments:
  frontend_url: "https://app.example.com/"
  secret_key: "${TEST_STRIPE_KEY}"
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_STRIPE_KEY", "sk_test_123")
	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk_test_123", cfg.Payments.SecretKey)
	assert.Equal(t, "https://app.example.com", cfg.Payments.FrontendURL)
	assert.Equal(t, "web", cfg.Payments.AppType)
	assert.Equal(t, "usd", cfg.Payments.Currency)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.LoginAttempts)
	assert.Equal(t, "data/uploads", cfg.Storage.UploadDir)
	assert.False(t, cfg.App.IsDevelopment())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STAYBOOK_HTTP__PORT", "9999")
	t.Setenv("STAYBOOK_PAYMENTS__WEBHOOK_SECRET", "whsec_env")
	t.Setenv("STAYBOOK_AUTH__TOKEN_TTL", "2h")
	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.HTTP.Port)
	assert.Equal(t, "whsec_env", cfg.Payments.WebhookSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "data/test.db", cfg.Database.Path)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			App:      AppConfig{Environment: "test"},
			HTTP:     HTTPConfig{Port: 8080},
			Database: DatabaseConfig{Path: "path"},
			Auth:     AuthConfig{JWTSecret: "0123456789abcdef"},
			Payments: PaymentsConfig{FrontendURL: "https://example.com", AppType: "web", Currency: "usd"},
			Storage:  StorageConfig{UploadDir: "uploads"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "short jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, wantErr: true},
		{name: "unknown app type", mutate: func(c *Config) { c.Payments.AppType = "desktop" }, wantErr: true},
		{name: "mobile without scheme", mutate: func(c *Config) { c.Payments.AppType = "mobile" }, wantErr: true},
		{
			name: "mobile with scheme",
			mutate: func(c *Config) {
				c.Payments.AppType = "mobile"
				c.Payments.MobileScheme = "staybook"
			},
		},
		{name: "bad frontend url", mutate: func(c *Config) { c.Payments.FrontendURL = "not a url" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
