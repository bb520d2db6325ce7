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

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 120*time.Second, cfg.Session.RevalidateInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Session.NavigationDelay)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
store:
  driver: redis
  redis_url: redis://localhost:6379/0
session:
  revalidate_interval: 30s
federation:
  redirect_url: https://rp.example.it/auth/federation/callback
  providers:
    - id: spid-test
      issuer_url: https://idp.example.it/
      client_id: https://rp.example.it
      acr_values: https://www.spid.gov.it/SpidL2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Events.RedisURL, "events fall back to the store redis")
	assert.Equal(t, 30*time.Second, cfg.Session.RevalidateInterval)
	assert.Equal(t, "/", cfg.Session.LoginPath, "untouched defaults survive")

	providers := cfg.Providers()
	require.Len(t, providers, 1)
	assert.Equal(t, "https://idp.example.it/authorization", providers[0].AuthURL)
	assert.Equal(t, "https://idp.example.it/token", providers[0].TokenURL)
	assert.Equal(t, []string{"openid", "profile"}, providers[0].Scopes)
	assert.Equal(t, "spid-test", providers[0].Name)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: info
store:
  badger_dir: /var/lib/artcertify
`)
	t.Setenv("ARTCERTIFY_LOG__LEVEL", "debug")
	t.Setenv("ARTCERTIFY_STORE__DRIVER", "badger")
	t.Setenv("ARTCERTIFY_SESSION__NAVIGATION_DELAY", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DriverBadger, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/artcertify", cfg.Store.BadgerDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.NavigationDelay)
	assert.Equal(t, 3, cfg.Session.MaxValidationErrors)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "unknown store driver",
			mutate: func(c *Config) { c.Store.Driver = "etcd" },
			errMsg: `unknown store driver "etcd"`,
		},
		{
			name:   "redis without url",
			mutate: func(c *Config) { c.Store.Driver = DriverRedis },
			errMsg: "store.redis_url is required",
		},
		{
			name:   "unknown events driver",
			mutate: func(c *Config) { c.Events.Driver = "kafka" },
			errMsg: `unknown events driver "kafka"`,
		},
		{
			name:   "non-positive interval",
			mutate: func(c *Config) { c.Session.RevalidateInterval = 0 },
			errMsg: "revalidate_interval must be positive",
		},
		{
			name:   "non-positive validation error limit",
			mutate: func(c *Config) { c.Session.MaxValidationErrors = 0 },
			errMsg: "max_validation_errors must be positive",
		},
		{
			name: "providers without redirect url",
			mutate: func(c *Config) {
				c.Federation.Providers = []ProviderConfig{{ID: "spid", ClientID: "rp", AuthURL: "https://idp", IssuerURL: "https://idp"}}
			},
			errMsg: "federation.redirect_url is required",
		},
		{
			name: "provider without issuer outside simulation",
			mutate: func(c *Config) {
				c.Federation.RedirectURL = "https://rp/callback"
				c.Federation.Providers = []ProviderConfig{{ID: "spid", ClientID: "rp", AuthURL: "https://idp/authorize"}}
			},
			errMsg: "issuer_url is required unless simulate is set",
		},
		{
			name: "duplicate provider",
			mutate: func(c *Config) {
				c.Federation.RedirectURL = "https://rp/callback"
				c.Federation.Simulate = true
				p := ProviderConfig{ID: "spid", ClientID: "rp", AuthURL: "https://idp/authorize"}
				c.Federation.Providers = []ProviderConfig{p, p}
			},
			errMsg: `duplicate federation provider "spid"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("simulated provider", func(t *testing.T) {
		cfg := Default()
		cfg.Federation.RedirectURL = "https://rp/callback"
		cfg.Federation.Simulate = true
		cfg.Federation.Providers = []ProviderConfig{{ID: "spid", ClientID: "rp", AuthURL: "https://idp/authorize"}}
		assert.NoError(t, cfg.Validate())
	})
}
