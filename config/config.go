// Package config loads the service configuration.
//
// Sources are applied in order, later ones overriding earlier ones:
// built-in defaults, a YAML file, then ARTCERTIFY_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the environment variable prefix.
// A double underscore separates levels: ARTCERTIFY_STORE__REDIS_URL sets store.redis_url.
const EnvPrefix = "ARTCERTIFY_"

// Store drivers
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverBadger = "badger"
)

// Config is the complete service configuration
type Config struct {
	HTTP       HTTPConfig       `koanf:"http"`
	Log        LogConfig        `koanf:"log"`
	Store      StoreConfig      `koanf:"store"`
	Events     EventsConfig     `koanf:"events"`
	Session    SessionConfig    `koanf:"session"`
	Federation FederationConfig `koanf:"federation"`
}

// HTTPConfig configures the login surface listener
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures the logrus backend
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or text
}

// StoreConfig selects and configures the key-value store
type StoreConfig struct {
	Driver    string `koanf:"driver"`
	RedisURL  string `koanf:"redis_url"`
	Prefix    string `koanf:"prefix"`
	BadgerDir string `koanf:"badger_dir"`
}

// EventsConfig selects the notification transport
type EventsConfig struct {
	Driver   string `koanf:"driver"` // memory or redis
	RedisURL string `koanf:"redis_url"`
}

// SessionConfig holds session timings and credential settings
type SessionConfig struct {
	RevalidateInterval time.Duration `koanf:"revalidate_interval"`
	NavigationDelay    time.Duration `koanf:"navigation_delay"`
	LoginPath          string        `koanf:"login_path"`
	CredentialTTL      time.Duration `koanf:"credential_ttl"`
	SigningKeyFile     string        `koanf:"signing_key_file"` // PEM EC key; empty generates one per process

	// consecutive validator errors during revalidation that end the session
	MaxValidationErrors int `koanf:"max_validation_errors"`
}

// FederationConfig configures federated login
type FederationConfig struct {
	RedirectURL string           `koanf:"redirect_url"`
	Simulate    bool             `koanf:"simulate"`
	Providers   []ProviderConfig `koanf:"providers"`
}

// ProviderConfig describes one identity provider
type ProviderConfig struct {
	ID           string   `koanf:"id"`
	Name         string   `koanf:"name"`
	IssuerURL    string   `koanf:"issuer_url"`
	AuthURL      string   `koanf:"auth_url"`
	TokenURL     string   `koanf:"token_url"`
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	Scopes       []string `koanf:"scopes"`
	ACRValues    string   `koanf:"acr_values"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{
			Driver: DriverMemory,
			Prefix: "artcertify:",
		},
		Events: EventsConfig{Driver: DriverMemory},
		Session: SessionConfig{
			RevalidateInterval: 120 * time.Second,
			NavigationDelay:    100 * time.Millisecond,
			LoginPath:          "/",
			CredentialTTL:      24 * time.Hour,

			MaxValidationErrors: 3,
		},
	}
}

// Load reads path (optional) and the environment over the defaults and validates the result
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Events.RedisURL == "" {
		c.Events.RedisURL = c.Store.RedisURL
	}
	for i := range c.Federation.Providers {
		p := &c.Federation.Providers[i]
		issuer := strings.TrimSuffix(p.IssuerURL, "/")
		if p.AuthURL == "" && issuer != "" {
			p.AuthURL = issuer + "/authorization"
		}
		if p.TokenURL == "" && issuer != "" {
			p.TokenURL = issuer + "/token"
		}
		if len(p.Scopes) == 0 {
			p.Scopes = []string{"openid", "profile"}
		}
		if p.Name == "" {
			p.Name = p.ID
		}
	}
}

// Validate rejects unusable configurations
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory, DriverBadger:
	case DriverRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Events.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Events.RedisURL == "" {
			errs = append(errs, errors.New("events.redis_url is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events driver %q", c.Events.Driver))
	}

	if c.Session.RevalidateInterval <= 0 {
		errs = append(errs, errors.New("session.revalidate_interval must be positive"))
	}
	if c.Session.NavigationDelay < 0 {
		errs = append(errs, errors.New("session.navigation_delay must not be negative"))
	}
	if c.Session.MaxValidationErrors <= 0 {
		errs = append(errs, errors.New("session.max_validation_errors must be positive"))
	}
	if c.Session.CredentialTTL <= 0 {
		errs = append(errs, errors.New("session.credential_ttl must be positive"))
	}

	if len(c.Federation.Providers) > 0 && c.Federation.RedirectURL == "" {
		errs = append(errs, errors.New("federation.redirect_url is required when providers are configured"))
	}
	seen := make(map[string]bool)
	for i, p := range c.Federation.Providers {
		switch {
		case p.ID == "":
			errs = append(errs, fmt.Errorf("federation.providers[%d].id is required", i))
		case seen[p.ID]:
			errs = append(errs, fmt.Errorf("duplicate federation provider %q", p.ID))
		}
		seen[p.ID] = true
		if p.ClientID == "" {
			errs = append(errs, fmt.Errorf("federation.providers[%d].client_id is required", i))
		}
		if p.AuthURL == "" {
			errs = append(errs, fmt.Errorf("federation.providers[%d] needs issuer_url or auth_url", i))
		}
		if p.IssuerURL == "" && !c.Federation.Simulate {
			errs = append(errs, fmt.Errorf("federation.providers[%d].issuer_url is required unless simulate is set", i))
		}
	}

	return errors.Join(errs...)
}

// Providers converts the provider section to domain providers
func (c Config) Providers() []core.Provider {
	out := make([]core.Provider, 0, len(c.Federation.Providers))
	for _, p := range c.Federation.Providers {
		out = append(out, core.Provider{
			ID:           p.ID,
			Name:         p.Name,
			IssuerURL:    p.IssuerURL,
			AuthURL:      p.AuthURL,
			TokenURL:     p.TokenURL,
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			Scopes:       p.Scopes,
			ACRValues:    p.ACRValues,
		})
	}
	return out
}
