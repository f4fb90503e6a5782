// Package config loads the holder server configuration: defaults, then an optional TOML
// file named by HOLDER_CONFIG_FILE, then HOLDER_* environment overrides.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string `toml:"addr"`
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`
}

// Upstream locates the backend and CDN and bounds the calls made to them.
type Upstream struct {
	APIURL           string        `toml:"api_url"`
	CDNURL           string        `toml:"cdn_url"`
	NetworkTimeout   time.Duration `toml:"network_timeout"`
	ConfigTimeout    time.Duration `toml:"config_timeout"`
	ProviderCacheTTL time.Duration `toml:"provider_cache_ttl"`
	// SigningPublicKey is the base64 ed25519 key signed responses are verified with.
	SigningPublicKey string `toml:"signing_public_key"`
}

type Store struct {
	Driver          string        `toml:"driver"`
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

// Holder tunes the holder flows.
type Holder struct {
	SessionTTL      time.Duration `toml:"session_ttl"`
	SessionCapacity int           `toml:"session_capacity"`
	CleanupInterval time.Duration `toml:"cleanup_interval"`
	// Secret is the master secret the issuance commitment is derived from.
	Secret string `toml:"secret"`
}

type Config struct {
	Server   Server   `toml:"server"`
	Upstream Upstream `toml:"upstream"`
	Store    Store    `toml:"store"`
	Holder   Holder   `toml:"holder"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Addr:        ":8080",
			Environment: "development",
			LogLevel:    "info",
		},
		Upstream: Upstream{
			NetworkTimeout:   30 * time.Second,
			ConfigTimeout:    10 * time.Second,
			ProviderCacheTTL: 5 * time.Minute,
		},
		Store: Store{
			Driver:          StoreMemory,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Holder: Holder{
			SessionTTL:      30 * time.Minute,
			SessionCapacity: 1024,
			CleanupInterval: time.Hour,
		},
	}
}

// Load builds the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom builds the configuration reading variables through getenv.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := getenv("HOLDER_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"HOLDER_ADDR":               &c.Server.Addr,
		"HOLDER_ENVIRONMENT":        &c.Server.Environment,
		"HOLDER_LOG_LEVEL":          &c.Server.LogLevel,
		"HOLDER_API_URL":            &c.Upstream.APIURL,
		"HOLDER_CDN_URL":            &c.Upstream.CDNURL,
		"HOLDER_SIGNING_PUBLIC_KEY": &c.Upstream.SigningPublicKey,
		"HOLDER_STORE_DRIVER":       &c.Store.Driver,
		"HOLDER_STORE_DSN":          &c.Store.DSN,
		"HOLDER_SECRET":             &c.Holder.Secret,
	}
	for name, field := range strs {
		if v := getenv(name); v != "" {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"HOLDER_NETWORK_TIMEOUT":    &c.Upstream.NetworkTimeout,
		"HOLDER_CONFIG_TIMEOUT":     &c.Upstream.ConfigTimeout,
		"HOLDER_PROVIDER_CACHE_TTL": &c.Upstream.ProviderCacheTTL,
		"HOLDER_SESSION_TTL":        &c.Holder.SessionTTL,
		"HOLDER_CLEANUP_INTERVAL":   &c.Holder.CleanupInterval,
	}
	for name, field := range durations {
		v := getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*field = d
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Upstream.APIURL == "" {
		errs = append(errs, errors.New("upstream.api_url is required"))
	}
	if c.Upstream.CDNURL == "" {
		errs = append(errs, errors.New("upstream.cdn_url is required"))
	}
	if _, err := c.SigningKey(); err != nil {
		errs = append(errs, err)
	}
	if c.Holder.Secret == "" {
		errs = append(errs, errors.New("holder.secret is required"))
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver))
	}
	for name, d := range map[string]time.Duration{
		"upstream.network_timeout": c.Upstream.NetworkTimeout,
		"upstream.config_timeout":  c.Upstream.ConfigTimeout,
		"holder.session_ttl":       c.Holder.SessionTTL,
		"holder.cleanup_interval":  c.Holder.CleanupInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Holder.SessionCapacity <= 0 {
		errs = append(errs, errors.New("holder.session_capacity must be positive"))
	}
	return errors.Join(errs...)
}

// SigningKey decodes the ed25519 public key.
func (c Config) SigningKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.Upstream.SigningPublicKey))
	if err != nil {
		return nil, fmt.Errorf("upstream.signing_public_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("upstream.signing_public_key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
