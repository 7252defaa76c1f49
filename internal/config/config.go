// Package config loads the offlinecache binary's settings from OFFLINECACHE_*
// environment variables.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"

	offlinecache "github.com/Arthur1/offline-cache"
	"github.com/Arthur1/offline-cache/internal/logging"
)

const EnvPrefix = "OFFLINECACHE_"

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendMemory, BackendRedis, BackendSQLite}

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	// OriginURL is the server the worker sits in front of. Its path is the
	// worker's scope.
	OriginURL string `env:"ORIGIN_URL,required"`

	Backend    string `env:"BACKEND" envDefault:"memory"`
	RedisAddr  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB    int    `env:"REDIS_DB" envDefault:"0"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"offlinecache.db"`

	Prefix  string `env:"PREFIX" envDefault:"moodmend"`
	Version string `env:"VERSION" envDefault:"v3"`
	// Manifest overrides the built-in asset list when set.
	Manifest     []string `env:"MANIFEST" envSeparator:","`
	OfflineShell string   `env:"OFFLINE_SHELL" envDefault:"./moodmend_ui_demo.html"`
	DefaultIcon  string   `env:"DEFAULT_ICON" envDefault:"./icon-192x192.svg"`
	APIMarker    string   `env:"API_MARKER" envDefault:"/api/"`

	// PeriodicSyncSchedule is a cron spec. Empty disables the trigger.
	PeriodicSyncSchedule string `env:"PERIODIC_SYNC_SCHEDULE" envDefault:"@daily"`

	Log logging.Config `envPrefix:"LOG_"`
}

func ErrParse(err error) error {
	return fmt.Errorf("config: parse env: %w", err)
}

func ErrInvalidOrigin(origin string, err error) error {
	return fmt.Errorf("config: invalid origin url %q: %w", origin, err)
}

func ErrInvalidBackend(backend string) error {
	return fmt.Errorf("config: invalid backend %q, must be one of: %s", backend, strings.Join(validBackends, ", "))
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	cfg := Config{Log: logging.DefaultConfig()}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, ErrParse(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.Origin(); err != nil {
		return err
	}
	if !slices.Contains(validBackends, c.Backend) {
		return ErrInvalidBackend(c.Backend)
	}
	if err := c.Registry().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return c.Log.Validate()
}

// Origin parses OriginURL. A missing path becomes "/".
func (c Config) Origin() (*url.URL, error) {
	u, err := url.Parse(c.OriginURL)
	if err != nil {
		return nil, ErrInvalidOrigin(c.OriginURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, ErrInvalidOrigin(c.OriginURL, fmt.Errorf("must be an absolute http(s) url"))
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

func (c Config) Registry() offlinecache.Registry {
	r := offlinecache.DefaultRegistry()
	r.Prefix = c.Prefix
	r.Version = c.Version
	if len(c.Manifest) > 0 {
		r.Manifest = slices.Clone(c.Manifest)
	}
	return r
}
