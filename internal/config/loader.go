// Package config loads service settings from MEETGRID_* environment
// variables layered over an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const envPrefix = "MEETGRID_"

// Cache backends accepted by CACHE_BACKEND.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

const minSecretLength = 32

// Config captures configuration values for the meetgrid service.
type Config struct {
	HTTPPort      int
	SQLitePath    string
	SessionSecret string
	SessionTTL    time.Duration
	CacheBackend  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	FetchTimeout          time.Duration
	DisplayLocation       *time.Location
	AvailabilityRetention time.Duration
	LogLevel              string
	MetricsAddr           string

	CreateSessionRate  float64
	CreateSessionBurst int
}

// GoogleEnabled reports whether the Google sign-in settings are present.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

// Default returns the configuration used when nothing is set. The session
// secret has no default.
func Default() Config {
	return Config{
		HTTPPort:           8080,
		SQLitePath:         "meetgrid.db",
		SessionTTL:         720 * time.Hour,
		CacheBackend:       CacheSQLite,
		FetchTimeout:       10 * time.Second,
		DisplayLocation:    time.UTC,
		LogLevel:           "info",
		CreateSessionRate:  1,
		CreateSessionBurst: 5,
	}
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile reads base values from the YAML file at path, when path is not
// empty, and overrides them with environment variables. File keys are the
// lower-case setting names without the prefix, e.g. "http_port".
func LoadFile(path string) (Config, error) {
	values := map[string]string{}
	if path != "" {
		fileValues, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		values = fileValues
	}
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		values[strings.TrimPrefix(key, envPrefix)] = strings.TrimSpace(value)
	}
	return parse(values)
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			continue
		case map[string]any, []any:
			return nil, fmt.Errorf("config: %s: key %q must be a scalar", path, key)
		default:
			values[strings.ToUpper(key)] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return values, nil
}

// Error lists every missing and invalid setting found while loading.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}

type parser struct {
	values  map[string]string
	missing []string
	invalid []string
}

func (p *parser) lookup(name string) (string, bool) {
	value, ok := p.values[name]
	return value, ok && value != ""
}

func (p *parser) fail(name string) {
	p.invalid = append(p.invalid, envPrefix+name)
}

func (p *parser) string(name string, dst *string) {
	if value, ok := p.lookup(name); ok {
		*dst = value
	}
}

func (p *parser) int(name string, dst *int, min int) {
	value, ok := p.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < min {
		p.fail(name)
		return
	}
	*dst = n
}

func (p *parser) float(name string, dst *float64) {
	value, ok := p.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		p.fail(name)
		return
	}
	*dst = f
}

func (p *parser) duration(name string, dst *time.Duration, allowZero bool) {
	value, ok := p.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		p.fail(name)
		return
	}
	*dst = d
}

func parse(values map[string]string) (Config, error) {
	cfg := Default()
	p := &parser{values: values}

	p.int("HTTP_PORT", &cfg.HTTPPort, 1)
	if cfg.HTTPPort > 65535 {
		p.fail("HTTP_PORT")
	}
	p.string("SQLITE_PATH", &cfg.SQLitePath)

	if secret, ok := p.lookup("SESSION_SECRET"); !ok {
		p.missing = append(p.missing, envPrefix+"SESSION_SECRET")
	} else if len(secret) < minSecretLength {
		p.fail("SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}
	p.duration("SESSION_TTL", &cfg.SessionTTL, false)

	if backend, ok := p.lookup("CACHE_BACKEND"); ok {
		switch backend = strings.ToLower(backend); backend {
		case CacheSQLite, CacheRedis, CacheMemory:
			cfg.CacheBackend = backend
		default:
			p.fail("CACHE_BACKEND")
		}
	}
	p.string("REDIS_ADDR", &cfg.RedisAddr)
	p.string("REDIS_PASSWORD", &cfg.RedisPassword)
	p.int("REDIS_DB", &cfg.RedisDB, 0)
	if cfg.CacheBackend == CacheRedis && cfg.RedisAddr == "" {
		p.missing = append(p.missing, envPrefix+"REDIS_ADDR")
	}

	p.string("GOOGLE_CLIENT_ID", &cfg.GoogleClientID)
	p.string("GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret)
	p.string("GOOGLE_REDIRECT_URL", &cfg.GoogleRedirectURL)
	if cfg.GoogleClientID != "" {
		if cfg.GoogleClientSecret == "" {
			p.missing = append(p.missing, envPrefix+"GOOGLE_CLIENT_SECRET")
		}
		if cfg.GoogleRedirectURL == "" {
			p.missing = append(p.missing, envPrefix+"GOOGLE_REDIRECT_URL")
		}
	}

	p.duration("FETCH_TIMEOUT", &cfg.FetchTimeout, false)
	if name, ok := p.lookup("DISPLAY_TIMEZONE"); ok {
		loc, err := time.LoadLocation(name)
		if err != nil {
			p.fail("DISPLAY_TIMEZONE")
		} else {
			cfg.DisplayLocation = loc
		}
	}
	p.duration("AVAILABILITY_RETENTION", &cfg.AvailabilityRetention, true)

	if level, ok := p.lookup("LOG_LEVEL"); ok {
		switch level = strings.ToLower(level); level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			p.fail("LOG_LEVEL")
		}
	}
	p.string("METRICS_ADDR", &cfg.MetricsAddr)
	p.float("CREATE_SESSION_RATE", &cfg.CreateSessionRate)
	p.int("CREATE_SESSION_BURST", &cfg.CreateSessionBurst, 1)

	if len(p.missing) > 0 || len(p.invalid) > 0 {
		sort.Strings(p.missing)
		sort.Strings(p.invalid)
		return Config{}, &Error{Missing: p.missing, Invalid: p.invalid}
	}
	return cfg, nil
}

// IsConfigError reports whether err came from Load or LoadFile validation.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}
