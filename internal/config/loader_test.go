package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var settingNames = []string{
	"HTTP_PORT", "SQLITE_PATH", "SESSION_SECRET", "SESSION_TTL", "CACHE_BACKEND",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL",
	"FETCH_TIMEOUT", "DISPLAY_TIMEZONE", "AVAILABILITY_RETENTION", "LOG_LEVEL",
	"METRICS_ADDR", "CREATE_SESSION_RATE", "CREATE_SESSION_BURST",
}

// clearEnv blanks every setting; the loader treats empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range settingNames {
		t.Setenv(envPrefix+name, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEETGRID_SESSION_SECRET", testSecret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLitePath != "meetgrid.db" {
			t.Fatalf("unexpected default sqlite path: %q", cfg.SQLitePath)
		}
		if cfg.SessionSecret != testSecret {
			t.Fatalf("expected session secret to be loaded")
		}
		if cfg.SessionTTL != 720*time.Hour {
			t.Fatalf("expected default session TTL 720h, got %s", cfg.SessionTTL)
		}
		if cfg.CacheBackend != CacheSQLite {
			t.Fatalf("expected sqlite cache backend, got %q", cfg.CacheBackend)
		}
		if cfg.FetchTimeout != 10*time.Second {
			t.Fatalf("expected default fetch timeout 10s, got %s", cfg.FetchTimeout)
		}
		if cfg.DisplayLocation != time.UTC {
			t.Fatalf("expected UTC display location, got %v", cfg.DisplayLocation)
		}
		if cfg.AvailabilityRetention != 0 {
			t.Fatalf("expected retention to be disabled, got %s", cfg.AvailabilityRetention)
		}
		if cfg.GoogleEnabled() {
			t.Fatalf("expected google sign-in to be disabled")
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "config: missing required settings: MEETGRID_SESSION_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
		if !IsConfigError(err) {
			t.Fatalf("expected a config error")
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEETGRID_SESSION_SECRET", testSecret)
		t.Setenv("MEETGRID_HTTP_PORT", "9090")
		t.Setenv("MEETGRID_SQLITE_PATH", "/tmp/meetgrid.db")
		t.Setenv("MEETGRID_SESSION_TTL", "24h")
		t.Setenv("MEETGRID_FETCH_TIMEOUT", "3s")
		t.Setenv("MEETGRID_AVAILABILITY_RETENTION", "168h")
		t.Setenv("MEETGRID_DISPLAY_TIMEZONE", "Asia/Tokyo")
		t.Setenv("MEETGRID_CACHE_BACKEND", "Redis")
		t.Setenv("MEETGRID_REDIS_ADDR", "localhost:6379")
		t.Setenv("MEETGRID_REDIS_DB", "2")
		t.Setenv("MEETGRID_CREATE_SESSION_RATE", "0.5")
		t.Setenv("MEETGRID_CREATE_SESSION_BURST", "10")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLitePath != "/tmp/meetgrid.db" {
			t.Fatalf("unexpected sqlite path: %q", cfg.SQLitePath)
		}
		if cfg.SessionTTL != 24*time.Hour {
			t.Fatalf("expected session TTL 24h, got %s", cfg.SessionTTL)
		}
		if cfg.FetchTimeout != 3*time.Second {
			t.Fatalf("expected fetch timeout 3s, got %s", cfg.FetchTimeout)
		}
		if cfg.AvailabilityRetention != 168*time.Hour {
			t.Fatalf("expected retention 168h, got %s", cfg.AvailabilityRetention)
		}
		if cfg.DisplayLocation.String() != "Asia/Tokyo" {
			t.Fatalf("unexpected display location %v", cfg.DisplayLocation)
		}
		if cfg.CacheBackend != CacheRedis || cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
			t.Fatalf("unexpected redis settings: %+v", cfg)
		}
		if cfg.CreateSessionRate != 0.5 || cfg.CreateSessionBurst != 10 {
			t.Fatalf("unexpected rate settings: %v/%d", cfg.CreateSessionRate, cfg.CreateSessionBurst)
		}
	})

	t.Run("collects every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEETGRID_SESSION_SECRET", "too-short")
		t.Setenv("MEETGRID_HTTP_PORT", "eighty")
		t.Setenv("MEETGRID_CACHE_BACKEND", "memcached")
		t.Setenv("MEETGRID_FETCH_TIMEOUT", "0s")
		t.Setenv("MEETGRID_LOG_LEVEL", "loud")

		_, err := Load()
		var cfgErr *Error
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		want := []string{
			"MEETGRID_CACHE_BACKEND",
			"MEETGRID_FETCH_TIMEOUT",
			"MEETGRID_HTTP_PORT",
			"MEETGRID_LOG_LEVEL",
			"MEETGRID_SESSION_SECRET",
		}
		if strings.Join(cfgErr.Invalid, ",") != strings.Join(want, ",") {
			t.Fatalf("unexpected invalid list %v", cfgErr.Invalid)
		}
	})

	t.Run("requires dependent settings", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEETGRID_SESSION_SECRET", testSecret)
		t.Setenv("MEETGRID_CACHE_BACKEND", "redis")
		t.Setenv("MEETGRID_GOOGLE_CLIENT_ID", "client-id")

		_, err := Load()
		var cfgErr *Error
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		want := "MEETGRID_GOOGLE_CLIENT_SECRET,MEETGRID_GOOGLE_REDIRECT_URL,MEETGRID_REDIS_ADDR"
		if got := strings.Join(cfgErr.Missing, ","); got != want {
			t.Fatalf("unexpected missing list %q", got)
		}
	})
}

func TestLoadFile_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "meetgrid.yaml")
	content := strings.Join([]string{
		"http_port: 7000",
		"sqlite_path: /var/lib/meetgrid/data.db",
		"session_secret: " + testSecret,
		"log_level: debug",
		"google_client_id: from-file",
		"google_client_secret: file-secret",
		"google_redirect_url: http://localhost:7000/auth/google/callback",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("MEETGRID_HTTP_PORT", "7100")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if cfg.HTTPPort != 7100 {
		t.Fatalf("expected environment to override file port, got %d", cfg.HTTPPort)
	}
	if cfg.SQLitePath != "/var/lib/meetgrid/data.db" {
		t.Fatalf("expected file sqlite path, got %q", cfg.SQLitePath)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected file log level, got %q", cfg.LogLevel)
	}
	if !cfg.GoogleEnabled() || cfg.GoogleClientID != "from-file" {
		t.Fatalf("expected google settings from file")
	}
}

func TestLoadFile_RejectsNestedValues(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "meetgrid.yaml")
	if err := os.WriteFile(path, []byte("redis:\n  addr: localhost:6379\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "must be a scalar") {
		t.Fatalf("expected scalar error, got %v", err)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
