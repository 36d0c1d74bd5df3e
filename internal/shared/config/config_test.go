package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"resume-editor/internal/shared/telemetry"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"ENV", "PORT", "SAVE_DEBOUNCE", "SESSION_IDLE_TIMEOUT", "REDIS_URL", "CORS_ALLOW_ORIGINS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "dev" || cfg.Port != "8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SaveDebounce != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s debounce, got %s", cfg.SaveDebounce)
	}
	if cfg.SessionIdleTimeout != 30*time.Minute {
		t.Fatalf("expected 30m idle timeout, got %s", cfg.SessionIdleTimeout)
	}
	if len(cfg.CORSAllowOrigin) != 1 || cfg.CORSAllowOrigin[0] != "http://localhost:5173" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowOrigin)
	}
	if cfg.LogLevel != telemetry.LevelInfo {
		t.Fatalf("expected info level, got %v", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENV", "prod")
	t.Setenv("SAVE_DEBOUNCE", "750")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.LogLevel != telemetry.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.LogLevel)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.SaveDebounce != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %s", cfg.SaveDebounce)
	}
	if cfg.SessionIdleTimeout != 5*time.Minute {
		t.Fatalf("expected 5m, got %s", cfg.SessionIdleTimeout)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowOrigin)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected redis url %q", cfg.RedisURL)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("SAVE_DEBOUNCE", "soonish")
	if got := getDuration("SAVE_DEBOUNCE", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	body := "# comment\nRESUME_TEST_KEY=\"quoted value\"\nRESUME_TEST_KEPT=from-file\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("RESUME_TEST_KEY", "")
	t.Setenv("RESUME_TEST_KEPT", "from-env")

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))
	if got := os.Getenv("RESUME_TEST_KEY"); got != "quoted value" {
		t.Fatalf("expected quoted value, got %q", got)
	}
	if got := os.Getenv("RESUME_TEST_KEPT"); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
