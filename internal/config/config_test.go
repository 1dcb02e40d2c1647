package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cleanup.Interval != 15*time.Minute {
		t.Errorf("Cleanup.Interval = %s, want 15m", cfg.Cleanup.Interval)
	}
	if cfg.Enhancer.Enabled {
		t.Error("Enhancer should be disabled by default")
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_PATH_TTL", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Redis.PathTTL != 5*time.Minute {
		t.Errorf("Redis.PathTTL = %s, want 5m", cfg.Redis.PathTTL)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.RateLimit.Requests != 100 {
		t.Errorf("RateLimit.Requests = %d, want default 100", cfg.RateLimit.Requests)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ENHANCER_ENABLED", "true")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when enhancer has no API key")
	}

	t.Setenv("ENHANCER_ENABLED", "false")
	t.Setenv("SERVER_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid port")
	}
}
