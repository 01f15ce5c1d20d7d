package config

import "testing"

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test/db")
	t.Setenv("MAX_POOL_SIZE", "25")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Postgres.DSN != "postgres://test/db" {
		t.Fatalf("unexpected DSN: %q", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Fatalf("unexpected MaxConns: %d", cfg.Postgres.MaxConns)
	}
	if cfg.Daemon.HTTPAddr != ":9000" {
		t.Fatalf("unexpected HTTPAddr: %q", cfg.Daemon.HTTPAddr)
	}
	if cfg.Redis.URL != "redis://localhost:6379" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}
}

func TestLoadFromEnvLeavesDefaultsWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Daemon.HTTPAddr != ":7843" {
		t.Fatalf("expected default HTTPAddr preserved, got %q", cfg.Daemon.HTTPAddr)
	}
	if cfg.Redis.URL != "" {
		t.Fatalf("expected Redis disabled by default, got %q", cfg.Redis.URL)
	}
}

func TestLoadFromEnvRejectsInvertedPoolRange(t *testing.T) {
	t.Setenv("MIN_POOL_SIZE", "20")
	t.Setenv("MAX_POOL_SIZE", "5")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err == nil {
		t.Fatal("expected an error for min_pool_size > max_pool_size")
	}
}

func TestLoadFromEnvRejectsUndersizedMaxMessageSize(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "0")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err == nil {
		t.Fatal("expected an error for max_message_size < 1024")
	}
}
