package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SEED_DEMO_DATA", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("port %q, want 8080", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address %q, want :8080", cfg.Address())
	}
	if cfg.MigrationsDir != "migrations" {
		t.Fatalf("migrations dir %q", cfg.MigrationsDir)
	}
	if !cfg.SeedDemoData {
		t.Fatalf("demo seed must default to on")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/pescapos")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SEED_DEMO_DATA", "false")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("port %q", cfg.Port)
	}
	if cfg.DatabaseURL == "" || cfg.RedisAddr == "" {
		t.Fatalf("expected database and redis settings to pass through")
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("redis db %d, want 3", cfg.RedisDB)
	}
	if cfg.SeedDemoData {
		t.Fatalf("demo seed should be off")
	}
}
