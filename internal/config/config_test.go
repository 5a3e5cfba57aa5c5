package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("default port = %q, want 8080", cfg.Port)
	}
	if cfg.NLGTimeoutMillis != 10000 {
		t.Fatalf("default nlg timeout = %d, want 10000", cfg.NLGTimeoutMillis)
	}
	if !cfg.IsDev() {
		t.Fatal("default env should be development")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/healthai")
	t.Setenv("MAX_TURN_RETRIES", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %q, want 9090", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://localhost/healthai" {
		t.Fatalf("database url = %q", cfg.DatabaseURL)
	}
	if cfg.MaxTurnRetries != 5 {
		t.Fatalf("max turn retries = %d, want 5", cfg.MaxTurnRetries)
	}
}

func TestLoadProductionRequiresDatabase(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without DATABASE_URL in production")
	}
}
