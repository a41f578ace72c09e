package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/carelink_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("unexpected pool defaults: max=%d min=%d", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.WSSendBuffer != 256 {
		t.Errorf("expected default send buffer 256, got %d", cfg.WSSendBuffer)
	}
	if cfg.AttachmentMaxBytes != 10*1024*1024 {
		t.Errorf("expected 10MB attachment limit, got %d", cfg.AttachmentMaxBytes)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/carelink_test")
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("expected port 9000, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("expected production mode")
	}
}

func TestValidateDevAllowsMissingAuth(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error in dev mode: %v", err)
	}
}

func TestValidateProductionRequiresAuth(t *testing.T) {
	cfg := &Config{Env: "production", WSSendBuffer: 256, AttachmentMaxBytes: 1024}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without any auth configuration")
	}

	cfg.JWTSigningKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error with signing key set: %v", err)
	}
}

func TestValidateRejectsBadBuffers(t *testing.T) {
	cfg := &Config{Env: "production", JWTSigningKey: "secret", WSSendBuffer: 0, AttachmentMaxBytes: 1024}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero send buffer")
	}

	cfg.WSSendBuffer = 256
	cfg.AttachmentMaxBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero attachment limit")
	}
}
