package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeWhenDBSet(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "production", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "headsethub", SSLMode: ""},
		Auth: AuthConfig{JWTSecret: "secret", JWTIssuer: "hub", JWTAudience: "softphone"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestLoad_DefaultsSSLModeOutsideProduction(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "headsethub")
	t.Setenv("DB_SSLMODE", "")

	c, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected defaulted sslmode disable, got %q", c.DB.SSLMode)
	}
	if dsn := c.PostgresDSN(); !strings.Contains(dsn, "sslmode=disable") {
		t.Fatalf("DSN must carry the defaulted sslmode, got %q", dsn)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected defaulted access TTL, got %v", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_DBAndRedisAreOptional(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error without DB/Redis, got %v", err)
	}
	if c.HasDB() || c.HasRedis() {
		t.Fatalf("expected DB and Redis reported absent")
	}
}

func TestValidate_PartialDBConfigRejected(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for DB_HOST without user and name")
	}
}

func TestApplyVendorDefaults(t *testing.T) {
	c := Config{}
	c.ApplyVendorDefaults()

	if c.Vendors.PlantronicsBaseURL != "https://127.0.0.1:32018/Spokes" {
		t.Fatalf("unexpected plantronics default %q", c.Vendors.PlantronicsBaseURL)
	}
	if c.Vendors.SennheiserWSURL != "wss://127.0.0.1:41088" {
		t.Fatalf("unexpected sennheiser default %q", c.Vendors.SennheiserWSURL)
	}
	if c.Vendors.ConnectTimeout != 10*time.Second {
		t.Fatalf("unexpected connect timeout default %v", c.Vendors.ConnectTimeout)
	}

	c2 := Config{Vendors: VendorConfig{SennheiserWSURL: "wss://127.0.0.1:9000"}}
	c2.ApplyVendorDefaults()
	if c2.Vendors.SennheiserWSURL != "wss://127.0.0.1:9000" {
		t.Fatalf("explicit value must survive defaults, got %q", c2.Vendors.SennheiserWSURL)
	}
}
