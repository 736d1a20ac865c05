package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("REDIS_TTL", "")
	t.Setenv("PROTECT_BASE_URL", "")
	t.Setenv("SESSION_TOKEN_EXPIRATION", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", config.Server.Port)
	}
	if config.Redis.TTL != 15*time.Minute {
		t.Errorf("Redis.TTL = %v, want 15m", config.Redis.TTL)
	}
	if config.Protect.BaseURL != "" {
		t.Errorf("Protect.BaseURL = %q, want empty (encryption disabled)", config.Protect.BaseURL)
	}
	if config.Session.TokenExpiration != 24*time.Hour {
		t.Errorf("Session.TokenExpiration = %v, want 24h", config.Session.TokenExpiration)
	}
}

func TestLoadConfig_RequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() succeeded without SESSION_SECRET")
	}
}

func TestLoadConfig_RejectsShortSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "too-short")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() accepted a short SESSION_SECRET")
	}
}

func TestGetDSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "db.internal",
		Port:     "5433",
		User:     "workpal",
		Password: "secret",
		Name:     "conversations",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=workpal password=secret dbname=conversations sslmode=require"
	if got := config.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	if got := getEnvAsDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvAsDuration() = %v, want 90s", got)
	}

	t.Setenv("TEST_DURATION", "not-a-duration")
	if got := getEnvAsDuration("TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("getEnvAsDuration() fallback = %v, want default", got)
	}

	if got := getEnvAsDuration("TEST_DURATION_UNSET", 5*time.Second); got != 5*time.Second {
		t.Errorf("getEnvAsDuration() unset = %v, want default", got)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := getEnvAsInt("TEST_INT", 7); got != 42 {
		t.Errorf("getEnvAsInt() = %d, want 42", got)
	}

	t.Setenv("TEST_INT", "forty-two")
	if got := getEnvAsInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt() fallback = %d, want default", got)
	}
}
