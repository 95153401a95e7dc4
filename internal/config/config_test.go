package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("cognito.client_id", "client")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabaseDSN != defaultDatabaseDSN {
		t.Fatalf("unexpected database settings %q %q", cfg.DatabaseDriver, cfg.DatabaseDSN)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.PublishInterval != 30*time.Second {
		t.Fatalf("unexpected publish interval %s", cfg.PublishInterval)
	}
	if cfg.ReviewReward != 10 || cfg.LikeReward != 5 {
		t.Fatalf("unexpected rewards %d/%d", cfg.ReviewReward, cfg.LikeReward)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	testCases := []struct {
		name      string
		overrides map[string]any
		wantError string
	}{
		{
			name:      "missing-secret",
			overrides: map[string]any{"cognito.client_id": "client"},
			wantError: "auth.signing_secret",
		},
		{
			name:      "missing-client",
			overrides: map[string]any{"auth.signing_secret": "secret"},
			wantError: "cognito.client_id",
		},
		{
			name: "unknown-driver",
			overrides: map[string]any{
				"auth.signing_secret": "secret",
				"cognito.client_id":   "client",
				"database.driver":     "mysql",
			},
			wantError: "database.driver",
		},
		{
			name: "short-interval",
			overrides: map[string]any{
				"auth.signing_secret":       "secret",
				"cognito.client_id":         "client",
				"realtime.publish_interval": "100ms",
			},
			wantError: "realtime.publish_interval",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.overrides {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), testCase.wantError) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.wantError, err)
			}
		})
	}
}

func TestLoadDatabaseIgnoresServerSettings(t *testing.T) {
	configViper := NewViper()
	configViper.Set("database.driver", "Postgres")
	configViper.Set("database.dsn", "postgres://localhost/kudos")

	cfg, err := LoadDatabase(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Fatalf("expected normalized driver, got %q", cfg.DatabaseDriver)
	}
}
