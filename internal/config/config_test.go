package config

import (
	"strings"
	"testing"
	"time"

	apperrors "wealthsync/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PROVIDER_HTTP_TIMEOUT", "")
	t.Setenv("SYNC_SCHEDULE", "")
	t.Setenv("CREDENTIALS_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ProviderTimeout != 15*time.Second {
		t.Errorf("ProviderTimeout = %s, want 15s", cfg.ProviderTimeout)
	}
	if len(cfg.Sync.ScheduleTimes) != 2 {
		t.Errorf("ScheduleTimes = %v, want two defaults", cfg.Sync.ScheduleTimes)
	}
	if cfg.CredentialsKey != nil {
		t.Errorf("expected nil credentials key")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER_HTTP_TIMEOUT", "3s")
	t.Setenv("SYNC_SCHEDULE", "07:30, 19:45")
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("SYNC_WORKERS", "not-a-number")
	t.Setenv("CREDENTIALS_KEY", strings.Repeat("ab", 32))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProviderTimeout != 3*time.Second {
		t.Errorf("ProviderTimeout = %s, want 3s", cfg.ProviderTimeout)
	}
	if got := strings.Join(cfg.Sync.ScheduleTimes, ","); got != "07:30,19:45" {
		t.Errorf("ScheduleTimes = %q", got)
	}
	if !cfg.DemoMode {
		t.Error("expected DemoMode")
	}
	if cfg.Sync.Workers != 4 {
		t.Errorf("Workers = %d, want fallback 4", cfg.Sync.Workers)
	}
	if len(cfg.CredentialsKey) != 32 {
		t.Errorf("CredentialsKey length = %d", len(cfg.CredentialsKey))
	}
}

func TestLoadRejectsShortKey(t *testing.T) {
	t.Setenv("CREDENTIALS_KEY", "abcd")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestProviderValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     interface{ Validate() error }
		wantErr bool
		missing string
	}{
		{"etrade complete", ETradeConfig{ConsumerKey: "k", ConsumerSecret: "s"}, false, ""},
		{"etrade missing secret", ETradeConfig{ConsumerKey: "k"}, true, "ConsumerSecret"},
		{"schwab complete", SchwabConfig{ClientID: "id", ClientSecret: "s", RedirectURI: "https://app.example.com/cb"}, false, ""},
		{"schwab bad redirect", SchwabConfig{ClientID: "id", ClientSecret: "s", RedirectURI: "nope"}, true, "RedirectURI"},
		{"plaid unknown env", PlaidConfig{ClientID: "id", Secret: "s", Environment: "staging"}, true, "Environment"},
		{"plaid complete", PlaidConfig{ClientID: "id", Secret: "s", Environment: "sandbox"}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if apperrors.KindOf(err) != apperrors.KindConfiguration {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Errorf("error %q does not name %s", err.Error(), tt.missing)
			}
		})
	}
}
