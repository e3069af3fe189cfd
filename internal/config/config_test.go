package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultsDecode(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("security.jwtaccesssecret", "test-secret")

	cfg, err := decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if cfg.Security.AccessTTL != 15*24*time.Hour {
		t.Fatalf("expected 15 day access ttl, got %s", cfg.Security.AccessTTL)
	}
	if cfg.Security.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("expected 30 day refresh ttl, got %s", cfg.Security.RefreshTTL)
	}
	if cfg.Security.PersonalTTL != 4380*time.Hour {
		t.Fatalf("expected 6 month personal ttl, got %s", cfg.Security.PersonalTTL)
	}
	if cfg.RateLimits.Login.Max != 5 || cfg.RateLimits.Login.Window != time.Minute {
		t.Fatalf("unexpected login limit: %+v", cfg.RateLimits.Login)
	}
	if len(cfg.Locale.Supported) != 2 {
		t.Fatalf("expected two supported locales, got %v", cfg.Locale.Supported)
	}
}

func TestDecodeRequiresSecret(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	if _, err := decode(v); err == nil {
		t.Fatal("expected error without jwt secret")
	}
}
