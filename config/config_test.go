package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "unsupported scheme",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "ftp://books.toscrape.com/"
			},
			wantErr: "scheme",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.Delay = -1 * time.Millisecond
			},
			wantErr: "delay",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "zero visited cache",
			mutate: func(cfg *Config) {
				cfg.VisitedCacheSize = 0
			},
			wantErr: "visited cache",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "empty user agent",
			mutate: func(cfg *Config) {
				cfg.UserAgent = ""
			},
			wantErr: "user agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Delay != time.Second {
		t.Fatalf("default delay = %v, want 1s", cfg.Delay)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SCRAPER_TEST_PAGES", " 12 ")
	t.Setenv("SCRAPER_TEST_BAD", "twelve")
	t.Setenv("SCRAPER_TEST_DELAY", "250ms")

	if v, ok, err := EnvInt("SCRAPER_TEST_PAGES"); err != nil || !ok || v != 12 {
		t.Fatalf("EnvInt = %d, %v, %v; want 12, true, nil", v, ok, err)
	}
	if _, ok, err := EnvInt("SCRAPER_TEST_BAD"); err == nil || !ok {
		t.Fatalf("EnvInt on bad value: ok=%v err=%v, want ok and error", ok, err)
	}
	if _, ok, err := EnvInt("SCRAPER_TEST_UNSET"); err != nil || ok {
		t.Fatalf("EnvInt on unset: ok=%v err=%v", ok, err)
	}
	if v, ok, err := EnvDuration("SCRAPER_TEST_DELAY"); err != nil || !ok || v != 250*time.Millisecond {
		t.Fatalf("EnvDuration = %v, %v, %v; want 250ms", v, ok, err)
	}
	if _, ok := EnvString("SCRAPER_TEST_UNSET"); ok {
		t.Fatalf("EnvString on unset should report false")
	}
}
