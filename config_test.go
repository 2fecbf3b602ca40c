package goRefresh

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Refresh.HashSecret = []byte("abcdef0123456789abcdef0123456789")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "zero access ttl",
			mutate:  func(c *Config) { c.JWT.AccessTTL = 0 },
			wantErr: "AccessTTL",
		},
		{
			name:    "max access ttl below access ttl",
			mutate:  func(c *Config) { c.JWT.MaxAccessTTL = c.JWT.AccessTTL - time.Second },
			wantErr: "MaxAccessTTL",
		},
		{
			name:    "zero refresh ttl",
			mutate:  func(c *Config) { c.Refresh.TTL = 0 },
			wantErr: "Refresh.TTL",
		},
		{
			name:    "max refresh ttl below refresh ttl",
			mutate:  func(c *Config) { c.Refresh.MaxTTL = c.Refresh.TTL - time.Hour },
			wantErr: "Refresh.MaxTTL",
		},
		{
			name:    "short hash secret",
			mutate:  func(c *Config) { c.Refresh.HashSecret = []byte("short") },
			wantErr: "HashSecret",
		},
		{
			name: "hash secret reuses jwt key",
			mutate: func(c *Config) {
				c.Refresh.HashSecret = append([]byte(nil), c.JWT.PrivateKey...)
			},
			wantErr: "must differ",
		},
		{
			name:    "issue attempts over cap",
			mutate:  func(c *Config) { c.Refresh.MaxIssueAttempts = 11 },
			wantErr: "MaxIssueAttempts",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Refresh.RetentionWindow = -time.Second },
			wantErr: "RetentionWindow",
		},
		{
			name:    "zero max page size",
			mutate:  func(c *Config) { c.Sessions.MaxPageSize = 0 },
			wantErr: "MaxPageSize",
		},
		{
			name:    "max page size over cap",
			mutate:  func(c *Config) { c.Sessions.MaxPageSize = 501 },
			wantErr: "MaxPageSize",
		},
		{
			name: "default page size above max",
			mutate: func(c *Config) {
				c.Sessions.MaxPageSize = 10
				c.Sessions.DefaultPageSize = 11
			},
			wantErr: "DefaultPageSize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate failed: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigIssueAttempts(t *testing.T) {
	cfg := validConfig()
	if got := cfg.issueAttempts(); got != defaultIssueAttempts {
		t.Fatalf("expected default attempts, got %d", got)
	}
	cfg.Refresh.MaxIssueAttempts = 3
	if got := cfg.issueAttempts(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestCloneConfigIsolatesSecrets(t *testing.T) {
	cfg := validConfig()
	clone := cloneConfig(cfg)

	cfg.JWT.PrivateKey[0] = 'X'
	cfg.Refresh.HashSecret[0] = 'X'

	if clone.JWT.PrivateKey[0] == 'X' {
		t.Fatal("clone shares JWT.PrivateKey backing array")
	}
	if clone.Refresh.HashSecret[0] == 'X' {
		t.Fatal("clone shares Refresh.HashSecret backing array")
	}
}
