package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("expected default driver %q, got %q", DriverPostgres, cfg.Database.Driver)
	}
	if cfg.JWT.Expiration != 7*24*time.Hour {
		t.Errorf("expected 7 day token expiry, got %v", cfg.JWT.Expiration)
	}
	if cfg.Upload.MaxFiles != 5 {
		t.Errorf("expected 5 files per upload, got %d", cfg.Upload.MaxFiles)
	}
	if cfg.Upload.MaxFileSize != 50*1024*1024 {
		t.Errorf("expected 50MB file limit, got %d", cfg.Upload.MaxFileSize)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DriverPostgres},
			JWT:      JWTConfig{Secret: "s", Expiration: time.Hour},
			Upload:   UploadConfig{MaxFiles: 5, MaxFileSize: 1024},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid postgres", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: true},
		{
			name: "secret from vault",
			mutate: func(c *Config) {
				c.JWT.Secret = ""
				c.Vault = VaultConfig{Enabled: true, Token: "root"}
			},
		},
		{name: "vault without token", mutate: func(c *Config) { c.Vault.Enabled = true }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "sqlite" }, wantErr: true},
		{name: "mongo without uri", mutate: func(c *Config) { c.Database.Driver = DriverMongo }, wantErr: true},
		{
			name: "mongo placeholder host",
			mutate: func(c *Config) {
				c.Database.Driver = DriverMongo
				c.Database.MongoURI = "mongodb+srv://u:p@cluster0.xxxxx.mongodb.net"
			},
			wantErr: true,
		},
		{
			name: "mongo valid",
			mutate: func(c *Config) {
				c.Database.Driver = DriverMongo
				c.Database.MongoURI = "mongodb://localhost:27017"
			},
		},
		{name: "zero upload limit", mutate: func(c *Config) { c.Upload.MaxFiles = 0 }, wantErr: true},
		{
			name:    "admin seed with short password",
			mutate:  func(c *Config) { c.Admin = AdminConfig{Email: "root@example.com", Password: "123"} },
			wantErr: true,
		},
		{
			name:   "trusted proxies",
			mutate: func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1", "::1"} },
		},
		{
			name:    "malformed trusted proxy",
			mutate:  func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/33"} },
			wantErr: true,
		},
		{
			name:    "production without db password",
			mutate:  func(c *Config) { c.App.Env = "production" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseProxy(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.1.2.3/8", "10.0.0.0/8"},
		{"192.0.2.1", "192.0.2.1/32"},
		{"::ffff:192.0.2.1", "192.0.2.1/32"},
		{"2001:db8::1", "2001:db8::1/128"},
	}
	for _, tt := range tests {
		got, err := ParseProxy(tt.in)
		if err != nil {
			t.Fatalf("ParseProxy(%q) failed: %v", tt.in, err)
		}
		if got.String() != tt.want {
			t.Errorf("ParseProxy(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseProxy("proxy.internal"); err == nil {
		t.Error("expected hostnames to be rejected")
	}
}

func TestGetSliceEnv(t *testing.T) {
	t.Setenv("TEST_SLICE", " a, b ,,c ")

	got := getSliceEnv("TEST_SLICE", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
