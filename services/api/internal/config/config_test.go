package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
port: "9000"
databaseURL: postgres://localhost/arview
minioEndpoint: localhost:9000
minioAccessKey: key
minioSecretKey: secret
minioBucket: models
publicAssetURL: https://cdn.example.com/
redisAddr: localhost:6379
jwtSecret: 0123456789abcdef0123
trustedProxies: ["10.0.0.0/8"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.JWTTokenName != DefaultTokenName || cfg.FrontendURL != DefaultFrontendURL {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.TokenTTL() != 7*24*time.Hour {
		t.Fatalf("token ttl = %v", cfg.TokenTTL())
	}
	if cfg.PresignTTL() != time.Hour {
		t.Fatalf("presign ttl = %v", cfg.PresignTTL())
	}
	if cfg.ScanRateLimitPerMinute != 120 || cfg.LoginRateLimitPerMinute != 10 || cfg.RegisterRateLimitPerMinute != 5 {
		t.Fatalf("unexpected rate limits: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 3 || cfg.CORSOrigins[0] != DefaultFrontendURL {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSOrigins)
	}
	if cfg.IsProduction() {
		t.Fatalf("default env must not be production")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_EXPIRES_IN", "2h")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("APP_ENV", "production")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("TRUSTED_PROXIES", "192.168.0.1, 10.0.0.0/8")
	t.Setenv("SCAN_RATE_LIMIT_PER_MINUTE", "30")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenTTL() != 2*time.Hour {
		t.Fatalf("token ttl = %v", cfg.TokenTTL())
	}
	if cfg.FrontendURL != "https://app.example.com" || !cfg.IsProduction() || !cfg.MinioUseSSL {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.ScanRateLimitPerMinute != 30 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	body := strings.Replace(validYAML, "jwtSecret: 0123456789abcdef0123", "", 1)
	_, err := Load(writeConfig(t, body))
	if err == nil || err.Error() != "config: jwtSecret is required" {
		t.Fatalf("expected jwtSecret error, got %v", err)
	}
	body = strings.Replace(validYAML, "0123456789abcdef0123", "short", 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
}

func TestParseExpiresIn(t *testing.T) {
	tests := map[string]time.Duration{
		"7d":      7 * 24 * time.Hour,
		"12h":     12 * time.Hour,
		"15m":     15 * time.Minute,
		"30s":     30 * time.Second,
		"250ms":   250 * time.Millisecond,
		"60000":   time.Minute,
		"":        7 * 24 * time.Hour,
		"forever": 7 * 24 * time.Hour,
		"-5m":     7 * 24 * time.Hour,
	}
	for in, want := range tests {
		if got := ParseExpiresIn(in); got != want {
			t.Fatalf("ParseExpiresIn(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitCSV = %v", got)
	}
}
