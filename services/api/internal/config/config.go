package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when neither the caller nor CONFIG_PATH names a file.
const ConfigPath = "config.yaml"

const (
	DefaultTokenName     = "user_token"
	DefaultExpiresIn     = "7d"
	DefaultFrontendURL   = "http://localhost:3000"
	DefaultPresignExpiry = time.Hour
	defaultExpiresInDur  = 7 * 24 * time.Hour
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	AppEnv   string `yaml:"appEnv"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioRegion    string `yaml:"minioRegion"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	PublicAssetURL string `yaml:"publicAssetURL"`
	PresignExpiry  string `yaml:"presignExpiry"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	JWTSecret    string `yaml:"jwtSecret"`
	JWTExpiresIn string `yaml:"jwtExpiresIn"`
	JWTTokenName string `yaml:"jwtTokenName"`
	JWTIssuer    string `yaml:"jwtIssuer"`
	JWTAudience  string `yaml:"jwtAudience"`

	FrontendURL    string   `yaml:"frontendURL"`
	CORSOrigins    []string `yaml:"corsOrigins"`
	TrustedProxies []string `yaml:"trustedProxies"`

	KeepAliveURL      string `yaml:"keepAliveURL"`
	KeepAliveInterval string `yaml:"keepAliveInterval"`

	ScanRateLimitPerMinute     int `yaml:"scanRateLimitPerMinute"`
	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int `yaml:"registerRateLimitPerMinute"`

	CleanupStream      string `yaml:"cleanupStream"`
	CleanupConcurrency int    `yaml:"cleanupConcurrency"`
}

// Load reads path (or CONFIG_PATH, or config.yaml), applies environment
// overrides and defaults, then validates. A missing default file is not an
// error so the service can run from environment alone.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = ConfigPath
		explicit = false
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	str := map[string]*string{
		"PORT":              &cfg.Port,
		"APP_ENV":           &cfg.AppEnv,
		"LOG_LEVEL":         &cfg.LogLevel,
		"DATABASE_URL":      &cfg.DatabaseURL,
		"MINIO_ENDPOINT":    &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":  &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":  &cfg.MinioSecretKey,
		"MINIO_BUCKET":      &cfg.MinioBucket,
		"MINIO_REGION":      &cfg.MinioRegion,
		"PUBLIC_ASSET_URL":  &cfg.PublicAssetURL,
		"REDIS_ADDR":        &cfg.RedisAddr,
		"REDIS_PASSWORD":    &cfg.RedisPassword,
		"JWT_SECRET":        &cfg.JWTSecret,
		"JWT_EXPIRES_IN":    &cfg.JWTExpiresIn,
		"JWT_TOKEN_NAME":    &cfg.JWTTokenName,
		"FRONTEND_URL":      &cfg.FrontendURL,
		"KEEP_ALIVE_URL":    &cfg.KeepAliveURL,
		"KEEP_ALIVE_PERIOD": &cfg.KeepAliveInterval,
	}
	for key, dst := range str {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	if v := strings.TrimSpace(os.Getenv("MINIO_USE_SSL")); v != "" {
		cfg.MinioUseSSL = v == "true" || v == "1"
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	ints := map[string]*int{
		"SCAN_RATE_LIMIT_PER_MINUTE":     &cfg.ScanRateLimitPerMinute,
		"LOGIN_RATE_LIMIT_PER_MINUTE":    &cfg.LoginRateLimitPerMinute,
		"REGISTER_RATE_LIMIT_PER_MINUTE": &cfg.RegisterRateLimitPerMinute,
	}
	for key, dst := range ints {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
			*dst = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.JWTExpiresIn == "" {
		cfg.JWTExpiresIn = DefaultExpiresIn
	}
	if cfg.JWTTokenName == "" {
		cfg.JWTTokenName = DefaultTokenName
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = DefaultFrontendURL
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.FrontendURL, "http://localhost:3000", "http://localhost:5173"}
	}
	if cfg.ScanRateLimitPerMinute <= 0 {
		cfg.ScanRateLimitPerMinute = 120
	}
	if cfg.LoginRateLimitPerMinute <= 0 {
		cfg.LoginRateLimitPerMinute = 10
	}
	if cfg.RegisterRateLimitPerMinute <= 0 {
		cfg.RegisterRateLimitPerMinute = 5
	}
	if cfg.CleanupStream == "" {
		cfg.CleanupStream = "arview:cleanup"
	}
	if cfg.CleanupConcurrency <= 0 {
		cfg.CleanupConcurrency = 2
	}
}

func validateConfig(cfg FileConfig) error {
	required := []struct{ name, value string }{
		{"databaseURL", cfg.DatabaseURL},
		{"minioEndpoint", cfg.MinioEndpoint},
		{"minioAccessKey", cfg.MinioAccessKey},
		{"minioSecretKey", cfg.MinioSecretKey},
		{"minioBucket", cfg.MinioBucket},
		{"publicAssetURL", cfg.PublicAssetURL},
		{"redisAddr", cfg.RedisAddr},
		{"jwtSecret", cfg.JWTSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("config: %s is required", r.name)
		}
	}
	if len(cfg.JWTSecret) < 16 {
		return errors.New("config: jwtSecret must be at least 16 bytes")
	}
	if cfg.PresignExpiry != "" {
		if _, err := time.ParseDuration(cfg.PresignExpiry); err != nil {
			return fmt.Errorf("config: presignExpiry: %w", err)
		}
	}
	if cfg.KeepAliveInterval != "" {
		if _, err := time.ParseDuration(cfg.KeepAliveInterval); err != nil {
			return fmt.Errorf("config: keepAliveInterval: %w", err)
		}
	}
	return nil
}

// IsProduction reports whether cookies must be Secure and SameSite=None.
func (c FileConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

// TokenTTL is the parsed JWTExpiresIn.
func (c FileConfig) TokenTTL() time.Duration {
	return ParseExpiresIn(c.JWTExpiresIn)
}

// PresignTTL is the presigned upload URL lifetime.
func (c FileConfig) PresignTTL() time.Duration {
	if d, err := time.ParseDuration(c.PresignExpiry); err == nil && d > 0 {
		return d
	}
	return DefaultPresignExpiry
}

// KeepAlivePeriod returns the ping interval, or 0 for the package default.
func (c FileConfig) KeepAlivePeriod() time.Duration {
	d, _ := time.ParseDuration(c.KeepAliveInterval)
	return d
}

var expiresInPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d)?$`)

// ParseExpiresIn parses "<n>[ms|s|m|h|d]". A bare number is milliseconds;
// anything unparsable yields seven days.
func ParseExpiresIn(v string) time.Duration {
	m := expiresInPattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return defaultExpiresInDur
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return defaultExpiresInDur
	}
	unit := map[string]time.Duration{
		"":   time.Millisecond,
		"ms": time.Millisecond,
		"s":  time.Second,
		"m":  time.Minute,
		"h":  time.Hour,
		"d":  24 * time.Hour,
	}[m[2]]
	return time.Duration(n) * unit
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
