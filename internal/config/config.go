package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized as config overrides.
const (
	EnvConfigPath        = "CONFIG_PATH"
	EnvDBConnection      = "DB_CONNECTION"
	EnvJWTSecret         = "JWT_SECRET"
	EnvJWTExpiry         = "JWT_EXPIRY"
	EnvRefreshExpiry     = "REFRESH_EXPIRY"
	EnvRedisAddr         = "REDIS_ADDR"
	EnvRedisPassword     = "REDIS_PASSWORD"
	EnvBootstrapEmail    = "BOOTSTRAP_EMAIL"
	EnvBootstrapPassword = "BOOTSTRAP_PASSWORD"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds the signing secret and token lifetimes.
type JWTConfig struct {
	Secret        string
	Expiry        time.Duration
	RefreshExpiry time.Duration
}

// CookieConfig controls how token cookies are written.
type CookieConfig struct {
	Domain string `yaml:"domain"`
	Secure bool   `yaml:"secure"`
}

// RedisConfig holds the optional Redis connection for the denylist and
// rate limiter. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig holds per-minute request caps. Zero disables a cap.
type RateLimitConfig struct {
	ObtainPerMinute int `yaml:"obtain-per-minute"`
	OTPPerMinute    int `yaml:"otp-per-minute"`
}

// BootstrapConfig seeds the first superuser on an empty database.
type BootstrapConfig struct {
	Email    string `yaml:"email"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// fileConfig maps the full YAML config file.
type fileConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT struct {
		Secret        string `yaml:"secret"`
		Expiry        string `yaml:"expiry"`
		RefreshExpiry string `yaml:"refresh-expiry"`
	} `yaml:"jwt"`
	Cookie    CookieConfig    `yaml:"cookie"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// readFileConfig parses the YAML config file, tolerating a missing file.
func readFileConfig(configPath string) (fileConfig, error) {
	var cfg fileConfig
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return cfg, nil
}

// LoadDatabaseDSN reads the database DSN from the environment or config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return "", errRead
	}
	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// Default token lifetimes used when the config omits or invalidates them.
const (
	defaultAccessExpiry  = 15 * time.Minute
	defaultRefreshExpiry = 7 * 24 * time.Hour
)

// LoadJWTConfig loads JWT settings from the config file with env overrides.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	result := JWTConfig{Expiry: defaultAccessExpiry, RefreshExpiry: defaultRefreshExpiry}

	cfg, errRead := readFileConfig(configPath)
	if errRead == nil {
		if cfg.JWT.Secret != "" {
			result.Secret = cfg.JWT.Secret
		}
		if expiry, errParse := time.ParseDuration(strings.TrimSpace(cfg.JWT.Expiry)); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
		if refresh, errParse := time.ParseDuration(strings.TrimSpace(cfg.JWT.RefreshExpiry)); errParse == nil && refresh > 0 {
			result.RefreshExpiry = refresh
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}
	if refreshRaw := strings.TrimSpace(os.Getenv(EnvRefreshExpiry)); refreshRaw != "" {
		if refresh, errParse := time.ParseDuration(refreshRaw); errParse == nil && refresh > 0 {
			result.RefreshExpiry = refresh
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultAccessExpiry
	}
	if result.RefreshExpiry <= 0 {
		result.RefreshExpiry = defaultRefreshExpiry
	}
	return result, nil
}

// LoadCookieConfig loads cookie settings from the config file.
func LoadCookieConfig(configPath string) (CookieConfig, error) {
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return CookieConfig{}, errRead
	}
	return cfg.Cookie, nil
}

// LoadRedisConfig loads Redis settings from the config file with env
// overrides.
func LoadRedisConfig(configPath string) (RedisConfig, error) {
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return RedisConfig{}, errRead
	}
	result := cfg.Redis
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		result.Addr = addr
	}
	if password := strings.TrimSpace(os.Getenv(EnvRedisPassword)); password != "" {
		result.Password = password
	}
	return result, nil
}

// Default request caps used when the config omits them.
const (
	defaultObtainPerMinute = 10
	defaultOTPPerMinute    = 3
)

// LoadRateLimitConfig loads request caps from the config file.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	result := RateLimitConfig{
		ObtainPerMinute: defaultObtainPerMinute,
		OTPPerMinute:    defaultOTPPerMinute,
	}
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return result, errRead
	}
	if cfg.RateLimit.ObtainPerMinute > 0 {
		result.ObtainPerMinute = cfg.RateLimit.ObtainPerMinute
	}
	if cfg.RateLimit.OTPPerMinute > 0 {
		result.OTPPerMinute = cfg.RateLimit.OTPPerMinute
	}
	return result, nil
}

// LoadBootstrapConfig loads first-run superuser settings from the config
// file with env overrides.
func LoadBootstrapConfig(configPath string) (BootstrapConfig, error) {
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return BootstrapConfig{}, errRead
	}
	result := cfg.Bootstrap
	if email := strings.TrimSpace(os.Getenv(EnvBootstrapEmail)); email != "" {
		result.Email = email
	}
	if password := strings.TrimSpace(os.Getenv(EnvBootstrapPassword)); password != "" {
		result.Password = password
	}
	return result, nil
}
