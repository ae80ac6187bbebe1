package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Notify        NotifyConfig
	SMTP          SMTPConfig
	Maintenance   MaintenanceConfig
	Observability ObservabilityConfig
	Timezone      string
	IsProduction  bool
}

type ServerConfig struct {
	BindAddress    string
	Port           string
	AllowOrigins   string
	TrustedProxies []string
}

type DatabaseConfig struct {
	Path string
}

type StorageConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RateLimitConfig holds per-window hit budgets for the three limiter
// families applied at the HTTP boundary.
type RateLimitConfig struct {
	Backend  string // sql, memory or redis
	RedisURL string
	Window   time.Duration
	IP       int64
	User     int64
	Resource int64
}

type NotifyConfig struct {
	Disabled bool
	Workers  int
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

type MaintenanceConfig struct {
	SweepSchedule   string
	CleanupSchedule string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsToken   string
	LogLevel       string
	LogFormat      string
}

const (
	RateLimitBackendSQL    = "sql"
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

func Load() *Config {
	loadDotEnvIfPresent()

	isProd := getEnv("ENVIRONMENT", "development") == "production"
	defaultSecret := ""
	if !isProd {
		defaultSecret = "dev-secret-change-in-production"
	}
	defaultBindAddress := "0.0.0.0"
	if isProd {
		// In production we default to loopback and rely on a reverse proxy.
		defaultBindAddress = "127.0.0.1"
	}
	defaultLogFormat := "console"
	if isProd {
		defaultLogFormat = "json"
	}

	return &Config{
		IsProduction: isProd,
		Server: ServerConfig{
			BindAddress:    getEnv("SERVER_BIND_ADDRESS", defaultBindAddress),
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowOrigins:   getEnv("ALLOW_ORIGINS", "http://localhost:5173"),
			TrustedProxies: splitCSV(getEnv("TRUSTED_PROXIES", "127.0.0.1,::1")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./storage/filevault.db"),
		},
		Storage: StorageConfig{
			Path: getEnv("STORAGE_PATH", "./storage/files"),
		},
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(getEnv("JWT_SECRET", defaultSecret)),
			TokenTTL:  time.Duration(getEnvIntAny(24, "TOKEN_TTL_HOURS")) * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Backend:  strings.ToLower(strings.TrimSpace(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendSQL))),
			RedisURL: strings.TrimSpace(getEnv("REDIS_URL", "")),
			Window:   time.Duration(getEnvIntAny(60, "RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
			IP:       int64(getEnvIntAny(120, "RATE_LIMIT_IP")),
			User:     int64(getEnvIntAny(30, "RATE_LIMIT_USER")),
			Resource: int64(getEnvIntAny(60, "RATE_LIMIT_RESOURCE")),
		},
		Notify: NotifyConfig{
			Disabled: getEnvBool("LIMIT_NOTIFICATIONS_DISABLED", false),
			Workers:  getEnvIntAny(2, "NOTIFY_WORKERS"),
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(getEnv("SMTP_HOST", "")),
			Port:     strings.TrimSpace(getEnv("SMTP_PORT", "587")),
			From:     strings.TrimSpace(getEnv("SMTP_FROM", "no-reply@filevault.local")),
			Username: strings.TrimSpace(getEnv("SMTP_USERNAME", "")),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Maintenance: MaintenanceConfig{
			SweepSchedule:   getEnv("RATE_LIMIT_SWEEP_SCHEDULE", "*/5 * * * *"),
			CleanupSchedule: getEnv("LINK_CLEANUP_SCHEDULE", "0 * * * *"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvBool("METRICS_ENABLED", !isProd),
			MetricsToken:   strings.TrimSpace(getEnv("METRICS_TOKEN", "")),
			LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
			LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		},
		Timezone: strings.TrimSpace(getEnv("TIMEZONE", "Local")),
	}
}

// Location resolves Timezone. Calendar-day quotas are counted in this zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is valid for the current environment.
// In production, it enforces stricter requirements.
func (c *Config) Validate() error {
	if c.IsProduction {
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET environment variable is required in production")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.Server.AllowOrigins == "http://localhost:5173" {
			return errors.New("ALLOW_ORIGINS must be configured for production (localhost not allowed)")
		}
		if c.Server.AllowOrigins == "*" {
			return errors.New("ALLOW_ORIGINS must not be wildcard (*) in production")
		}
		if c.SMTP.Host == "" && !c.Notify.Disabled {
			return errors.New("SMTP_HOST is required in production unless LIMIT_NOTIFICATIONS_DISABLED=true")
		}
		if c.Observability.MetricsEnabled && c.Observability.MetricsToken == "" {
			return errors.New("METRICS_TOKEN is required in production when METRICS_ENABLED=true")
		}
	}

	if strings.TrimSpace(c.Server.BindAddress) == "" {
		return errors.New("SERVER_BIND_ADDRESS must not be empty")
	}

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return errors.New("SERVER_PORT must be a valid port number (1-65535)")
	}

	switch c.RateLimit.Backend {
	case RateLimitBackendSQL, RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.RateLimit.RedisURL == "" {
			return errors.New("REDIS_URL is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be one of sql, memory, redis (got %q)", c.RateLimit.Backend)
	}

	if c.RateLimit.Window <= 0 {
		return errors.New("RATE_LIMIT_WINDOW_SECONDS must be positive")
	}
	if c.RateLimit.IP < 1 || c.RateLimit.User < 1 || c.RateLimit.Resource < 1 {
		return errors.New("RATE_LIMIT_IP, RATE_LIMIT_USER and RATE_LIMIT_RESOURCE must be at least 1")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntAny(defaultValue int, keys ...string) int {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			if intVal, err := strconv.Atoi(value); err == nil {
				return intVal
			}
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func splitCSV(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		out = append(out, v)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func loadDotEnvIfPresent() {
	// #nosec G304 -- path is the hardcoded application dotenv location.
	content, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, rawLine := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
