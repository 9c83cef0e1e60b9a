package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/GTDGit/gtd_esewa/pkg/esewa"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	// CORSAllowedHosts lists origin hosts allowed to call the API from a browser.
	CORSAllowedHosts []string

	DB     DatabaseConfig
	Redis  RedisConfig
	Esewa  EsewaConfig
	Worker WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// EsewaConfig contains merchant credentials and endpoints for eSewa ePay v2.
type EsewaConfig struct {
	// SecretKey signs every form and verifies every response. Never log it.
	SecretKey   string
	ProductCode string
	Production  bool
	FormURL     string
	StatusURL   string
	// AppBaseURL is where eSewa redirects the customer back to
	// (<AppBaseURL>/payment/success and /payment/failure).
	AppBaseURL    string
	StatusTimeout time.Duration
	// FormTTL is how long an issued, unpaid form is reused for the same order.
	FormTTL time.Duration
}

// SuccessURL returns the redirect target for completed payments.
func (c EsewaConfig) SuccessURL() string {
	return strings.TrimSuffix(c.AppBaseURL, "/") + "/payment/success"
}

// FailureURL returns the redirect target for failed or cancelled payments.
func (c EsewaConfig) FailureURL() string {
	return strings.TrimSuffix(c.AppBaseURL, "/") + "/payment/failure"
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	StatusCheckInterval   time.Duration
	StatusCheckStaleAfter time.Duration
	StatusCheckMaxAge     time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Missing .env is fine: production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.CORSAllowedHosts = getEnvList("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// eSewa: UAT endpoints and the published UAT key unless production is requested
	production := getEnvBool("ESEWA_PRODUCTION", false)
	formURL, statusURL, secretDefault := esewa.TestFormURL, esewa.TestStatusURL, esewa.UATSecretKey
	if production {
		formURL, statusURL, secretDefault = esewa.ProductionFormURL, esewa.ProductionStatusURL, ""
	}
	cfg.Esewa = EsewaConfig{
		SecretKey:   getEnv("ESEWA_SECRET_KEY", secretDefault),
		ProductCode: getEnv("ESEWA_PRODUCT_CODE", esewa.TestProductCode),
		Production:  production,
		FormURL:     getEnv("ESEWA_FORM_URL", formURL),
		StatusURL:   getEnv("ESEWA_STATUS_URL", statusURL),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:"+cfg.Port),
	}

	var err error
	if cfg.Esewa.StatusTimeout, err = parseDurationEnv("ESEWA_STATUS_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid ESEWA_STATUS_TIMEOUT: %w", err)
	}
	if cfg.Esewa.FormTTL, err = parseDurationEnv("PAYMENT_FORM_TTL", "15m"); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_FORM_TTL: %w", err)
	}

	// Workers (durations)
	if cfg.Worker.StatusCheckInterval, err = parseDurationEnv("STATUS_CHECK_INTERVAL", "1m"); err != nil {
		return nil, fmt.Errorf("invalid STATUS_CHECK_INTERVAL: %w", err)
	}
	if cfg.Worker.StatusCheckStaleAfter, err = parseDurationEnv("STATUS_CHECK_STALE_AFTER", "5m"); err != nil {
		return nil, fmt.Errorf("invalid STATUS_CHECK_STALE_AFTER: %w", err)
	}
	if cfg.Worker.StatusCheckMaxAge, err = parseDurationEnv("STATUS_CHECK_MAX_AGE", "24h"); err != nil {
		return nil, fmt.Errorf("invalid STATUS_CHECK_MAX_AGE: %w", err)
	}
	if cfg.Worker.StatusCheckInterval == 0 {
		return nil, errors.New("STATUS_CHECK_INTERVAL must be greater than zero")
	}

	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	if cfg.Esewa.SecretKey == "" {
		return nil, errors.New("ESEWA_SECRET_KEY must be set when ESEWA_PRODUCTION is enabled")
	}
	if production && cfg.Esewa.SecretKey == esewa.UATSecretKey {
		return nil, errors.New("ESEWA_SECRET_KEY is the public UAT key; set the merchant production key")
	}
	if cfg.Esewa.ProductCode == "" {
		return nil, errors.New("ESEWA_PRODUCT_CODE must not be empty")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvBool parses true/false style values, falling back to def.
func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvList splits a comma separated variable, dropping blank entries.
func getEnvList(key, def string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
