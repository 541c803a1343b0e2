package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is resolved in three layers: built-in defaults, then the optional
// YAML file named by WEB_CONFIG_FILE, then environment variables.
type Config struct {
	Env                 string        `yaml:"env"`                   // dev, staging, prod (default: dev)
	LogLevel            string        `yaml:"log_level"`             // debug, info, warn, error (default: info)
	LogFormat           string        `yaml:"log_format"`            // json, text (default: json)
	Port                int           `yaml:"port"`                  // HTTP server port (default: 3000)
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"` // default: 10s

	PublicURL string `yaml:"public_url"` // Externally visible base URL of this gateway

	KeycloakURL  string `yaml:"keycloak_url"`
	Realm        string `yaml:"keycloak_realm"`
	ClientID     string `yaml:"keycloak_client_id"`
	ClientSecret string `yaml:"keycloak_client_secret"`

	APIURL string `yaml:"api_url"` // Inventory backend base URL

	CookieSecret string `yaml:"cookie_secret"` // Required in prod; empty means an ephemeral key
	StateLenient bool   `yaml:"state_lenient"` // Accept callbacks without a stored state

	DatabaseFile         string        `yaml:"database_file"`         // Audit journal (default: web.db)
	AuditRetention       time.Duration `yaml:"audit_retention"`       // default: 720h
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"` // default: 1h

	RedisURL        string        `yaml:"redis_url"`         // Optional: shared catalog cache
	CatalogCacheTTL time.Duration `yaml:"catalog_cache_ttl"` // default: 30s
}

func defaultConfig() Config {
	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 3000,
		ShutdownGracePeriod:  10 * time.Second,
		PublicURL:            "http://localhost:3000",
		KeycloakURL:          "http://localhost:8180/auth",
		Realm:                "inventario-app",
		ClientID:             "inventario-client",
		APIURL:               "http://localhost:8080",
		DatabaseFile:         "web.db",
		AuditRetention:       30 * 24 * time.Hour,
		HousekeepingInterval: time.Hour,
		CatalogCacheTTL:      30 * time.Second,
	}
}

// LoadConfig loads .env (ENV_FILE_PATH, default .env) into the environment
// and resolves the configuration.
func LoadConfig() (Config, error) {
	loadDotEnv(getEnvOrDefault("ENV_FILE_PATH", ".env"))

	cfg := defaultConfig()

	if path := os.Getenv("WEB_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.PublicURL = strings.TrimSuffix(getEnvOrDefault("WEB_PUBLIC_URL", cfg.PublicURL), "/")
	cfg.KeycloakURL = getEnvOrDefault("KEYCLOAK_URL", cfg.KeycloakURL)
	cfg.Realm = getEnvOrDefault("KEYCLOAK_REALM", cfg.Realm)
	cfg.ClientID = getEnvOrDefault("KEYCLOAK_CLIENT_ID", cfg.ClientID)
	cfg.ClientSecret = getEnvOrDefault("KEYCLOAK_CLIENT_SECRET", cfg.ClientSecret)
	cfg.APIURL = getEnvOrDefault("API_URL", cfg.APIURL)
	cfg.CookieSecret = getEnvOrDefault("WEB_COOKIE_SECRET", cfg.CookieSecret)
	cfg.StateLenient = getEnvBoolOrDefault("WEB_STATE_LENIENT", cfg.StateLenient)
	cfg.DatabaseFile = getEnvOrDefault("WEB_DATABASE_FILE", cfg.DatabaseFile)
	cfg.AuditRetention = getEnvDurationOrDefault("AUDIT_RETENTION", cfg.AuditRetention)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)
	cfg.RedisURL = getEnvOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.CatalogCacheTTL = getEnvDurationOrDefault("CATALOG_CACHE_TTL", cfg.CatalogCacheTTL)

	return cfg, cfg.Validate()
}

// Validate rejects configurations the gateway cannot run with.
func (c Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"WEB_PUBLIC_URL": c.PublicURL,
		"KEYCLOAK_URL":   c.KeycloakURL,
		"API_URL":        c.APIURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if c.Realm == "" || c.ClientID == "" {
		errs = append(errs, errors.New("KEYCLOAK_REALM and KEYCLOAK_CLIENT_ID are required"))
	}
	if c.Env == "prod" && c.CookieSecret == "" {
		errs = append(errs, errors.New("WEB_COOKIE_SECRET is required in prod"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	return errors.Join(errs...)
}

// SecureCookies reports whether session cookies must carry the Secure flag.
func (c Config) SecureCookies() bool {
	return c.Env == "prod" || strings.HasPrefix(c.PublicURL, "https://")
}

func loadDotEnv(path string) {
	// A missing file is normal when the environment is injected.
	_ = godotenv.Load(path)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
