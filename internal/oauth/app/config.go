package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Optional: issuer claim for signed tokens

	AuthorizeRoute   string // Optional: authorize endpoint path (default: /oauth/authorize)
	AccessTokenRoute string // Optional: token endpoint path (default: /oauth/access_token)

	CodeTTL       time.Duration // Optional: authorization code lifetime (default: 10m)
	AccessTTL     time.Duration // Optional: access token lifetime (default: 1h)
	TokenStrategy string        // Optional: token strategy (opaque, signed) (default: opaque)
	JWTSecret     string        // Optional: HMAC secret; non-empty selects the signed strategy
	ClientsFile   string        // Optional: path to a JSON file of clients seeded at startup
	DatabaseFile  string        // Optional: path to SQLite database file (empty: in-memory store)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:           getEnvOrDefault("OAUTH_ISSUER", "oauth2-server"),
		AuthorizeRoute:   os.Getenv("OAUTH_AUTHORIZE_ROUTE"),
		AccessTokenRoute: os.Getenv("OAUTH_ACCESS_TOKEN_ROUTE"),

		CodeTTL:       getEnvDurationOrDefault("OAUTH_CODE_TTL", 10*time.Minute),
		AccessTTL:     getEnvDurationOrDefault("OAUTH_ACCESS_TOKEN_TTL", time.Hour),
		TokenStrategy: getEnvOrDefault("OAUTH_TOKEN_STRATEGY", "opaque"),
		JWTSecret:     os.Getenv("OAUTH_JWT_SECRET"),
		ClientsFile:   os.Getenv("OAUTH_CLIENTS_FILE"),
		DatabaseFile:  os.Getenv("OAUTH_DATABASE_FILE"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// A secret implies the signed strategy, whatever the strategy knob says.
	if cfg.JWTSecret != "" {
		cfg.TokenStrategy = "signed"
	}

	return cfg
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
