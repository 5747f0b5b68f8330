// Package config provides environment configuration for the chat client.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transport kinds.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	// Platform endpoints
	APIBaseURL string
	ChatHubURL string
	Transport  string

	// NATS transport settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string

	// OIDC settings
	OIDCAuthority             string
	OIDCRealm                 string
	OIDCClientID              string
	OIDCRedirectURL           string
	OIDCPostLogoutRedirectURL string
	OIDCScopes                []string

	// Durable client storage
	StorageDriver     string
	StorageSQLitePath string
	StorageRedisURL   string

	// Request pipeline
	HTTPTimeout         time.Duration
	GlobalErrorDuration time.Duration

	// Notifications
	NotificationCapacity  int
	NotificationMaxLength int
	PersistNotifications  bool

	// Local companion API
	ListenAddr        string
	CompanionSecret   string
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// OIDCEndpoints are the Keycloak-style endpoints derived from authority and realm.
type OIDCEndpoints struct {
	Issuer        string
	Authorization string
	Token         string
	UserInfo      string
	EndSession    string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Platform
		APIBaseURL: strings.TrimRight(getEnv("BOTSHARP_API_URL", "http://localhost:5500"), "/"),
		ChatHubURL: getEnv("BOTSHARP_CHAT_HUB_URL", "ws://localhost:5500/chatHub"),
		Transport:  getEnv("BOTSHARP_TRANSPORT", TransportWebSocket),

		// NATS
		NATSURL:      getEnv("BOTSHARP_NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),

		// OIDC
		OIDCAuthority:             strings.TrimRight(getEnv("OIDC_AUTHORITY", "http://localhost:8080"), "/"),
		OIDCRealm:                 getEnv("OIDC_REALM", "scisharp"),
		OIDCClientID:              getEnv("OIDC_CLIENT_ID", "botsharp-ui"),
		OIDCRedirectURL:           getEnv("OIDC_REDIRECT_URL", "http://localhost:5015/auth/callback"),
		OIDCPostLogoutRedirectURL: getEnv("OIDC_POST_LOGOUT_REDIRECT_URL", "http://localhost:5015"),
		OIDCScopes:                getListEnv("OIDC_SCOPES", []string{"openid", "profile", "email"}),

		// Storage
		StorageDriver:     getEnv("STORAGE_DRIVER", StorageSQLite),
		StorageSQLitePath: getEnv("STORAGE_SQLITE_PATH", "botsharp-client.db"),
		StorageRedisURL:   getEnv("STORAGE_REDIS_URL", "redis://localhost:6379/0"),

		// Request pipeline
		HTTPTimeout:         getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		GlobalErrorDuration: getDurationEnv("GLOBAL_ERROR_DURATION", 2500*time.Millisecond),

		// Notifications
		NotificationCapacity:  getIntEnv("NOTIFICATION_CAPACITY", 100),
		NotificationMaxLength: getIntEnv("NOTIFICATION_MAX_LENGTH", 120),
		PersistNotifications:  getBoolEnv("PERSIST_NOTIFICATIONS", true),

		// Local companion API
		ListenAddr:        getEnv("LISTEN_ADDR", "127.0.0.1:5015"),
		CompanionSecret:   getEnv("COMPANION_JWT_SECRET", ""),
		CORSOrigins:       getListEnv("COMPANION_CORS_ORIGINS", []string{"http://localhost:*", "http://127.0.0.1:*"}),
		RateLimitRequests: getIntEnv("LOCAL_RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("LOCAL_RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// OIDC returns the provider endpoints for the configured authority and realm.
func (c *Config) OIDC() OIDCEndpoints {
	issuer := c.OIDCAuthority + "/realms/" + c.OIDCRealm
	base := issuer + "/protocol/openid-connect"
	return OIDCEndpoints{
		Issuer:        issuer,
		Authorization: base + "/auth",
		Token:         base + "/token",
		UserInfo:      base + "/userinfo",
		EndSession:    base + "/logout",
	}
}

// LegacyTokenURL is the password login endpoint of the platform.
func (c *Config) LegacyTokenURL() string {
	return c.APIBaseURL + "/token"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
