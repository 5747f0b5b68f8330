package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOTSHARP_API_URL", "")
	t.Setenv("GLOBAL_ERROR_DURATION", "")

	cfg := Load()

	assert.Equal(t, "http://localhost:5500", cfg.APIBaseURL)
	assert.Equal(t, TransportWebSocket, cfg.Transport)
	assert.Equal(t, 2500*time.Millisecond, cfg.GlobalErrorDuration)
	assert.Equal(t, 100, cfg.NotificationCapacity)
	assert.Equal(t, 120, cfg.NotificationMaxLength)
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.OIDCScopes)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BOTSHARP_API_URL", "https://bot.example.com/")
	t.Setenv("BOTSHARP_TRANSPORT", TransportNATS)
	t.Setenv("GLOBAL_ERROR_DURATION", "1s")
	t.Setenv("NOTIFICATION_CAPACITY", "10")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("OIDC_SCOPES", "openid, offline_access")
	t.Setenv("LOCAL_RATE_LIMIT_REQUESTS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "https://bot.example.com", cfg.APIBaseURL)
	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.Equal(t, time.Second, cfg.GlobalErrorDuration)
	assert.Equal(t, 10, cfg.NotificationCapacity)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, []string{"openid", "offline_access"}, cfg.OIDCScopes)
	assert.Equal(t, 120, cfg.RateLimitRequests)
	assert.Equal(t, "https://bot.example.com/token", cfg.LegacyTokenURL())
}

func TestOIDCEndpoints(t *testing.T) {
	cfg := &Config{OIDCAuthority: "https://sso.example.com", OIDCRealm: "acme"}

	ep := cfg.OIDC()

	assert.Equal(t, "https://sso.example.com/realms/acme", ep.Issuer)
	assert.Equal(t, "https://sso.example.com/realms/acme/protocol/openid-connect/auth", ep.Authorization)
	assert.Equal(t, "https://sso.example.com/realms/acme/protocol/openid-connect/token", ep.Token)
	assert.Equal(t, "https://sso.example.com/realms/acme/protocol/openid-connect/userinfo", ep.UserInfo)
	assert.Equal(t, "https://sso.example.com/realms/acme/protocol/openid-connect/logout", ep.EndSession)
}
