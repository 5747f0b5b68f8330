package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session errors
var (
	ErrStateMismatch   = errors.New("session: oidc state mismatch")
	ErrMissingVerifier = errors.New("session: pkce verifier not found")
	ErrNoLoginFlow     = errors.New("session: no interactive login flow configured")
	ErrLoginFailed     = errors.New("session: login failed")
)

// CredentialSource is one way of obtaining a bearer token.
type CredentialSource interface {
	// Name identifies the source in logs.
	Name() string
	// Active reports whether the source currently holds a session.
	Active(ctx context.Context) bool
	// Token returns the stored bearer token, or "".
	Token(ctx context.Context) string
	// Valid reports whether the token exists and has not expired.
	Valid(ctx context.Context) bool
	// Refresh obtains a new token. It never panics or returns an error;
	// false means the caller must re-authenticate.
	Refresh(ctx context.Context) bool
	// Logout clears the stored credentials.
	Logout(ctx context.Context) error
}

// Navigator hands a URL to whatever can open it (a browser, a terminal).
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

// jwtExpiry reads the exp claim of a JWT without verifying it. The client
// only uses it to predict expiry; the server remains the authority.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// parseExpires accepts unix milliseconds, unix seconds or an RFC 3339 string.
func parseExpires(raw json.RawMessage) (time.Time, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return time.Time{}, false
		}
		// anything below year ~2286 in seconds is treated as seconds
		if n < 1e10 {
			return time.Unix(n, 0), true
		}
		return time.UnixMilli(n), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
