package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/metrics"
)

// Session is the token provider shared by the request pipeline and the
// event channel. OIDC takes precedence over legacy whenever it holds a token.
type Session struct {
	legacy *LegacySource
	oidc   *OIDCSource
	logger *logger.Logger

	// serializes refreshes so concurrent 401s exchange the refresh token once
	refreshMu sync.Mutex
}

// New creates a session. Either source may be nil.
func New(legacy *LegacySource, oidc *OIDCSource, log *logger.Logger) *Session {
	return &Session{
		legacy: legacy,
		oidc:   oidc,
		logger: logger.OrNop(log).Component("session"),
	}
}

// Legacy returns the legacy source, or nil.
func (s *Session) Legacy() *LegacySource { return s.legacy }

// OIDC returns the OIDC source, or nil.
func (s *Session) OIDC() *OIDCSource { return s.oidc }

// Source returns the authoritative credential source, or nil if none is configured.
func (s *Session) Source(ctx context.Context) CredentialSource {
	if s.oidc != nil && s.oidc.Active(ctx) {
		return s.oidc
	}
	if s.legacy != nil {
		return s.legacy
	}
	if s.oidc != nil {
		return s.oidc
	}
	return nil
}

// CurrentToken returns the bearer token of the authoritative source, or "".
// It performs no network calls.
func (s *Session) CurrentToken(ctx context.Context) string {
	src := s.Source(ctx)
	if src == nil {
		return ""
	}
	return src.Token(ctx)
}

// IsAuthenticated reports whether an OIDC session is valid or a legacy
// token exists and has not expired.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	if s.oidc != nil && s.oidc.Valid(ctx) {
		return true
	}
	return s.legacy != nil && s.legacy.Valid(ctx)
}

// Refresh refreshes the authoritative source. It never returns an error;
// false means the caller must re-authenticate.
func (s *Session) Refresh(ctx context.Context) bool {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	src := s.Source(ctx)
	if src == nil {
		metrics.RecordRefresh(false)
		return false
	}

	ok := src.Refresh(ctx)
	metrics.RecordRefresh(ok)
	if !ok {
		s.logger.Warn("session refresh failed", zap.String("source", src.Name()))
	}
	return ok
}

// RedirectToLogin starts interactive re-authentication.
func (s *Session) RedirectToLogin(ctx context.Context) error {
	if s.oidc == nil {
		return ErrNoLoginFlow
	}
	metrics.LoginRedirectsTotal.Inc()
	s.logger.Info("redirecting to login")
	return s.oidc.InitiateLogin(ctx)
}

// Logout clears every configured source.
func (s *Session) Logout(ctx context.Context) error {
	var firstErr error
	if s.legacy != nil {
		if err := s.legacy.Logout(ctx); err != nil {
			firstErr = err
		}
	}
	if s.oidc != nil {
		if err := s.oidc.Logout(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.logger.Info("session logged out")
	return firstErr
}

// UserInfo returns the OIDC userinfo document, or nil.
func (s *Session) UserInfo(ctx context.Context) *model.UserInfo {
	if s.oidc == nil {
		return nil
	}
	return s.oidc.UserInfo(ctx)
}
