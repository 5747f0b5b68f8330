package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/config"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/storage"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
)

// OIDC storage keys.
const (
	KeyAccessToken  = "oidc.access_token"
	KeyRefreshToken = "oidc.refresh_token"
	KeyIDToken      = "oidc.id_token"
	KeyState        = "oidc.state"
	KeyPKCEVerifier = "oidc.pkce_verifier"
	KeyUserInfo     = "oidc.user_info"
	KeyExpires      = "oidc.expires"
)

var oidcKeys = []string{
	KeyAccessToken, KeyRefreshToken, KeyIDToken, KeyState,
	KeyPKCEVerifier, KeyUserInfo, KeyExpires,
}

// OIDCConfig configures an OIDCSource.
type OIDCConfig struct {
	ClientID              string
	RedirectURL           string
	PostLogoutRedirectURL string
	Scopes                []string
	Endpoints             config.OIDCEndpoints
}

// OIDCConfigFrom builds an OIDCConfig from application configuration.
func OIDCConfigFrom(cfg *config.Config) OIDCConfig {
	return OIDCConfig{
		ClientID:              cfg.OIDCClientID,
		RedirectURL:           cfg.OIDCRedirectURL,
		PostLogoutRedirectURL: cfg.OIDCPostLogoutRedirectURL,
		Scopes:                cfg.OIDCScopes,
		Endpoints:             cfg.OIDC(),
	}
}

// OIDCSource holds an OpenID Connect session.
type OIDCSource struct {
	cfg        OIDCConfig
	oauth      *oauth2.Config
	store      storage.Store
	httpClient *http.Client
	nav        Navigator
	now        func() time.Time
	logger     *logger.Logger
}

// NewOIDCSource creates an OIDC source. nav receives login and logout URLs
// and may be nil when interactive flows are not used.
func NewOIDCSource(cfg OIDCConfig, store storage.Store, httpClient *http.Client, nav Navigator, log *logger.Logger) *OIDCSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OIDCSource{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.Endpoints.Authorization,
				TokenURL:  cfg.Endpoints.Token,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:      store,
		httpClient: httpClient,
		nav:        nav,
		now:        time.Now,
		logger:     logger.OrNop(log).Component("session.oidc"),
	}
}

// Name returns "oidc".
func (s *OIDCSource) Name() string { return "oidc" }

func (s *OIDCSource) get(ctx context.Context, key string) string {
	v, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to read oidc key", zap.String("key", key), zap.Error(err))
	}
	return v
}

// Active reports whether an access token is stored.
func (s *OIDCSource) Active(ctx context.Context) bool {
	return s.get(ctx, KeyAccessToken) != ""
}

// Token returns the stored access token, or "".
func (s *OIDCSource) Token(ctx context.Context) string {
	return s.get(ctx, KeyAccessToken)
}

// Expiry returns the stored access token expiry, if known.
func (s *OIDCSource) Expiry(ctx context.Context) (time.Time, bool) {
	raw := s.get(ctx, KeyExpires)
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Valid reports whether an access token is stored and not expired.
func (s *OIDCSource) Valid(ctx context.Context) bool {
	if !s.Active(ctx) {
		return false
	}
	if exp, ok := s.Expiry(ctx); ok && !s.now().Before(exp) {
		return false
	}
	return true
}

func (s *OIDCSource) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// Refresh exchanges the stored refresh token for a new token pair. On
// failure the stored credentials are cleared.
func (s *OIDCSource) Refresh(ctx context.Context) bool {
	refreshToken := s.get(ctx, KeyRefreshToken)
	if refreshToken == "" {
		return false
	}

	src := s.oauth.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		s.logger.Warn("token refresh failed", zap.Error(err))
		if cerr := s.clear(ctx); cerr != nil {
			s.logger.Warn("failed to clear oidc credentials", zap.Error(cerr))
		}
		return false
	}

	if err := s.storeTokens(ctx, tok); err != nil {
		s.logger.Error("failed to persist refreshed tokens", zap.Error(err))
		return false
	}

	s.logger.Info("token refreshed")
	return true
}

func (s *OIDCSource) storeTokens(ctx context.Context, tok *oauth2.Token) error {
	if tok.AccessToken == "" {
		return errors.New("token response has no access token")
	}
	if err := s.store.Set(ctx, KeyAccessToken, tok.AccessToken); err != nil {
		return err
	}
	if tok.RefreshToken != "" {
		if err := s.store.Set(ctx, KeyRefreshToken, tok.RefreshToken); err != nil {
			return err
		}
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		if err := s.store.Set(ctx, KeyIDToken, idToken); err != nil {
			return err
		}
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		if exp, ok := jwtExpiry(tok.AccessToken); ok {
			expiry = exp
		}
	}
	if expiry.IsZero() {
		return s.store.Delete(ctx, KeyExpires)
	}
	return s.store.Set(ctx, KeyExpires, strconv.FormatInt(expiry.UnixMilli(), 10))
}

// LoginURL prepares an authorization-code request with PKCE and returns the
// URL to open. State and verifier are persisted for HandleCallback.
func (s *OIDCSource) LoginURL(ctx context.Context) (string, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	if err := s.store.Set(ctx, KeyState, state); err != nil {
		return "", fmt.Errorf("storing oidc state: %w", err)
	}
	if err := s.store.Set(ctx, KeyPKCEVerifier, verifier); err != nil {
		return "", fmt.Errorf("storing pkce verifier: %w", err)
	}

	return s.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_mode", "query"),
	), nil
}

// InitiateLogin builds a login URL and hands it to the navigator.
func (s *OIDCSource) InitiateLogin(ctx context.Context) error {
	if s.nav == nil {
		return ErrNoLoginFlow
	}
	u, err := s.LoginURL(ctx)
	if err != nil {
		return err
	}
	return s.nav.Navigate(ctx, u)
}

// HandleCallback completes the authorization-code flow.
func (s *OIDCSource) HandleCallback(ctx context.Context, code, state string) error {
	if stored := s.get(ctx, KeyState); stored == "" || stored != state {
		return ErrStateMismatch
	}
	verifier := s.get(ctx, KeyPKCEVerifier)
	if verifier == "" {
		return ErrMissingVerifier
	}

	tok, err := s.oauth.Exchange(s.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	if err := s.storeTokens(ctx, tok); err != nil {
		return fmt.Errorf("storing tokens: %w", err)
	}

	if _, err := s.fetchUserInfo(ctx, tok.AccessToken); err != nil {
		s.logger.Warn("userinfo fetch failed", zap.Error(err))
	}

	return s.store.Delete(ctx, KeyState, KeyPKCEVerifier)
}

func (s *OIDCSource) fetchUserInfo(ctx context.Context, accessToken string) (*model.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoints.UserInfo, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo: %s", resp.Status)
	}

	var info model.UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}

	data, _ := json.Marshal(&info)
	if err := s.store.Set(ctx, KeyUserInfo, string(data)); err != nil {
		return nil, err
	}
	return &info, nil
}

// UserInfo returns the stored userinfo document, or nil.
func (s *OIDCSource) UserInfo(ctx context.Context) *model.UserInfo {
	raw := s.get(ctx, KeyUserInfo)
	if raw == "" {
		return nil
	}
	var info model.UserInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil
	}
	return &info
}

func (s *OIDCSource) clear(ctx context.Context) error {
	return s.store.Delete(ctx, oidcKeys...)
}

// EndSessionURL returns the provider logout URL for idToken.
func (s *OIDCSource) EndSessionURL(idToken string) string {
	if idToken == "" {
		return s.cfg.PostLogoutRedirectURL
	}
	q := url.Values{}
	q.Set("id_token_hint", idToken)
	q.Set("post_logout_redirect_uri", s.cfg.PostLogoutRedirectURL)
	return s.cfg.Endpoints.EndSession + "?" + q.Encode()
}

// Logout clears all OIDC keys and navigates to the provider's end-session
// endpoint when an id token was held.
func (s *OIDCSource) Logout(ctx context.Context) error {
	idToken := s.get(ctx, KeyIDToken)
	if err := s.clear(ctx); err != nil {
		return fmt.Errorf("clearing oidc credentials: %w", err)
	}
	if s.nav == nil {
		return nil
	}
	target := s.EndSessionURL(idToken)
	if target == "" {
		return nil
	}
	return s.nav.Navigate(ctx, target)
}
