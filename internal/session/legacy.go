package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/storage"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
)

// LegacyKey is the storage key of the legacy credential.
const LegacyKey = "session.legacy"

// legacyCredential is the persisted legacy session. Expires is unix
// milliseconds; zero means no expiry.
type legacyCredential struct {
	Token   string `json:"token"`
	Expires int64  `json:"expires,omitempty"`
}

// LegacySource authenticates with a password-login token. It cannot refresh.
type LegacySource struct {
	store      storage.Store
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
	logger     *logger.Logger
}

// NewLegacySource creates a legacy source. tokenURL is only needed for Login.
func NewLegacySource(store storage.Store, tokenURL string, httpClient *http.Client, log *logger.Logger) *LegacySource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &LegacySource{
		store:      store,
		tokenURL:   tokenURL,
		httpClient: httpClient,
		now:        time.Now,
		logger:     logger.OrNop(log).Component("session.legacy"),
	}
}

// Name returns "legacy".
func (s *LegacySource) Name() string { return "legacy" }

func (s *LegacySource) load(ctx context.Context) (legacyCredential, bool) {
	raw, err := s.store.Get(ctx, LegacyKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read legacy credential", zap.Error(err))
		}
		return legacyCredential{}, false
	}
	var cred legacyCredential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		s.logger.Warn("discarding unreadable legacy credential", zap.Error(err))
		return legacyCredential{}, false
	}
	return cred, cred.Token != ""
}

func (s *LegacySource) save(ctx context.Context, cred legacyCredential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, LegacyKey, string(data))
}

// Active reports whether a legacy token is stored.
func (s *LegacySource) Active(ctx context.Context) bool {
	_, ok := s.load(ctx)
	return ok
}

// Token returns the stored legacy token, or "".
func (s *LegacySource) Token(ctx context.Context) string {
	cred, _ := s.load(ctx)
	return cred.Token
}

// Valid reports whether a token is stored and, if it has an expiry, it is in the future.
func (s *LegacySource) Valid(ctx context.Context) bool {
	cred, ok := s.load(ctx)
	if !ok {
		return false
	}
	return cred.Expires == 0 || s.now().UnixMilli() < cred.Expires
}

// Refresh always fails: legacy tokens cannot be refreshed.
func (s *LegacySource) Refresh(context.Context) bool { return false }

// Logout clears the legacy credential.
func (s *LegacySource) Logout(ctx context.Context) error {
	return s.store.Delete(ctx, LegacyKey)
}

// SetToken stores an externally obtained token. The expiry is taken from the
// token's exp claim when it is a JWT.
func (s *LegacySource) SetToken(ctx context.Context, token string) error {
	cred := legacyCredential{Token: token}
	if exp, ok := jwtExpiry(token); ok {
		cred.Expires = exp.UnixMilli()
	}
	return s.save(ctx, cred)
}

type legacyTokenResponse struct {
	AccessToken string          `json:"access_token"`
	Expires     json.RawMessage `json:"expires"`
}

// Login exchanges email and password for a token using HTTP Basic auth.
func (s *LegacySource) Login(ctx context.Context, email, password string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(email, password)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s", ErrLoginFailed, resp.Status)
	}

	var result legacyTokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("%w: decoding token response: %v", ErrLoginFailed, err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrLoginFailed)
	}

	cred := legacyCredential{Token: result.AccessToken}
	if exp, ok := parseExpires(result.Expires); ok {
		cred.Expires = exp.UnixMilli()
	} else if exp, ok := jwtExpiry(result.AccessToken); ok {
		cred.Expires = exp.UnixMilli()
	}

	if err := s.save(ctx, cred); err != nil {
		return fmt.Errorf("storing legacy credential: %w", err)
	}

	s.logger.Info("legacy login succeeded", zap.String("email", email))
	return nil
}
