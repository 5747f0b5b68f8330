package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/session"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
)

// LoginFlow is the interactive OIDC login.
type LoginFlow interface {
	LoginURL(ctx context.Context) (string, error)
	HandleCallback(ctx context.Context, code, state string) error
}

// SessionControl ends a session.
type SessionControl interface {
	Logout(ctx context.Context) error
}

// AuthHandler handles the OIDC redirect endpoints.
type AuthHandler struct {
	flow    LoginFlow
	session SessionControl
	onLogin func(ctx context.Context)
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler. onLogin, when set, runs after a
// successful callback.
func NewAuthHandler(flow LoginFlow, sess SessionControl, onLogin func(ctx context.Context), log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		flow:    flow,
		session: sess,
		onLogin: onLogin,
		logger:  logger.OrNop(log).Component("auth"),
	}
}

// Login handles GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		writeError(w, http.StatusNotFound, "interactive login is not configured")
		return
	}

	url, err := h.flow.LoginURL(r.Context())
	if err != nil {
		h.logger.Error("failed to build login url", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Callback handles GET /auth/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		writeError(w, http.StatusNotFound, "interactive login is not configured")
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.logger.Warn("identity provider returned an error",
			zap.String("error", e),
			zap.String("description", q.Get("error_description")),
		)
		writeError(w, http.StatusBadRequest, "login failed: "+e)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}

	ctx := r.Context()
	if err := h.flow.HandleCallback(ctx, code, state); err != nil {
		switch {
		case errors.Is(err, session.ErrStateMismatch), errors.Is(err, session.ErrMissingVerifier):
			h.logger.Warn("rejected login callback", zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid login state")
		default:
			h.logger.Error("login callback failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to complete login")
		}
		return
	}

	h.logger.Info("login completed")
	if h.onLogin != nil {
		h.onLogin(context.WithoutCancel(ctx))
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "authenticated",
	})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
