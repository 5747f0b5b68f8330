package handler

import (
	"context"
	"net/http"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/interceptor"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/notify"
)

// FlagReader exposes the shared request flags.
type FlagReader interface {
	State() interceptor.FlagState
}

// Authenticator reports the session state.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
	UserInfo(ctx context.Context) *model.UserInfo
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Loading        bool            `json:"loading"`
	GlobalError    bool            `json:"global_error"`
	Channel        string          `json:"channel"`
	ConversationID string          `json:"conversation_id,omitempty"`
	ActiveStreams  int             `json:"active_streams"`
	Authenticated  bool            `json:"authenticated"`
	User           *model.UserInfo `json:"user,omitempty"`
	UnreadCount    int             `json:"unread_count"`
}

// StatusHandler reports what a UI needs to render its chrome.
type StatusHandler struct {
	flags   FlagReader
	channel ChannelStatus
	auth    Authenticator
	center  *notify.Center
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(flags FlagReader, channel ChannelStatus, auth Authenticator, center *notify.Center) *StatusHandler {
	return &StatusHandler{
		flags:   flags,
		channel: channel,
		auth:    auth,
		center:  center,
	}
}

// Status handles GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flags := h.flags.State()

	resp := StatusResponse{
		Loading:        flags.Loading,
		GlobalError:    flags.GlobalError,
		Channel:        h.channel.State().String(),
		ConversationID: h.channel.ConversationID(),
		ActiveStreams:  h.channel.ActiveStreams(),
		Authenticated:  h.auth.IsAuthenticated(ctx),
		UnreadCount:    h.center.UnreadCount(),
	}
	if resp.Authenticated {
		resp.User = h.auth.UserInfo(ctx)
	}

	writeJSON(w, http.StatusOK, resp)
}
