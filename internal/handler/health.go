// Package handler provides the HTTP handlers of the local companion API a
// browser UI uses to follow the client's session, channel and notifications.
package handler

import (
	"net/http"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
)

// ChannelStatus is the read side of the event channel.
type ChannelStatus interface {
	State() transport.State
	ConversationID() string
	ActiveStreams() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	channel ChannelStatus
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(channel ChannelStatus) *HealthHandler {
	return &HealthHandler{
		channel: channel,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.channel == nil || h.channel.State() != transport.StateOpen {
		state := transport.StateClosed
		if h.channel != nil {
			state = h.channel.State()
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "hub " + state.String(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "ready",
		"conversation_id": h.channel.ConversationID(),
	})
}
