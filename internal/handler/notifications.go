package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/middleware"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/notify"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
)

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	center *notify.Center
	logger *logger.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(center *notify.Center, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		center: center,
		logger: logger.OrNop(log).Component("notifications"),
	}
}

// List handles GET /notifications
// Supports ?unread=true to return unread items only.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	st := h.center.Snapshot()

	if r.URL.Query().Get("unread") == "true" {
		unread := make([]model.Notification, 0, st.UnreadCount)
		for _, n := range st.Items {
			if !n.Read {
				unread = append(unread, n)
			}
		}
		st.Items = unread
	}

	writeJSON(w, http.StatusOK, st)
}

// MarkRead handles POST /notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateNotificationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, ok := h.center.Get(id); !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}

	h.center.MarkAsRead(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]int{
		"unread_count": h.center.UnreadCount(),
	})
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.center.MarkAllAsRead(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{
		"unread_count": 0,
	})
}

// Delete handles DELETE /notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateNotificationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.center.Remove(r.Context(), id) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}

	h.logger.Debug("notification removed",
		zap.String("id", id),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /notifications
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.center.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
