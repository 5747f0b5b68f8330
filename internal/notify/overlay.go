package notify

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/hub"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
)

// DefaultMaxLength is the number of characters kept from a notification
// body before it is cut and suffixed with an ellipsis.
const DefaultMaxLength = 120

const ellipsis = "..."

// Titles used when an event carries none.
const (
	TitleAssistant = "Assistant message"
	TitleUser      = "User message"
	TitleSystem    = "System notification"
	TitleSuccess   = "Success"
	TitleError     = "Error"
	TitleWarning   = "Warning"
)

var systemData = json.RawMessage(`{"source":"system"}`)

// Overlay feeds hub notification events into a Center. Events for the
// conversation currently on screen are skipped.
type Overlay struct {
	center    *Center
	maxLength int
	logger    *logger.Logger

	mu      sync.Mutex
	current string
	subs    map[*hub.Channel]*hub.Subscription
}

// OverlayOption configures an Overlay.
type OverlayOption func(*Overlay)

// WithMaxLength overrides DefaultMaxLength.
func WithMaxLength(n int) OverlayOption {
	return func(o *Overlay) {
		if n > 0 {
			o.maxLength = n
		}
	}
}

// WithOverlayLogger sets the logger.
func WithOverlayLogger(log *logger.Logger) OverlayOption {
	return func(o *Overlay) { o.logger = logger.OrNop(log).Component("overlay") }
}

// NewOverlay creates an overlay writing to center.
func NewOverlay(center *Center, opts ...OverlayOption) *Overlay {
	o := &Overlay{
		center:    center,
		maxLength: DefaultMaxLength,
		logger:    logger.NewNop(),
		subs:      make(map[*hub.Channel]*hub.Subscription),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Center returns the list the overlay writes to.
func (o *Overlay) Center() *Center { return o.center }

// Attach subscribes to ch's notification events. Handlers registered on ch
// before Attach run first. Attaching the same channel twice is a no-op.
func (o *Overlay) Attach(ch *hub.Channel) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.subs[ch]; ok {
		return
	}
	o.subs[ch] = ch.OnNotification(func(ev *model.NotificationEvent) {
		o.HandleEvent(context.Background(), ev)
	})
}

// Detach drops every channel subscription and forgets the current
// conversation.
func (o *Overlay) Detach() {
	o.mu.Lock()
	subs := o.subs
	o.subs = make(map[*hub.Channel]*hub.Subscription)
	o.current = ""
	o.mu.Unlock()

	for ch, sub := range subs {
		ch.Unsubscribe(sub)
	}
}

// SetCurrentConversation sets the conversation whose notifications are
// already visible. An empty id disables suppression.
func (o *Overlay) SetCurrentConversation(conversationID string) {
	o.mu.Lock()
	o.current = conversationID
	o.mu.Unlock()
}

// CurrentConversation returns the suppressed conversation id.
func (o *Overlay) CurrentConversation() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// HandleEvent adds a notification for ev and returns its id. It returns
// false when ev has no text or belongs to the current conversation.
func (o *Overlay) HandleEvent(ctx context.Context, ev *model.NotificationEvent) (string, bool) {
	if ev == nil {
		return "", false
	}

	if current := o.CurrentConversation(); current != "" && ev.ConversationID == current {
		return "", false
	}

	text := EventText(ev)
	if text == "" {
		o.logger.Debug("dropping notification without text", zap.String("conversation_id", ev.ConversationID))
		return "", false
	}

	data, err := json.Marshal(ev)
	if err != nil {
		o.logger.Warn("failed to encode notification payload", zap.Error(err))
		data = nil
	}

	id := o.center.Add(ctx, model.Notification{
		Title:          EventTitle(ev),
		Message:        truncate(text, o.maxLength),
		Type:           notificationType(ev),
		ConversationID: ev.ConversationID,
		AgentID:        ev.AgentID,
		Data:           data,
	})
	return id, true
}

// AddSystemNotification adds a notification that did not come from the hub.
func (o *Overlay) AddSystemNotification(ctx context.Context, title, message string, typ model.NotificationType) string {
	if typ == "" {
		typ = model.NotificationInfo
	}
	return o.center.Add(ctx, model.Notification{
		Title:   title,
		Message: message,
		Type:    typ,
		Data:    systemData,
	})
}

// AddSuccess adds a success notification.
func (o *Overlay) AddSuccess(ctx context.Context, message string) string {
	return o.AddSystemNotification(ctx, TitleSuccess, message, model.NotificationSuccess)
}

// AddError adds an error notification.
func (o *Overlay) AddError(ctx context.Context, message string) string {
	return o.AddSystemNotification(ctx, TitleError, message, model.NotificationError)
}

// AddWarning adds a warning notification.
func (o *Overlay) AddWarning(ctx context.Context, message string) string {
	return o.AddSystemNotification(ctx, TitleWarning, message, model.NotificationWarning)
}

// EventText returns the body of ev: rich text, then text, then message.
func EventText(ev *model.NotificationEvent) string {
	if t := ev.RichText(); t != "" {
		return t
	}
	if ev.Text != "" {
		return ev.Text
	}
	return ev.Message
}

// EventTitle returns the title of ev, derived from the sender when unset.
func EventTitle(ev *model.NotificationEvent) string {
	if ev.Title != "" {
		return ev.Title
	}
	switch ev.SenderRole() {
	case model.RoleAssistant:
		return TitleAssistant
	case model.RoleUser:
		return TitleUser
	}
	if strings.EqualFold(ev.Type, string(model.NotificationSystem)) {
		return TitleSystem
	}
	return defaultTitle
}

func notificationType(ev *model.NotificationEvent) model.NotificationType {
	if t := model.NotificationType(strings.ToLower(ev.Type)); t.Valid() {
		return t
	}
	if ev.SenderRole() == model.RoleAssistant {
		return model.NotificationMessage
	}
	return model.NotificationInfo
}

// truncate cuts s to limit characters and appends an ellipsis.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + ellipsis
}
