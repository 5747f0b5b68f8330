package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/hub"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/notify"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/metrics"
)

// EventSource is the subscription side of the event channel.
type EventSource interface {
	Subscribe(kind hub.Kind, handler hub.Handler) *hub.Subscription
	Unsubscribe(sub *hub.Subscription) bool
	OnState(fn func(transport.State)) *hub.Subscription
}

// HubEvent is the SSE body of a forwarded hub event.
type HubEvent struct {
	ConversationID string `json:"conversation_id"`
	Payload        any    `json:"payload"`
}

// StateEvent is the SSE body of a channel state change.
type StateEvent struct {
	State string `json:"state"`
}

// HeartbeatEvent keeps idle SSE connections open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

type sseEvent struct {
	name string
	data any
}

// EventsHandler streams hub events and notification changes as SSE.
type EventsHandler struct {
	source    EventSource
	center    *notify.Center
	heartbeat time.Duration
	buffer    int
	logger    *logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(source EventSource, center *notify.Center, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		source:    source,
		center:    center,
		heartbeat: 30 * time.Second,
		buffer:    64,
		logger:    logger.OrNop(log).Component("events"),
	}
}

// Stream handles GET /events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// hub handlers run on the delivery goroutine and must never block it
	events := make(chan sseEvent, h.buffer)
	offer := func(ev sseEvent) {
		select {
		case events <- ev:
		default:
			h.logger.Warn("dropping event for slow SSE client", zap.String("event", ev.name))
		}
	}

	subs := make([]*hub.Subscription, 0, len(hub.Kinds)+1)
	for _, kind := range hub.Kinds {
		subs = append(subs, h.source.Subscribe(kind, func(ev hub.Event) {
			offer(sseEvent{name: string(ev.Kind), data: HubEvent{ConversationID: ev.ConversationID, Payload: ev.Payload}})
		}))
	}
	subs = append(subs, h.source.OnState(func(s transport.State) {
		offer(sseEvent{name: "state", data: StateEvent{State: s.String()}})
	}))
	defer func() {
		for _, sub := range subs {
			h.source.Unsubscribe(sub)
		}
	}()

	cancelWatch := h.center.Watch(func(st notify.State) {
		offer(sseEvent{name: "notifications", data: st})
	})
	defer cancelWatch()

	sendSSEEvent(w, flusher, "notifications", h.center.Snapshot())

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected")
			return

		case ev := <-events:
			if err := sendSSEEvent(w, flusher, ev.name, ev.data); err != nil {
				h.logger.Warn("failed to encode SSE event", zap.String("event", ev.name), zap.Error(err))
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
