// Package hub owns the real-time event channel of one conversation: the
// connection lifecycle, per-conversation filtering of every inbound event,
// reassembly of streamed assistant messages, and multi-subscriber dispatch.
package hub

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/metrics"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/tracing"
)

// TokenSource supplies the bearer token read once per Start.
type TokenSource interface {
	CurrentToken(ctx context.Context) string
}

// Subscription identifies a registered handler.
type Subscription struct {
	id      uint64
	kind    Kind
	handler Handler
}

// Kind returns the event kind the subscription listens to.
func (s *Subscription) Kind() Kind { return s.kind }

// Channel is the event channel. Subscriptions belong to the channel, not to
// a connection, and survive reconnects and restarts.
//
// Events are handled one at a time in arrival order. Handlers run on the
// transport's delivery goroutine and must not call Stop synchronously.
// Once Stop returns the stream accumulator is empty and no inbound event
// reaches a handler that has not already been called.
type Channel struct {
	dialer   transport.Dialer
	endpoint string
	tokens   TokenSource
	stream   *Reassembler
	tracer   trace.Tracer
	logger   *logger.Logger

	mu             sync.Mutex
	conn           transport.Conn
	conversationID string
	state          transport.State
	gen            uint64

	subMu  sync.RWMutex
	subs   map[Kind][]*Subscription
	nextID uint64

	dispatchMu sync.Mutex
}

// NewChannel creates a closed channel.
func NewChannel(dialer transport.Dialer, endpoint string, tokens TokenSource, log *logger.Logger) *Channel {
	return &Channel{
		dialer:   dialer,
		endpoint: endpoint,
		tokens:   tokens,
		stream:   NewReassembler(),
		tracer:   tracing.Tracer(),
		logger:   logger.OrNop(log).Component("hub"),
		state:    transport.StateClosed,
		subs:     make(map[Kind][]*Subscription),
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() transport.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConversationID returns the conversation the channel was last started with.
func (c *Channel) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// ActiveStreams returns the number of messages being reassembled.
func (c *Channel) ActiveStreams() int { return c.stream.Len() }

// Start opens a fresh connection bound to conversationID, closing any
// previous one first. Failures are logged and delivered to OnError
// subscribers; the channel is then left closed.
func (c *Channel) Start(ctx context.Context, conversationID string) {
	ctx, span := c.tracer.Start(ctx, "hub.Start",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	c.Stop(ctx)

	log := c.logger.WithConversation(conversationID)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.conversationID = conversationID
	c.mu.Unlock()
	c.setState(gen, transport.StateConnecting)

	target := transport.Target{
		Endpoint:       c.endpoint,
		ConversationID: conversationID,
		Token:          c.tokens.CurrentToken(ctx),
	}
	sink := &channelSink{channel: c, gen: gen, conversationID: conversationID}

	conn, err := c.dialer.Dial(ctx, target, sink)
	if err != nil {
		cerr := &ConnectionError{ConversationID: conversationID, Err: err}
		log.Error("failed to connect to hub", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		c.setState(gen, transport.StateClosed)
		c.emit(Event{Kind: kindError, ConversationID: conversationID, Payload: error(cerr)})
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if err := conn.Close(ctx); err != nil {
			log.Warn("failed to close superseded hub connection", zap.Error(err))
		}
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.setState(gen, transport.StateOpen)
	log.Info("connected to hub")
}

// Stop closes the connection and clears the stream accumulator. Transport
// errors during close are logged.
func (c *Channel) Stop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.gen++
	prev := c.state
	c.state = transport.StateClosed
	conversationID := c.conversationID
	// cleared under mu so an in-flight fragment cannot land after Stop
	discarded := c.stream.Clear()
	c.mu.Unlock()

	log := c.logger.WithConversation(conversationID)

	if conn != nil {
		if err := conn.Close(ctx); err != nil {
			log.Warn("error while closing hub connection", zap.Error(err))
		}
	}

	if discarded > 0 {
		log.Debug("discarded partial streamed messages", zap.Int("count", discarded))
	}

	if prev != transport.StateClosed {
		metrics.HubConnectionState.Set(float64(transport.StateClosed))
		c.emit(Event{Kind: kindState, ConversationID: conversationID, Payload: transport.StateClosed})
		log.Info("disconnected from hub")
	}
}

// Subscribe registers handler for kind. Handlers of one kind run in
// subscription order.
func (c *Channel) Subscribe(kind Kind, handler Handler) *Subscription {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.nextID++
	sub := &Subscription{id: c.nextID, kind: kind, handler: handler}
	c.subs[kind] = append(c.subs[kind], sub)
	return sub
}

// Unsubscribe removes a subscription, reporting whether it was registered.
func (c *Channel) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()

	list := c.subs[sub.kind]
	for i, s := range list {
		if s.id == sub.id {
			c.subs[sub.kind] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Channel) emit(ev Event) {
	for _, sub := range c.targets(ev.Kind) {
		sub.handler(ev)
	}
}

// emitCurrent is emit for inbound events: delivery stops as soon as the
// connection that produced ev is stopped or replaced.
func (c *Channel) emitCurrent(gen uint64, ev Event) {
	for _, sub := range c.targets(ev.Kind) {
		if !c.current(gen) {
			return
		}
		sub.handler(ev)
	}
}

func (c *Channel) targets(kind Kind) []*Subscription {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	targets := make([]*Subscription, len(c.subs[kind]))
	copy(targets, c.subs[kind])
	return targets
}

// whileCurrent runs fn under mu if gen is still current. Stop clears the
// stream accumulator under the same lock.
func (c *Channel) whileCurrent(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return false
	}
	fn()
	return true
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Channel) setState(gen uint64, state transport.State) {
	c.mu.Lock()
	if c.gen != gen || c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	conversationID := c.conversationID
	if state == transport.StateClosed {
		c.conn = nil
	}
	c.mu.Unlock()

	metrics.HubConnectionState.Set(float64(state))
	c.emit(Event{Kind: kindState, ConversationID: conversationID, Payload: state})
}

// handle decodes, filters and dispatches one inbound event.
func (c *Channel) handle(gen uint64, conversationID string, event string, payload []byte) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if !c.current(gen) {
		return
	}

	kind := Kind(event)
	if !kind.Known() {
		c.logger.Debug("ignoring unknown hub event", zap.String("event", event))
		return
	}

	rec, err := decode(kind, payload)
	if err != nil {
		merr := &MalformedPayloadError{Event: kind, Err: err}
		metrics.RecordHubEvent(event, metrics.EventMalformed)
		c.logger.Warn("dropping malformed hub event", zap.String("event", event), zap.Error(err))
		c.emit(Event{Kind: kindError, ConversationID: conversationID, Payload: error(merr)})
		return
	}

	if rec.ConversationKey() != conversationID {
		metrics.RecordHubEvent(event, metrics.EventFiltered)
		return
	}

	var out any = rec
	switch kind {
	case KindAssistantMessage:
		msg := rec.(*model.ChatMessage)
		if msg.SenderRole() != model.RoleAssistant {
			metrics.RecordHubEvent(event, metrics.EventFiltered)
			return
		}
		var superseded bool
		if !c.whileCurrent(gen, func() { superseded = c.stream.Complete(msg.MessageID) }) {
			return
		}
		if superseded {
			c.logger.Debug("complete message superseded stream",
				zap.String("conversation_id", conversationID),
				zap.String("message_id", msg.MessageID),
			)
		}
	case KindAssistantStream:
		msg := rec.(*model.ChatMessage)
		if msg.SenderRole() != model.RoleAssistant {
			metrics.RecordHubEvent(event, metrics.EventFiltered)
			return
		}
		if !c.whileCurrent(gen, func() { out = c.stream.Ingest(msg) }) {
			return
		}
	}

	metrics.RecordHubEvent(event, metrics.EventAccepted)
	c.emitCurrent(gen, Event{Kind: kind, ConversationID: conversationID, Payload: out})
}

// channelSink binds transport callbacks to one Start call. Callbacks from
// a stopped or replaced connection are ignored.
type channelSink struct {
	channel        *Channel
	gen            uint64
	conversationID string
}

func (s *channelSink) Deliver(event string, payload []byte) {
	s.channel.handle(s.gen, s.conversationID, event, payload)
}

func (s *channelSink) StateChanged(state transport.State, err error) {
	c := s.channel
	if !c.current(s.gen) {
		return
	}
	log := c.logger.WithConversation(s.conversationID)

	switch state {
	case transport.StateReconnecting:
		log.Warn("hub connection lost", zap.Error(err))
	case transport.StateOpen:
		log.Info("hub connection restored")
	case transport.StateClosed:
		log.Error("hub connection closed", zap.Error(err))
	}

	c.setState(s.gen, state)
	if state == transport.StateClosed && err != nil {
		cerr := &ConnectionError{ConversationID: s.conversationID, Err: err}
		c.emit(Event{Kind: kindError, ConversationID: s.conversationID, Payload: error(cerr)})
	}
}
