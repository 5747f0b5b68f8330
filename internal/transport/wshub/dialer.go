// Package wshub connects the event channel to the platform's chat hub over a
// websocket speaking the hub JSON protocol.
package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/metrics"
)

const (
	defaultPingInterval     = 15 * time.Second
	defaultHandshakeTimeout = 15 * time.Second
	readLimit               = 4 << 20
)

// Dialer opens hub connections.
type Dialer struct {
	httpClient       *http.Client
	newBackOff       func() backoff.BackOff
	pingInterval     time.Duration
	handshakeTimeout time.Duration
	logger           *logger.Logger
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithHTTPClient sets the client used for the websocket upgrade.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dialer) { d.httpClient = c }
}

// WithBackOff sets the reconnect policy. A policy that returns backoff.Stop
// makes the connection give up and report StateClosed.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(d *Dialer) { d.newBackOff = fn }
}

// WithPingInterval sets the keep-alive interval.
func WithPingInterval(interval time.Duration) Option {
	return func(d *Dialer) { d.pingInterval = interval }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dialer) { d.logger = logger.OrNop(l).Component("wshub") }
}

// NewDialer creates a dialer with exponential reconnect backoff.
func NewDialer(opts ...Option) *Dialer {
	d := &Dialer{
		newBackOff:       defaultBackOff,
		pingInterval:     defaultPingInterval,
		handshakeTimeout: defaultHandshakeTimeout,
		logger:           logger.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	return b
}

// Dial connects and performs the hub handshake. The returned connection
// reconnects on its own until closed.
func (d *Dialer) Dial(ctx context.Context, target transport.Target, sink transport.Sink) (transport.Conn, error) {
	ws, rest, err := d.connect(ctx, target)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c := &conn{
		dialer: d,
		target: target,
		sink:   sink,
		ctx:    connCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: d.logger.WithConversation(target.ConversationID),
	}
	c.ws = ws
	go c.run(ws, rest)
	return c, nil
}

func (d *Dialer) connect(ctx context.Context, target transport.Target) (*websocket.Conn, []byte, error) {
	u, err := target.URL()
	if err != nil {
		return nil, nil, fmt.Errorf("hub url: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, d.handshakeTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(hctx, u, &websocket.DialOptions{HTTPClient: d.httpClient})
	if err != nil {
		return nil, nil, fmt.Errorf("dialing hub: %w", err)
	}
	ws.SetReadLimit(readLimit)

	if err := ws.Write(hctx, websocket.MessageText, handshakeRequest); err != nil {
		ws.CloseNow()
		return nil, nil, fmt.Errorf("sending handshake: %w", err)
	}
	_, data, err := ws.Read(hctx)
	if err != nil {
		ws.CloseNow()
		return nil, nil, fmt.Errorf("reading handshake: %w", err)
	}
	rest, err := parseHandshake(data)
	if err != nil {
		ws.Close(websocket.StatusPolicyViolation, "handshake failed")
		return nil, nil, err
	}
	return ws, rest, nil
}

type conn struct {
	dialer *Dialer
	target transport.Target
	sink   transport.Sink
	logger *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu sync.Mutex
	ws *websocket.Conn
}

// Close stops reconnecting, closes the socket and waits for the read loop.
// Errors from the close handshake are logged, not returned.
func (c *conn) Close(ctx context.Context) error {
	c.cancel()

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws != nil {
		if err := ws.Close(websocket.StatusNormalClosure, ""); err != nil {
			c.logger.Debug("hub close handshake incomplete", zap.Error(err))
		}
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *conn) run(ws *websocket.Conn, pending []byte) {
	defer close(c.done)

	for {
		err := c.serve(ws, pending)
		pending = nil
		ws.CloseNow()
		if c.ctx.Err() != nil {
			return
		}

		var ce *closeError
		if errors.As(err, &ce) && !ce.allowReconnect {
			c.logger.Warn("hub closed the connection", zap.Error(err))
			c.sink.StateChanged(transport.StateClosed, err)
			return
		}

		c.logger.Warn("hub connection lost, reconnecting", zap.Error(err))
		c.sink.StateChanged(transport.StateReconnecting, err)

		next, rest, rerr := c.reconnect()
		if rerr != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Error("hub reconnect failed", zap.Error(rerr))
			c.sink.StateChanged(transport.StateClosed, rerr)
			return
		}

		c.mu.Lock()
		if c.ctx.Err() != nil {
			c.mu.Unlock()
			next.CloseNow()
			return
		}
		c.ws = next
		c.mu.Unlock()

		metrics.HubReconnectsTotal.Inc()
		c.logger.Info("hub reconnected")
		c.sink.StateChanged(transport.StateOpen, nil)

		ws, pending = next, rest
	}
}

type dialResult struct {
	ws   *websocket.Conn
	rest []byte
}

func (c *conn) reconnect() (*websocket.Conn, []byte, error) {
	b := backoff.WithContext(c.dialer.newBackOff(), c.ctx)
	res, err := backoff.RetryNotifyWithData(func() (dialResult, error) {
		ws, rest, err := c.dialer.connect(c.ctx, c.target)
		return dialResult{ws: ws, rest: rest}, err
	}, b, func(err error, wait time.Duration) {
		c.logger.Debug("hub reconnect attempt failed", zap.Error(err), zap.Duration("retry_in", wait))
	})
	if err != nil {
		return nil, nil, err
	}
	return res.ws, res.rest, nil
}

// serve reads until the socket fails, the server closes, or the connection
// is closed locally.
func (c *conn) serve(ws *websocket.Conn, pending []byte) error {
	ctx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	go c.keepAlive(ctx, ws)

	if err := c.dispatch(pending); err != nil {
		ws.CloseNow()
		return err
	}
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return err
		}
		if err := c.dispatch(data); err != nil {
			ws.CloseNow()
			return err
		}
	}
}

func (c *conn) dispatch(data []byte) error {
	for _, rec := range splitRecords(data) {
		var f frame
		if err := json.Unmarshal(rec, &f); err != nil {
			c.logger.Warn("dropping unreadable hub message", zap.Error(err))
			continue
		}
		switch f.Type {
		case typeInvocation:
			var payload []byte
			if len(f.Arguments) > 0 {
				payload = f.Arguments[0]
			}
			c.sink.Deliver(f.Target, payload)
		case typePing, typeStreamItem, typeCompletion:
		case typeClose:
			return &closeError{message: f.Error, allowReconnect: f.AllowReconnect}
		default:
			c.logger.Debug("ignoring hub message", zap.Int("type", f.Type))
		}
	}
	return nil
}

func (c *conn) keepAlive(ctx context.Context, ws *websocket.Conn) {
	if c.dialer.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.dialer.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.Write(ctx, websocket.MessageText, pingMessage); err != nil {
				return
			}
		}
	}
}
