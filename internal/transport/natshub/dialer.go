// Package natshub runs the event channel over NATS. Hub events are published
// on chathub.<conversation-id>.<event>; the client holds one wildcard
// subscription per conversation so events arrive in publish order.
package natshub

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/metrics"
)

// SubjectPrefix is the root of every hub subject.
const SubjectPrefix = "chathub"

// Subject returns the subject an event for a conversation is published on.
func Subject(conversationID, event string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, conversationID, event)
}

// ConversationFilter returns the wildcard subject for all events of a conversation.
func ConversationFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.*", SubjectPrefix, conversationID)
}

// eventName returns the event part of a hub subject.
func eventName(subject string) (string, bool) {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 || i == len(subject)-1 || !strings.HasPrefix(subject, SubjectPrefix+".") {
		return "", false
	}
	return subject[i+1:], true
}

// TLSConfig holds client certificate settings.
type TLSConfig struct {
	CAFile   string
	CertFile string
	KeyFile  string
}

// Dialer opens NATS hub connections. Target.Endpoint is the NATS URL and
// Target.Token is used for token authentication.
type Dialer struct {
	tls           TLSConfig
	reconnectWait time.Duration
	logger        *logger.Logger
}

// NewDialer creates a dialer.
func NewDialer(tlsCfg TLSConfig, log *logger.Logger) *Dialer {
	return &Dialer{
		tls:           tlsCfg,
		reconnectWait: 2 * time.Second,
		logger:        logger.OrNop(log).Component("natshub"),
	}
}

type conn struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	closed atomic.Bool
}

// Dial connects and subscribes to the conversation's events.
func (d *Dialer) Dial(ctx context.Context, target transport.Target, sink transport.Sink) (transport.Conn, error) {
	if target.ConversationID == "" || strings.ContainsAny(target.ConversationID, ".*> ") {
		return nil, fmt.Errorf("invalid conversation id %q for a nats subject", target.ConversationID)
	}

	c := &conn{}
	log := d.logger.WithConversation(target.ConversationID)

	opts := []nats.Option{
		nats.Name("botsharp-chatclient"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(d.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if c.closed.Load() {
				return
			}
			log.Warn("NATS disconnected", zap.Error(err))
			sink.StateChanged(transport.StateReconnecting, err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.HubReconnectsTotal.Inc()
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
			sink.StateChanged(transport.StateOpen, nil)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if c.closed.Load() {
				return
			}
			log.Warn("NATS connection closed", zap.Error(nc.LastError()))
			sink.StateChanged(transport.StateClosed, nc.LastError())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("NATS error", zap.String("subject", subject), zap.Error(err))
		}),
	}

	if d.tls.CAFile != "" && d.tls.CertFile != "" && d.tls.KeyFile != "" {
		tlsConfig, err := createTLSConfig(d.tls.CAFile, d.tls.CertFile, d.tls.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if target.Token != "" {
		opts = append(opts, nats.Token(target.Token))
	}

	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(target.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sub, err := nc.Subscribe(ConversationFilter(target.ConversationID), func(msg *nats.Msg) {
		event, ok := eventName(msg.Subject)
		if !ok {
			log.Debug("ignoring message on unexpected subject", zap.String("subject", msg.Subject))
			return
		}
		sink.Deliver(event, msg.Data)
	})
	if err != nil {
		c.closed.Store(true)
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	c.nc = nc
	c.sub = sub
	return c, nil
}

// Close drains the subscription and closes the connection.
func (c *conn) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if uerr := c.sub.Unsubscribe(); uerr != nil && !errors.Is(uerr, nats.ErrConnectionClosed) {
		err = uerr
	}
	c.nc.Close()

	if ctxErr := ctx.Err(); ctxErr != nil && err == nil {
		err = ctxErr
	}
	return err
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
