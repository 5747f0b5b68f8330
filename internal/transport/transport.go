// Package transport defines the managed bidirectional connection the event
// channel runs on. Implementations reconnect on their own and keep
// delivering to the same Sink across reconnects.
package transport

import (
	"context"
	"net/url"
)

// State is the lifecycle state of a connection.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Target is what a connection is bound to. The token is read once when the
// connection is established.
type Target struct {
	Endpoint       string
	ConversationID string
	Token          string
}

// URL returns the endpoint with the conversation-id and access_token query
// parameters appended.
func (t Target) URL() (string, error) {
	u, err := url.Parse(t.Endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("conversation-id", t.ConversationID)
	q.Set("access_token", t.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Sink receives everything a connection produces. Deliver is called
// sequentially, in arrival order.
type Sink interface {
	// Deliver hands over one server-pushed event. payload is the raw JSON
	// argument of the event.
	Deliver(event string, payload []byte)
	// StateChanged reports lifecycle transitions after the initial dial.
	StateChanged(state State, err error)
}

// Conn is an established connection.
type Conn interface {
	// Close shuts the connection down and stops reconnecting.
	Close(ctx context.Context) error
}

// Dialer establishes connections.
type Dialer interface {
	Dial(ctx context.Context, target Target, sink Sink) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, target Target, sink Sink) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, target Target, sink Sink) (Conn, error) {
	return f(ctx, target, sink)
}
