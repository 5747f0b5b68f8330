package hub

import (
	"errors"
	"fmt"
)

// Channel errors. They are delivered to OnError subscribers and never
// returned from Start or Stop.
var (
	ErrConnection       = errors.New("hub: connection failed")
	ErrMalformedPayload = errors.New("hub: malformed event payload")
)

// ConnectionError reports that the transport could not be established or
// was lost for good.
type ConnectionError struct {
	ConversationID string
	Err            error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("hub: connection for conversation %q failed: %v", e.ConversationID, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is matches ErrConnection.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// MalformedPayloadError reports an inbound event that could not be decoded.
// The event is dropped.
type MalformedPayloadError struct {
	Event Kind
	Err   error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("hub: malformed %s payload: %v", e.Event, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// Is matches ErrMalformedPayload.
func (e *MalformedPayloadError) Is(target error) bool { return target == ErrMalformedPayload }
