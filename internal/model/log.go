package model

import "encoding/json"

// ContentLog is a conversation content log entry.
type ContentLog struct {
	ConversationID string     `json:"conversation_id"`
	MessageID      string     `json:"message_id,omitempty"`
	Name           string     `json:"name,omitempty"`
	AgentID        string     `json:"agent_id,omitempty"`
	Role           string     `json:"role,omitempty"`
	Source         string     `json:"source,omitempty"`
	Content        string     `json:"content"`
	CreatedAt      *Timestamp `json:"created_at,omitempty"`
}

// ConversationKey implements the hub's conversation scoping.
func (l *ContentLog) ConversationKey() string { return l.ConversationID }

// StateLog is a snapshot of conversation states.
type StateLog struct {
	ConversationID string          `json:"conversation_id"`
	MessageID      string          `json:"message_id,omitempty"`
	States         json.RawMessage `json:"states,omitempty"`
	CreatedAt      *Timestamp      `json:"created_at,omitempty"`
}

// ConversationKey implements the hub's conversation scoping.
func (l *StateLog) ConversationKey() string { return l.ConversationID }

// StateChange records one state value transition.
type StateChange struct {
	ConversationID     string     `json:"conversation_id"`
	MessageID          string     `json:"message_id,omitempty"`
	Name               string     `json:"name,omitempty"`
	BeforeValue        string     `json:"before_value,omitempty"`
	BeforeActiveRounds *int       `json:"before_active_rounds,omitempty"`
	AfterValue         string     `json:"after_value,omitempty"`
	AfterActiveRounds  *int       `json:"after_active_rounds,omitempty"`
	DataType           string     `json:"data_type,omitempty"`
	Source             string     `json:"source,omitempty"`
	CreatedAt          *Timestamp `json:"created_at,omitempty"`
}

// ConversationKey implements the hub's conversation scoping.
func (s *StateChange) ConversationKey() string { return s.ConversationID }

// AgentQueueLog records a change of the agent routing queue.
type AgentQueueLog struct {
	ConversationID string     `json:"conversation_id"`
	Log            string     `json:"log"`
	CreatedAt      *Timestamp `json:"created_at,omitempty"`
}

// ConversationKey implements the hub's conversation scoping.
func (l *AgentQueueLog) ConversationKey() string { return l.ConversationID }

// SenderAction values.
const (
	SenderActionMarkSeen  = 1
	SenderActionTypingOn  = 2
	SenderActionTypingOff = 3
)

// SenderAction signals typing indicators and similar transient actions.
type SenderAction struct {
	ConversationID string `json:"conversation_id"`
	SenderAction   int    `json:"sender_action"`
	Indication     string `json:"indication,omitempty"`
}

// ConversationKey implements the hub's conversation scoping.
func (a *SenderAction) ConversationKey() string { return a.ConversationID }

// MessageDeleted reports a message removed from a conversation.
type MessageDeleted struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// ConversationKey implements the hub's conversation scoping.
func (d *MessageDeleted) ConversationKey() string { return d.ConversationID }
