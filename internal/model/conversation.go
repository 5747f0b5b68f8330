// Package model defines the data structures exchanged with the agent platform.
package model

// Conversation represents a conversation thread with an agent.
type Conversation struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	User        *Sender             `json:"user,omitempty"`
	AgentID     string              `json:"agent_id"`
	AgentName   string              `json:"agent_name,omitempty"`
	Channel     string              `json:"channel,omitempty"`
	TaskID      string              `json:"task_id,omitempty"`
	Status      string              `json:"status,omitempty"`
	States      []ConversationState `json:"states,omitempty"`
	UpdatedTime *Timestamp          `json:"updated_time,omitempty"`
	CreatedTime *Timestamp          `json:"created_time,omitempty"`
}

// ConversationKey implements the hub's conversation scoping. The init
// event is matched on the conversation's own id.
func (c *Conversation) ConversationKey() string {
	return c.ID
}

// ConversationState is a key/value state attached to a conversation.
type ConversationState struct {
	Key          string `json:"key"`
	Value        string `json:"value"`
	ActiveRounds *int   `json:"active_rounds,omitempty"`
}

// NewConversationRequest is the body posted to start a conversation.
type NewConversationRequest struct {
	States []ConversationState `json:"states,omitempty"`
	TaskID string              `json:"taskId,omitempty"`
}
