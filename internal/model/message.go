package model

import "encoding/json"

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleFunction  Role = "function"
)

// Sender identifies who authored a message.
type Sender struct {
	ID       string `json:"id,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     Role   `json:"role"`
}

// RichMessage is the structured body of rich content.
type RichMessage struct {
	RichType     string            `json:"rich_type,omitempty"`
	Text         string            `json:"text,omitempty"`
	Options      []json.RawMessage `json:"options,omitempty"`
	Buttons      []json.RawMessage `json:"buttons,omitempty"`
	Elements     []json.RawMessage `json:"elements,omitempty"`
	QuickReplies []QuickReply      `json:"quick_replies,omitempty"`
}

// QuickReply is one quick-reply element.
type QuickReply struct {
	ContentType string `json:"content_type,omitempty"`
	Title       string `json:"title,omitempty"`
	Payload     string `json:"payload,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// RichContent carries non-plain-text message content.
type RichContent struct {
	MessagingType    string       `json:"messaging_type,omitempty"`
	FillPostback     bool         `json:"fill_postback,omitempty"`
	Editor           string       `json:"editor,omitempty"`
	EditorAttributes *string      `json:"editor_attributes,omitempty"`
	Message          *RichMessage `json:"message,omitempty"`
}

// ChatMessage is a conversation message pushed by the hub. A message is
// either delivered complete or streamed as fragments sharing MessageID.
type ChatMessage struct {
	// Identity
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`

	// Content
	Sender               *Sender         `json:"sender,omitempty"`
	Text                 string          `json:"text"`
	Editor               string          `json:"editor,omitempty"`
	Function             string          `json:"function,omitempty"`
	RichContent          *RichContent    `json:"rich_content,omitempty"`
	PostActionDisclaimer string          `json:"post_action_disclaimer,omitempty"`
	Data                 json.RawMessage `json:"data,omitempty"`
	HasMessageFiles      bool            `json:"has_message_files,omitempty"`
	IsChatMessage        bool            `json:"is_chat_message,omitempty"`

	// Timestamps
	CreatedAt *Timestamp `json:"created_at,omitempty"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty"`
}

// ConversationKey implements the hub's conversation scoping.
func (m *ChatMessage) ConversationKey() string {
	return m.ConversationID
}

// SenderRole returns the sender role, or "" when no sender is set.
func (m *ChatMessage) SenderRole() Role {
	if m.Sender == nil {
		return ""
	}
	return m.Sender.Role
}

// RichText returns rich_content.message.text, or "".
func (m *ChatMessage) RichText() string {
	if m.RichContent == nil || m.RichContent.Message == nil {
		return ""
	}
	return m.RichContent.Message.Text
}

// Clone returns a copy that shares no mutable pointers with m.
func (m *ChatMessage) Clone() *ChatMessage {
	if m == nil {
		return nil
	}
	c := *m
	if m.Sender != nil {
		s := *m.Sender
		c.Sender = &s
	}
	if m.RichContent != nil {
		rc := *m.RichContent
		if rc.Message != nil {
			rm := *rc.Message
			rc.Message = &rm
		}
		c.RichContent = &rc
	}
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		c.CreatedAt = &t
	}
	if m.UpdatedAt != nil {
		t := *m.UpdatedAt
		c.UpdatedAt = &t
	}
	if m.Data != nil {
		c.Data = append(json.RawMessage(nil), m.Data...)
	}
	return &c
}

// NotificationEvent is a generic notification pushed by the hub.
type NotificationEvent struct {
	ChatMessage
	Title   string `json:"title,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// SendMessageRequest is the body posted to send a user message.
type SendMessageRequest struct {
	Text     string              `json:"text"`
	Payload  string              `json:"payload,omitempty"`
	States   []ConversationState `json:"states,omitempty"`
	Postback *Postback           `json:"postback,omitempty"`
}

// Postback references a message action.
type Postback struct {
	FunctionName string `json:"functionName,omitempty"`
	Payload      string `json:"payload,omitempty"`
	ParentID     string `json:"parentId,omitempty"`
}

// Dialog is one entry of a conversation history.
type Dialog struct {
	ChatMessage
	Payload string `json:"payload,omitempty"`
}
