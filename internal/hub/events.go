package hub

import "github.com/GreenShadeZhang/BotSharp-UI/internal/model"

// Kind is the name of a server-pushed hub event.
type Kind string

// Hub event kinds, named as the server pushes them.
const (
	KindConversationInit Kind = "OnConversationInitFromClient"
	KindClientMessage    Kind = "OnMessageReceivedFromClient"
	KindCsrMessage       Kind = "OnMessageReceivedFromCsr"
	KindAssistantMessage Kind = "OnMessageReceivedFromAssistant"
	KindAssistantStream  Kind = "OnStreamMessageReceivedFromAssistant"
	KindNotification     Kind = "OnNotificationGenerated"
	KindContentLog       Kind = "OnConversationContentLogGenerated"
	KindStateLog         Kind = "OnConversateStateLogGenerated"
	KindStateChange      Kind = "OnStateChangeGenerated"
	KindAgentQueue       Kind = "OnAgentQueueChanged"
	KindSenderAction     Kind = "OnSenderActionGenerated"
	KindMessageDeleted   Kind = "OnMessageDeleted"
)

// channel-local kinds, never pushed by the server
const (
	kindError Kind = "error"
	kindState Kind = "state"
)

// Kinds lists every server-pushed event kind.
var Kinds = []Kind{
	KindConversationInit,
	KindClientMessage,
	KindCsrMessage,
	KindAssistantMessage,
	KindAssistantStream,
	KindNotification,
	KindContentLog,
	KindStateLog,
	KindStateChange,
	KindAgentQueue,
	KindSenderAction,
	KindMessageDeleted,
}

// Known reports whether k is a server-pushed event kind.
func (k Kind) Known() bool {
	_, ok := decoders[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// Event is one accepted hub event. Payload is the decoded record:
//
//	KindConversationInit                       *model.Conversation
//	KindClientMessage, KindCsrMessage,
//	KindAssistantMessage, KindAssistantStream  *model.ChatMessage
//	KindNotification                           *model.NotificationEvent
//	KindContentLog                             *model.ContentLog
//	KindStateLog                               *model.StateLog
//	KindStateChange                            *model.StateChange
//	KindAgentQueue                             *model.AgentQueueLog
//	KindSenderAction                           *model.SenderAction
//	KindMessageDeleted                         *model.MessageDeleted
//
// For KindAssistantStream the payload is the accumulated message, not the
// raw fragment.
type Event struct {
	Kind           Kind
	ConversationID string
	Payload        any
}

// Message returns the payload as a chat message, or nil.
func (e Event) Message() *model.ChatMessage {
	m, _ := e.Payload.(*model.ChatMessage)
	return m
}

// Handler receives accepted events.
type Handler func(Event)
