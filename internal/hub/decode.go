package hub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
)

// record is a decoded payload scoped to a conversation.
type record interface {
	ConversationKey() string
}

var decoders = map[Kind]func() record{
	KindConversationInit: func() record { return &model.Conversation{} },
	KindClientMessage:    func() record { return &model.ChatMessage{} },
	KindCsrMessage:       func() record { return &model.ChatMessage{} },
	KindAssistantMessage: func() record { return &model.ChatMessage{} },
	KindAssistantStream:  func() record { return &model.ChatMessage{} },
	KindNotification:     func() record { return &model.NotificationEvent{} },
	KindContentLog:       func() record { return &model.ContentLog{} },
	KindStateLog:         func() record { return &model.StateLog{} },
	KindStateChange:      func() record { return &model.StateChange{} },
	KindAgentQueue:       func() record { return &model.AgentQueueLog{} },
	KindSenderAction:     func() record { return &model.SenderAction{} },
	KindMessageDeleted:   func() record { return &model.MessageDeleted{} },
}

// unwrapPayload accepts a JSON object or a JSON string holding one, which is
// how most events arrive.
func unwrapPayload(payload []byte) ([]byte, error) {
	data := bytes.TrimSpace(payload)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, err
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, errors.New("payload is not a JSON object")
	}
	return data, nil
}

// decode turns a raw event payload into its typed record.
func decode(kind Kind, payload []byte) (record, error) {
	newRecord, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", kind)
	}
	data, err := unwrapPayload(payload)
	if err != nil {
		return nil, err
	}
	rec := newRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
