package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
)

func TestUnwrapPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{"object", `{"a":1}`, `{"a":1}`, false},
		{"string wrapped", `"{\"a\":1}"`, `{"a":1}`, false},
		{"padded", "  {\"a\":1}\n", `{"a":1}`, false},
		{"array", `[1,2]`, "", true},
		{"number", `42`, "", true},
		{"empty", ``, "", true},
		{"wrapped array", `"[1]"`, "", true},
		{"broken string", `"{\"a\"`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrapPayload([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecode_TypedRecords(t *testing.T) {
	rec, err := decode(KindAssistantStream, []byte(`"{\"message_id\":\"m1\",\"conversation_id\":\"c1\",\"sender\":{\"role\":\"assistant\"},\"text\":\"Hel\"}"`))
	require.NoError(t, err)
	msg, ok := rec.(*model.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "m1", msg.MessageID)
	assert.Equal(t, "c1", msg.ConversationKey())
	assert.Equal(t, model.RoleAssistant, msg.SenderRole())

	rec, err = decode(KindNotification, []byte(`{"conversation_id":"c1","title":"Heads up","type":"warning","text":"body"}`))
	require.NoError(t, err)
	n, ok := rec.(*model.NotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "Heads up", n.Title)
	assert.Equal(t, "body", n.Text)
	assert.Equal(t, "c1", n.ConversationKey())

	rec, err = decode(KindConversationInit, []byte(`{"id":"c9","agent_id":"a1"}`))
	require.NoError(t, err)
	assert.Equal(t, "c9", rec.ConversationKey())
}

func TestDecode_Errors(t *testing.T) {
	_, err := decode(Kind("OnUnknown"), []byte(`{}`))
	assert.Error(t, err)

	_, err = decode(KindContentLog, []byte(`{"conversation_id":1}`))
	assert.Error(t, err)

}

func TestDecode_OddTimestampKeepsText(t *testing.T) {
	rec, err := decode(KindAssistantStream, []byte(`"{\"conversation_id\":\"c1\",\"message_id\":\"m1\",\"text\":\"Hel\",\"created_at\":\"2025-01-01T10:00:00.1234567\"}"`))
	require.NoError(t, err)

	msg := rec.(*model.ChatMessage)
	assert.Equal(t, "Hel", msg.Text)
	require.NotNil(t, msg.CreatedAt)
	assert.Equal(t, 2025, msg.CreatedAt.Year())
}

func TestKinds(t *testing.T) {
	assert.Len(t, Kinds, 12)
	for _, k := range Kinds {
		assert.True(t, k.Known(), k)
	}
	assert.False(t, kindError.Known())
	assert.False(t, kindState.Known())
	assert.Equal(t, "OnMessageDeleted", KindMessageDeleted.String())
}
