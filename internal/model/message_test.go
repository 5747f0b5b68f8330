package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessage_CloneIsDeep(t *testing.T) {
	now := time.Now()
	orig := &ChatMessage{
		MessageID:   "m1",
		Sender:      &Sender{Role: RoleAssistant},
		RichContent: &RichContent{Message: &RichMessage{Text: "rich"}},
		CreatedAt:   NewTimestamp(now),
		Data:        json.RawMessage(`{"a":1}`),
	}

	c := orig.Clone()
	c.Sender.Role = RoleUser
	c.RichContent.Message.Text = "changed"
	c.Data[2] = 'b'

	assert.Equal(t, RoleAssistant, orig.Sender.Role)
	assert.Equal(t, "rich", orig.RichText())
	assert.Equal(t, `{"a":1}`, string(orig.Data))
}

func TestNotificationEvent_DecodesPromotedFields(t *testing.T) {
	raw := `{"conversation_id":"c1","message_id":"m1","text":"hi","title":"T","type":"system","agent_id":"a1","sender":{"role":"assistant"}}`

	var ev NotificationEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	assert.Equal(t, "c1", ev.ConversationKey())
	assert.Equal(t, "hi", ev.Text)
	assert.Equal(t, "T", ev.Title)
	assert.Equal(t, "system", ev.Type)
	assert.Equal(t, "a1", ev.AgentID)
	assert.Equal(t, RoleAssistant, ev.SenderRole())
}

func TestUserInfo_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada", (&UserInfo{Name: "Ada"}).DisplayName())
	assert.Equal(t, "Ada Lovelace", (&UserInfo{GivenName: "Ada", FamilyName: "Lovelace"}).DisplayName())
	assert.Equal(t, "Lovelace", (&UserInfo{FamilyName: "Lovelace"}).DisplayName())
}

func TestTimestamp_Lenient(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
		raw  string
	}{
		{"rfc3339", `"2025-01-01T10:00:00Z"`, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), ""},
		{"offset", `"2025-01-01T12:00:00+02:00"`, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), ""},
		{"no zone", `"2025-01-01T10:00:00.1234567"`, time.Date(2025, 1, 1, 10, 0, 0, 123456700, time.UTC), ""},
		{"space separated", `"2025-01-01 10:00:00"`, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), ""},
		{"unknown format", `"yesterday"`, time.Time{}, "yesterday"},
		{"number", `1735725600`, time.Time{}, "1735725600"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
			assert.Equal(t, tt.raw, ts.Raw)
		})
	}
}

func TestTimestamp_KeepsMessageText(t *testing.T) {
	var m ChatMessage
	require.NoError(t, json.Unmarshal([]byte(`{"message_id":"m1","text":"hello","created_at":"not a time"}`), &m))
	assert.Equal(t, "hello", m.Text)
	require.NotNil(t, m.CreatedAt)
	assert.True(t, m.CreatedAt.IsZero())

	out, err := json.Marshal(m.CreatedAt)
	require.NoError(t, err)
	assert.JSONEq(t, `"not a time"`, string(out))

	out, err = json.Marshal(NewTimestamp(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-01-01T10:00:00Z"`, string(out))
}
