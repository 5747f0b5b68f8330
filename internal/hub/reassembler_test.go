package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
)

func TestReassembler_AppendsText(t *testing.T) {
	r := NewReassembler()

	var got []string
	for _, part := range []string{"Hel", "lo wo", "rld"} {
		got = append(got, r.Ingest(assistantFragment("c1", "m1", part)).Text)
	}

	assert.Equal(t, []string{"Hel", "Hello wo", "Hello world"}, got)
	assert.Equal(t, 1, r.Len())
}

func TestReassembler_KeepsMessagesApart(t *testing.T) {
	r := NewReassembler()

	r.Ingest(assistantFragment("c1", "m1", "a"))
	r.Ingest(assistantFragment("c1", "m2", "x"))
	r.Ingest(assistantFragment("c1", "m1", "b"))

	m1, ok := r.Get("m1")
	require.True(t, ok)
	m2, ok := r.Get("m2")
	require.True(t, ok)
	assert.Equal(t, "ab", m1.Text)
	assert.Equal(t, "x", m2.Text)
}

func TestReassembler_MergesMetadata(t *testing.T) {
	r := NewReassembler()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Second)

	first := assistantFragment("c1", "m1", "a")
	first.CreatedAt = model.NewTimestamp(created)
	r.Ingest(first)

	// later fragments omit fields they do not change
	second := &model.ChatMessage{MessageID: "m1", Text: "b"}
	got := r.Ingest(second)
	assert.Equal(t, "c1", got.ConversationID)
	assert.Equal(t, model.RoleAssistant, got.SenderRole())
	require.NotNil(t, got.CreatedAt)
	assert.True(t, created.Equal(got.CreatedAt.Time))
	assert.Nil(t, got.RichContent)

	third := &model.ChatMessage{
		MessageID:   "m1",
		Text:        "c",
		UpdatedAt:   model.NewTimestamp(updated),
		RichContent: &model.RichContent{Message: &model.RichMessage{RichType: "text", Text: "abc"}},
	}
	got = r.Ingest(third)
	assert.Equal(t, "abc", got.Text)
	assert.Equal(t, "abc", got.RichText())
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, updated.Equal(got.UpdatedAt.Time))
}

func TestReassembler_ReturnsCopies(t *testing.T) {
	r := NewReassembler()

	frag := assistantFragment("c1", "m1", "a")
	out := r.Ingest(frag)
	frag.Text = "mutated"
	out.Text = "also mutated"
	out.Sender.Role = model.RoleUser

	acc, ok := r.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "a", acc.Text)
	assert.Equal(t, model.RoleAssistant, acc.SenderRole())
}

func TestReassembler_CompleteAndClear(t *testing.T) {
	r := NewReassembler()
	r.Ingest(assistantFragment("c1", "m1", "a"))
	r.Ingest(assistantFragment("c1", "m2", "b"))

	assert.True(t, r.Complete("m1"))
	assert.False(t, r.Complete("m1"))
	assert.False(t, r.Complete("unknown"))
	_, ok := r.Get("m1")
	assert.False(t, ok)

	assert.Equal(t, 1, r.Clear())
	assert.Zero(t, r.Len())
	assert.Zero(t, r.Clear())

	// a fresh fragment after completion starts a new entry
	assert.Equal(t, "z", r.Ingest(assistantFragment("c1", "m1", "z")).Text)
}
