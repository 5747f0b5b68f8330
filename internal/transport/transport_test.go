package transport

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetURL(t *testing.T) {
	target := Target{
		Endpoint:       "ws://localhost:5500/chatHub?v=2",
		ConversationID: "conv 1",
		Token:          "a.b.c",
	}

	raw, err := target.URL()
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/chatHub", u.Path)
	assert.Equal(t, "conv 1", u.Query().Get("conversation-id"))
	assert.Equal(t, "a.b.c", u.Query().Get("access_token"))
	assert.Equal(t, "2", u.Query().Get("v"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", State(42).String())
}
