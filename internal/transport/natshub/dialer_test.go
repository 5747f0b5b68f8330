package natshub

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "chathub.c1.OnMessageDeleted", Subject("c1", "OnMessageDeleted"))
	assert.Equal(t, "chathub.c1.*", ConversationFilter("c1"))
}

func TestEventName(t *testing.T) {
	tests := []struct {
		subject string
		want    string
		ok      bool
	}{
		{"chathub.c1.OnStreamMessageReceivedFromAssistant", "OnStreamMessageReceivedFromAssistant", true},
		{"chathub.c1.", "", false},
		{"other.c1.OnMessageDeleted", "", false},
		{"chathub", "", false},
	}
	for _, tt := range tests {
		got, ok := eventName(tt.subject)
		assert.Equal(t, tt.ok, ok, tt.subject)
		assert.Equal(t, tt.want, got, tt.subject)
	}
}

type nopSink struct{}

func (nopSink) Deliver(string, []byte) {}
func (nopSink) StateChanged(transport.State, error) {}

func TestDial_RejectsWildcardConversation(t *testing.T) {
	d := NewDialer(TLSConfig{}, nil)

	for _, id := range []string{"", "a.b", "a*", ">"} {
		_, err := d.Dial(context.Background(), transport.Target{Endpoint: "nats://127.0.0.1:1", ConversationID: id}, nopSink{})
		assert.Error(t, err, id)
	}
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	d := NewDialer(TLSConfig{}, nil)
	_, err := d.Dial(ctx, transport.Target{Endpoint: "nats://127.0.0.1:1", ConversationID: "c1"}, nopSink{})
	require.Error(t, err)
}

func TestCreateTLSConfig_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := createTLSConfig(filepath.Join(dir, "ca.pem"), filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem"))
	require.Error(t, err)

	ca := filepath.Join(dir, "bad-ca.pem")
	require.NoError(t, os.WriteFile(ca, []byte("not a certificate"), 0o600))
	_, err = createTLSConfig(ca, filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem"))
	assert.ErrorContains(t, err, "parse CA certificate")
}
