package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/hub"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/notify"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
)

func msg(id, text string) *model.ChatMessage {
	return &model.ChatMessage{MessageID: id, Text: text}
}

func TestTranscript_StreamsSuffixes(t *testing.T) {
	var out strings.Builder
	tr := newTranscript(&out)

	tr.Stream(msg("m1", "Hel"))
	tr.Stream(msg("m1", "Hello wo"))
	tr.Stream(msg("m1", "Hello world"))
	tr.Complete(msg("m1", "Hello world!"))

	assert.Equal(t, "assistant> Hello world!\n", out.String())
}

func TestTranscript_CompleteWithoutStream(t *testing.T) {
	var out strings.Builder
	tr := newTranscript(&out)

	tr.Line("you> ", "hi")
	tr.Complete(msg("m1", "Hello"))

	assert.Equal(t, "you> hi\nassistant> Hello\n", out.String())
}

func TestTranscript_InterleavedMessages(t *testing.T) {
	var out strings.Builder
	tr := newTranscript(&out)

	tr.Stream(msg("m1", "a"))
	tr.Line(agentPrefix, "hold on")
	tr.Stream(msg("m1", "ab"))
	tr.Complete(msg("m1", "abc"))

	assert.Equal(t, "assistant> a\nagent> hold on\nassistant> abc\n", out.String())
}

type nopConn struct{}

func (nopConn) Close(context.Context) error { return nil }

type noToken struct{}

func (noToken) CurrentToken(context.Context) string { return "" }

func TestTranscript_Notice(t *testing.T) {
	var out strings.Builder
	tr := newTranscript(&out)

	tr.Stream(msg("m1", "thinking"))
	tr.Notice(&model.NotificationEvent{Title: "Build", ChatMessage: model.ChatMessage{Text: "done"}})
	tr.Notice(&model.NotificationEvent{})

	assert.Equal(t, "assistant> thinking\nnotice> Build: done\n", out.String())
}

func TestFollow_PrintsNotificationsForOpenConversation(t *testing.T) {
	var sink transport.Sink
	dialer := transport.DialerFunc(func(_ context.Context, _ transport.Target, s transport.Sink) (transport.Conn, error) {
		sink = s
		return nopConn{}, nil
	})
	ch := hub.NewChannel(dialer, "ws://hub.local/chatHub", noToken{}, nil)

	var out strings.Builder
	follow(ch, newTranscript(&out), nil)

	center := notify.NewCenter()
	overlay := notify.NewOverlay(center)
	overlay.Attach(ch)
	overlay.SetCurrentConversation("c1")

	ch.Start(context.Background(), "c1")
	require.NotNil(t, sink)

	sink.Deliver(string(hub.KindNotification), []byte(`{"conversation_id":"c1","title":"Deploy","text":"finished"}`))
	sink.Deliver(string(hub.KindCsrMessage), []byte(`{"conversation_id":"c1","text":"hello"}`))

	assert.Equal(t, "notice> Deploy: finished\nagent> hello\n", out.String())
	assert.Empty(t, center.Snapshot().Items, "shown in the transcript, not duplicated in the list")
}
