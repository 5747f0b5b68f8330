package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/hub"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/notify"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
)

const (
	assistantPrefix = "assistant> "
	agentPrefix     = "agent> "
	noticePrefix    = "notice> "
)

// transcript prints assistant messages to a terminal as they grow. Streamed
// deltas carry the whole text so far; only the unseen suffix is written.
type transcript struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]string
	open    string
}

func newTranscript(out io.Writer) *transcript {
	return &transcript{out: out, printed: make(map[string]string)}
}

// Stream prints the new part of an accumulated message.
func (t *transcript) Stream(msg *model.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.switchTo(msg.MessageID)
	prev := t.printed[msg.MessageID]
	if strings.HasPrefix(msg.Text, prev) {
		fmt.Fprint(t.out, msg.Text[len(prev):])
	} else {
		// the text was rewritten; start the line over
		fmt.Fprint(t.out, "\n"+assistantPrefix+msg.Text)
	}
	t.printed[msg.MessageID] = msg.Text
}

// Complete finishes a message, printing whatever the stream did not show.
func (t *transcript) Complete(msg *model.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	text := msg.Text
	if text == "" {
		text = msg.RichText()
	}

	prev, streamed := t.printed[msg.MessageID]
	switch {
	case !streamed:
		t.closeLine()
		fmt.Fprintln(t.out, assistantPrefix+text)
	case strings.HasPrefix(text, prev):
		t.switchTo(msg.MessageID)
		fmt.Fprintln(t.out, text[len(prev):])
		t.open = ""
	default:
		t.closeLine()
		fmt.Fprintln(t.out, assistantPrefix+text)
	}
	delete(t.printed, msg.MessageID)
}

// Line prints a message from someone other than the assistant.
func (t *transcript) Line(prefix, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeLine()
	fmt.Fprintln(t.out, prefix+text)
}

// Notice prints a hub notification for the open conversation.
func (t *transcript) Notice(ev *model.NotificationEvent) {
	text := notify.EventText(ev)
	if text == "" {
		return
	}
	t.Line(noticePrefix, notify.EventTitle(ev)+": "+text)
}

// follow prints ch's conversation events to out.
func follow(ch *hub.Channel, out *transcript, log *logger.Logger) {
	ch.OnAssistantStream(out.Stream)
	ch.OnAssistantMessage(out.Complete)
	ch.OnCsrMessage(func(m *model.ChatMessage) { out.Line(agentPrefix, m.Text) })
	ch.OnNotification(out.Notice)
	ch.OnMessageDeleted(func(d *model.MessageDeleted) {
		logger.OrNop(log).Info("message deleted", zap.String("message_id", d.MessageID))
	})
}

// switchTo makes id the message being written on the current line.
func (t *transcript) switchTo(id string) {
	if t.open == id {
		return
	}
	t.closeLine()
	fmt.Fprint(t.out, assistantPrefix+t.printed[id])
	t.open = id
}

func (t *transcript) closeLine() {
	if t.open != "" {
		fmt.Fprintln(t.out)
		t.open = ""
	}
}
