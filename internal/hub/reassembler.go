package hub

import (
	"sync"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/metrics"
)

// Reassembler accumulates streamed assistant fragments into growing
// messages keyed by message id. Fragments for one id must be ingested in
// arrival order from a single writer.
type Reassembler struct {
	mu      sync.Mutex
	entries map[string]*model.ChatMessage
}

// NewReassembler creates an empty accumulator.
func NewReassembler() *Reassembler {
	return &Reassembler{entries: make(map[string]*model.ChatMessage)}
}

// Ingest applies one fragment and returns a copy of the accumulated message.
func (r *Reassembler) Ingest(fragment *model.ChatMessage) *model.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics.StreamFragmentsTotal.Inc()

	prev, ok := r.entries[fragment.MessageID]
	if !ok {
		entry := fragment.Clone()
		r.entries[fragment.MessageID] = entry
		metrics.StreamActiveMessages.Set(float64(len(r.entries)))
		return entry.Clone()
	}

	next := prev.Clone()
	next.Text = prev.Text + fragment.Text
	if fragment.RichContent != nil {
		next.RichContent = fragment.Clone().RichContent
	}
	if fragment.UpdatedAt != nil {
		t := *fragment.UpdatedAt
		next.UpdatedAt = &t
	}
	if next.CreatedAt == nil && fragment.CreatedAt != nil {
		t := *fragment.CreatedAt
		next.CreatedAt = &t
	}
	if next.Sender == nil && fragment.Sender != nil {
		s := *fragment.Sender
		next.Sender = &s
	}
	if next.ConversationID == "" {
		next.ConversationID = fragment.ConversationID
	}

	r.entries[fragment.MessageID] = next
	return next.Clone()
}

// Complete drops the entry for messageID, reporting whether one existed.
func (r *Reassembler) Complete(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[messageID]; !ok {
		return false
	}
	delete(r.entries, messageID)
	metrics.StreamActiveMessages.Set(float64(len(r.entries)))
	return true
}

// Get returns a copy of the accumulated message for messageID.
func (r *Reassembler) Get(messageID string) (*model.ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[messageID]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

// Len returns the number of messages being accumulated.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear drops every entry and returns how many there were.
func (r *Reassembler) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	r.entries = make(map[string]*model.ChatMessage)
	metrics.StreamActiveMessages.Set(0)
	return n
}
