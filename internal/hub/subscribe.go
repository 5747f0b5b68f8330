package hub

import (
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
)

func (c *Channel) onMessage(kind Kind, fn func(*model.ChatMessage)) *Subscription {
	return c.Subscribe(kind, func(ev Event) {
		if m := ev.Message(); m != nil {
			fn(m)
		}
	})
}

// OnConversationInit subscribes to conversation initialization.
func (c *Channel) OnConversationInit(fn func(*model.Conversation)) *Subscription {
	return c.Subscribe(KindConversationInit, func(ev Event) {
		if conv, ok := ev.Payload.(*model.Conversation); ok {
			fn(conv)
		}
	})
}

// OnClientMessage subscribes to messages sent by the user.
func (c *Channel) OnClientMessage(fn func(*model.ChatMessage)) *Subscription {
	return c.onMessage(KindClientMessage, fn)
}

// OnCsrMessage subscribes to messages sent by a human agent.
func (c *Channel) OnCsrMessage(fn func(*model.ChatMessage)) *Subscription {
	return c.onMessage(KindCsrMessage, fn)
}

// OnAssistantMessage subscribes to complete assistant messages.
func (c *Channel) OnAssistantMessage(fn func(*model.ChatMessage)) *Subscription {
	return c.onMessage(KindAssistantMessage, fn)
}

// OnAssistantStream subscribes to streamed assistant messages. fn receives
// the accumulated message after each fragment.
func (c *Channel) OnAssistantStream(fn func(*model.ChatMessage)) *Subscription {
	return c.onMessage(KindAssistantStream, fn)
}

// OnNotification subscribes to generic notifications.
func (c *Channel) OnNotification(fn func(*model.NotificationEvent)) *Subscription {
	return c.Subscribe(KindNotification, func(ev Event) {
		if n, ok := ev.Payload.(*model.NotificationEvent); ok {
			fn(n)
		}
	})
}

// OnContentLog subscribes to content log entries.
func (c *Channel) OnContentLog(fn func(*model.ContentLog)) *Subscription {
	return c.Subscribe(KindContentLog, func(ev Event) {
		if l, ok := ev.Payload.(*model.ContentLog); ok {
			fn(l)
		}
	})
}

// OnStateLog subscribes to state log snapshots.
func (c *Channel) OnStateLog(fn func(*model.StateLog)) *Subscription {
	return c.Subscribe(KindStateLog, func(ev Event) {
		if l, ok := ev.Payload.(*model.StateLog); ok {
			fn(l)
		}
	})
}

// OnStateChange subscribes to state transitions.
func (c *Channel) OnStateChange(fn func(*model.StateChange)) *Subscription {
	return c.Subscribe(KindStateChange, func(ev Event) {
		if s, ok := ev.Payload.(*model.StateChange); ok {
			fn(s)
		}
	})
}

// OnAgentQueueChanged subscribes to agent queue changes.
func (c *Channel) OnAgentQueueChanged(fn func(*model.AgentQueueLog)) *Subscription {
	return c.Subscribe(KindAgentQueue, func(ev Event) {
		if l, ok := ev.Payload.(*model.AgentQueueLog); ok {
			fn(l)
		}
	})
}

// OnSenderAction subscribes to typing indicators and similar actions.
func (c *Channel) OnSenderAction(fn func(*model.SenderAction)) *Subscription {
	return c.Subscribe(KindSenderAction, func(ev Event) {
		if a, ok := ev.Payload.(*model.SenderAction); ok {
			fn(a)
		}
	})
}

// OnMessageDeleted subscribes to message deletions.
func (c *Channel) OnMessageDeleted(fn func(*model.MessageDeleted)) *Subscription {
	return c.Subscribe(KindMessageDeleted, func(ev Event) {
		if d, ok := ev.Payload.(*model.MessageDeleted); ok {
			fn(d)
		}
	})
}

// OnError subscribes to *ConnectionError and *MalformedPayloadError.
func (c *Channel) OnError(fn func(error)) *Subscription {
	return c.Subscribe(kindError, func(ev Event) {
		if err, ok := ev.Payload.(error); ok {
			fn(err)
		}
	})
}

// OnState subscribes to lifecycle transitions.
func (c *Channel) OnState(fn func(transport.State)) *Subscription {
	return c.Subscribe(kindState, func(ev Event) {
		if s, ok := ev.Payload.(transport.State); ok {
			fn(s)
		}
	})
}
