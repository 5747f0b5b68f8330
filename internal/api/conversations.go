package api

import (
	"context"
	"net/http"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
)

const (
	pathNewConversation = "/conversation/{agentId}"
	pathSendMessage     = "/conversation/{agentId}/{conversationId}"
	pathDialogs         = "/conversation/{conversationId}/dialogs"
	pathDeleteMessage   = "/conversation/{conversationId}/message/{messageId}"
	pathMe              = "/user/me"
)

// NewConversation starts a conversation with an agent.
func (c *Client) NewConversation(ctx context.Context, agentID string, req *model.NewConversationRequest) (*model.Conversation, error) {
	if req == nil {
		req = &model.NewConversationRequest{}
	}
	var conv model.Conversation
	path := ExpandPath(pathNewConversation, map[string]string{"agentId": agentID})
	if err := c.do(ctx, http.MethodPost, path, req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SendMessage posts a user message. The reply arrives through the event channel;
// the returned message is whatever the platform echoes back.
func (c *Client) SendMessage(ctx context.Context, agentID, conversationID string, req *model.SendMessageRequest) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	path := ExpandPath(pathSendMessage, map[string]string{
		"agentId":        agentID,
		"conversationId": conversationID,
	})
	if err := c.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetDialogs returns the message history of a conversation.
func (c *Client) GetDialogs(ctx context.Context, conversationID string) ([]model.Dialog, error) {
	var dialogs []model.Dialog
	path := ExpandPath(pathDialogs, map[string]string{"conversationId": conversationID})
	if err := c.do(ctx, http.MethodGet, path, nil, &dialogs); err != nil {
		return nil, err
	}
	return dialogs, nil
}

// DeleteMessage deletes a message and everything after it.
func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	path := ExpandPath(pathDeleteMessage, map[string]string{
		"conversationId": conversationID,
		"messageId":      messageID,
	})
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, pathMe, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
