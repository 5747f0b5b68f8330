package middleware

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateMessageContent validates text sent to a conversation.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateNotificationID validates a notification ID.
func ValidateNotificationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid notification ID format")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	return validateIDToken("conversation", id)
}

// ValidateAgentID validates an agent ID.
func ValidateAgentID(id string) error {
	return validateIDToken("agent", id)
}

// validateIDToken checks an opaque ID that ends up in URL paths and NATS
// subjects.
func validateIDToken(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}
	if len(id) > 64 {
		return fmt.Errorf("%s ID exceeds maximum length", kind)
	}
	if strings.ContainsAny(id, "/.*>") || strings.IndexFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return fmt.Errorf("%s ID contains invalid characters", kind)
	}
	return nil
}
