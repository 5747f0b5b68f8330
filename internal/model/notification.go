package model

import (
	"encoding/json"
	"time"
)

// NotificationType classifies a notification item.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
	NotificationMessage NotificationType = "message"
	NotificationSystem  NotificationType = "system"
)

var notificationIcons = map[NotificationType]string{
	NotificationInfo:    "bx bx-info-circle",
	NotificationSuccess: "bx bx-check-circle",
	NotificationWarning: "bx bx-error-circle",
	NotificationError:   "bx bx-x-circle",
	NotificationMessage: "bx bx-message-dots",
	NotificationSystem:  "bx bx-cog",
}

var notificationColors = map[NotificationType]string{
	NotificationInfo:    "primary",
	NotificationSuccess: "success",
	NotificationWarning: "warning",
	NotificationError:   "danger",
	NotificationMessage: "info",
	NotificationSystem:  "secondary",
}

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	_, ok := notificationIcons[t]
	return ok
}

// Icon returns the default icon class for t.
func (t NotificationType) Icon() string {
	if icon, ok := notificationIcons[t]; ok {
		return icon
	}
	return "bx bx-bell"
}

// Color returns the badge colour for t.
func (t NotificationType) Color() string {
	if color, ok := notificationColors[t]; ok {
		return color
	}
	return "primary"
}

// Notification is one entry of the notification list.
type Notification struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Type           NotificationType `json:"type"`
	Icon           string           `json:"icon,omitempty"`
	Color          string           `json:"color,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	Read           bool             `json:"read"`
	ConversationID string           `json:"conversation_id,omitempty"`
	AgentID        string           `json:"agent_id,omitempty"`
	Data           json.RawMessage  `json:"data,omitempty"`
}
