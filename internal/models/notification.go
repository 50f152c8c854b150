package models

// NotificationEventType enumerates lifecycle events worth telling users about.
type NotificationEventType string

const (
	EventRequestCreated   NotificationEventType = "request_created"
	EventRequestAccepted  NotificationEventType = "request_accepted"
	EventRequestCancelled NotificationEventType = "request_cancelled"
)

// NotificationEvent is the payload handed to the dispatcher after a
// successful state transition. TargetUserID addresses a single user;
// ExcludeUserID is honoured for broadcast events (empty TargetUserID).
type NotificationEvent struct {
	Type          NotificationEventType `json:"type"`
	TargetUserID  string                `json:"targetUserId,omitempty"`
	ExcludeUserID string                `json:"excludeUserId,omitempty"`
	Title         string                `json:"title"`
	Body          string                `json:"body"`
	Data          map[string]string     `json:"data,omitempty"`
}

// PushMessage is the Expo-format message written to the delivery outbox.
type PushMessage struct {
	To        string            `json:"to"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Sound     string            `json:"sound"`
	Badge     int               `json:"badge"`
	ChannelID string            `json:"channelId"`
}
