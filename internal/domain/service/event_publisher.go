package service

import (
	"context"
	"time"
)

// LoginEventType identifies what happened to the user
type LoginEventType string

const (
	// LoginEventTypeLogin is emitted after a successful callback
	LoginEventTypeLogin LoginEventType = "login"
)

// LoginEvent is the record handed to notification collaborators
type LoginEvent struct {
	RequestID  string         `json:"request_id,omitempty"` // For distributed tracing
	EventID    string         `json:"event_id"`
	Type       LoginEventType `json:"type"`
	DiscordID  string         `json:"discord_id"`
	Username   string         `json:"username"`
	Email      string         `json:"email"`
	AvatarURL  string         `json:"avatar_url"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// EventPublisher defines the interface for delivering login events
type EventPublisher interface {
	// PublishLoginEvent delivers one event, returning an error on failure
	PublishLoginEvent(ctx context.Context, event *LoginEvent) error

	// Close releases any resources held by the publisher
	Close() error
}

// EventDispatcher hands events to a publisher off the request path.
// Dispatch never blocks on delivery and never reports failures to the caller.
type EventDispatcher interface {
	Dispatch(event *LoginEvent)
}
