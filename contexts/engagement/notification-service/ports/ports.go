package ports

import (
	"context"
	"time"

	"hearth/contexts/engagement/notification-service/domain/entities"
)

type PublishInput struct {
	RecipientID string
	Channel     string
	EventType   string
	Payload     map[string]any
}

type ListQuery struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
	Offset      int
}

type Repository interface {
	CreateNotification(ctx context.Context, notification entities.Notification) error
	GetNotification(ctx context.Context, notificationID string) (entities.Notification, error)
	ListForRecipient(ctx context.Context, query ListQuery) ([]entities.Notification, error)
	MarkRead(ctx context.Context, notificationID string, readAt time.Time) (entities.Notification, error)
}

// BusMessage is what subscribers receive on a realtime channel.
type BusMessage struct {
	Channel   string
	EventType string
	Payload   map[string]any
}

// RealtimeBus pushes messages to live subscribers. Delivery is best-effort;
// the durable notification row is written first.
type RealtimeBus interface {
	Publish(ctx context.Context, message BusMessage) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
