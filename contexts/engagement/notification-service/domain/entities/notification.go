package entities

import (
	"strings"
	"time"
)

// Notification is the durable record of something the user was told. The
// realtime push is best-effort; this row is the source of truth.
type Notification struct {
	NotificationID string
	RecipientID    string
	Channel        string
	EventType      string
	Payload        map[string]any
	ReadAt         *time.Time
	CreatedAt      time.Time
}

func (n Notification) ValidateCreate() bool {
	if strings.TrimSpace(n.RecipientID) == "" {
		return false
	}
	if strings.TrimSpace(n.EventType) == "" {
		return false
	}
	return true
}

func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}
