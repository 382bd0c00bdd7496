package application

import (
	"context"
	"log/slog"
	"strings"

	"hearth/contexts/engagement/notification-service/domain/entities"
	domainerrors "hearth/contexts/engagement/notification-service/domain/errors"
	"hearth/contexts/engagement/notification-service/ports"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Service persists notifications and pushes them to live subscribers. The
// durable row is written first; a bus failure is logged and swallowed so
// upstream flows never fail because a websocket was slow.
type Service struct {
	Repo   ports.Repository
	Bus    ports.RealtimeBus
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (s Service) Publish(ctx context.Context, input ports.PublishInput) (entities.Notification, error) {
	logger := ResolveLogger(s.Logger)

	notificationID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Notification{}, err
	}

	notification := entities.Notification{
		NotificationID: notificationID,
		RecipientID:    strings.TrimSpace(input.RecipientID),
		Channel:        strings.TrimSpace(input.Channel),
		EventType:      strings.TrimSpace(input.EventType),
		Payload:        input.Payload,
		CreatedAt:      s.Clock.Now().UTC(),
	}
	if !notification.ValidateCreate() {
		return entities.Notification{}, domainerrors.ErrInvalidNotificationData
	}
	if notification.Channel == "" {
		notification.Channel = "user:" + notification.RecipientID
	}

	if err := s.Repo.CreateNotification(ctx, notification); err != nil {
		return entities.Notification{}, err
	}

	if s.Bus != nil {
		busErr := s.Bus.Publish(ctx, ports.BusMessage{
			Channel:   notification.Channel,
			EventType: notification.EventType,
			Payload:   notification.Payload,
		})
		if busErr != nil {
			logger.Warn("realtime push failed, durable row kept",
				"event", "notification_push_failed",
				"module", "engagement/notification-service",
				"layer", "application",
				"notification_id", notification.NotificationID,
				"channel", notification.Channel,
				"error", busErr.Error(),
			)
		}
	}

	logger.Info("notification published",
		"event", "notification_published",
		"module", "engagement/notification-service",
		"layer", "application",
		"notification_id", notification.NotificationID,
		"event_type", notification.EventType,
	)
	return notification, nil
}

func (s Service) ListForRecipient(ctx context.Context, query ports.ListQuery) ([]entities.Notification, error) {
	if strings.TrimSpace(query.RecipientID) == "" {
		return nil, domainerrors.ErrInvalidNotificationData
	}
	if query.Limit <= 0 {
		query.Limit = defaultListLimit
	}
	if query.Limit > maxListLimit {
		query.Limit = maxListLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	return s.Repo.ListForRecipient(ctx, query)
}

func (s Service) MarkRead(ctx context.Context, notificationID string, recipientID string) (entities.Notification, error) {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return entities.Notification{}, domainerrors.ErrInvalidNotificationData
	}

	notification, err := s.Repo.GetNotification(ctx, notificationID)
	if err != nil {
		return entities.Notification{}, err
	}
	if notification.RecipientID != strings.TrimSpace(recipientID) {
		return entities.Notification{}, domainerrors.ErrNotRecipient
	}
	if notification.IsRead() {
		return notification, nil
	}
	return s.Repo.MarkRead(ctx, notificationID, s.Clock.Now().UTC())
}
