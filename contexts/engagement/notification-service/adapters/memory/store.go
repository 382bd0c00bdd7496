package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hearth/contexts/engagement/notification-service/domain/entities"
	domainerrors "hearth/contexts/engagement/notification-service/domain/errors"
	"hearth/contexts/engagement/notification-service/ports"
)

// Store keeps notifications in process memory for tests and local runs.
type Store struct {
	mu            sync.Mutex
	notifications map[string]entities.Notification
}

func NewStore() *Store {
	return &Store{
		notifications: map[string]entities.Notification{},
	}
}

func (s *Store) CreateNotification(_ context.Context, notification entities.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[notification.NotificationID] = notification
	return nil
}

func (s *Store) GetNotification(_ context.Context, notificationID string) (entities.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return entities.Notification{}, domainerrors.ErrNotificationNotFound
	}
	return notification, nil
}

func (s *Store) ListForRecipient(_ context.Context, query ports.ListQuery) ([]entities.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]entities.Notification, 0)
	for _, notification := range s.notifications {
		if notification.RecipientID != query.RecipientID {
			continue
		}
		if query.UnreadOnly && notification.IsRead() {
			continue
		}
		matched = append(matched, notification)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if query.Offset >= len(matched) {
		return []entities.Notification{}, nil
	}
	matched = matched[query.Offset:]
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, nil
}

func (s *Store) MarkRead(_ context.Context, notificationID string, readAt time.Time) (entities.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return entities.Notification{}, domainerrors.ErrNotificationNotFound
	}
	at := readAt
	notification.ReadAt = &at
	s.notifications[notificationID] = notification
	return notification, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
