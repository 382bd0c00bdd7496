package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"hearth/contexts/engagement/notification-service/domain/entities"
	domainerrors "hearth/contexts/engagement/notification-service/domain/errors"
	"hearth/contexts/engagement/notification-service/ports"
)

type notificationModel struct {
	NotificationID string `gorm:"primaryKey;column:notification_id"`
	RecipientID    string `gorm:"column:recipient_id;index"`
	Channel        string `gorm:"column:channel"`
	EventType      string `gorm:"column:event_type"`
	Payload        []byte `gorm:"column:payload"`
	ReadAt         *time.Time
	CreatedAt      time.Time
}

func (notificationModel) TableName() string { return "notifications" }

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&notificationModel{})
}

func (r *Repository) CreateNotification(ctx context.Context, notification entities.Notification) error {
	model, err := toModel(notification)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *Repository) GetNotification(ctx context.Context, notificationID string) (entities.Notification, error) {
	var model notificationModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Notification{}, domainerrors.ErrNotificationNotFound
	}
	if err != nil {
		return entities.Notification{}, err
	}
	return toEntity(model)
}

func (r *Repository) ListForRecipient(ctx context.Context, query ports.ListQuery) ([]entities.Notification, error) {
	tx := r.db.WithContext(ctx).
		Where("recipient_id = ?", query.RecipientID)
	if query.UnreadOnly {
		tx = tx.Where("read_at IS NULL")
	}

	var models []notificationModel
	err := tx.Order("created_at DESC").
		Limit(query.Limit).
		Offset(query.Offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]entities.Notification, 0, len(models))
	for _, model := range models {
		notification, err := toEntity(model)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, nil
}

func (r *Repository) MarkRead(ctx context.Context, notificationID string, readAt time.Time) (entities.Notification, error) {
	result := r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("notification_id = ? AND read_at IS NULL", notificationID).
		Update("read_at", readAt)
	if result.Error != nil {
		return entities.Notification{}, result.Error
	}
	return r.GetNotification(ctx, notificationID)
}

func toModel(notification entities.Notification) (notificationModel, error) {
	payload, err := json.Marshal(notification.Payload)
	if err != nil {
		return notificationModel{}, err
	}
	return notificationModel{
		NotificationID: notification.NotificationID,
		RecipientID:    notification.RecipientID,
		Channel:        notification.Channel,
		EventType:      notification.EventType,
		Payload:        payload,
		ReadAt:         notification.ReadAt,
		CreatedAt:      notification.CreatedAt,
	}, nil
}

func toEntity(model notificationModel) (entities.Notification, error) {
	var payload map[string]any
	if len(model.Payload) > 0 {
		if err := json.Unmarshal(model.Payload, &payload); err != nil {
			return entities.Notification{}, err
		}
	}
	return entities.Notification{
		NotificationID: model.NotificationID,
		RecipientID:    model.RecipientID,
		Channel:        model.Channel,
		EventType:      model.EventType,
		Payload:        payload,
		ReadAt:         model.ReadAt,
		CreatedAt:      model.CreatedAt,
	}, nil
}
