package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"hearth/contexts/engagement/notification-service/application"
	"hearth/contexts/engagement/notification-service/domain/entities"
	"hearth/contexts/engagement/notification-service/ports"
	httptransport "hearth/contexts/engagement/notification-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) PublishNotificationHandler(
	ctx context.Context,
	req httptransport.PublishNotificationRequest,
) (httptransport.NotificationResponse, error) {
	notification, err := h.Service.Publish(ctx, ports.PublishInput{
		RecipientID: req.RecipientID,
		Channel:     req.Channel,
		EventType:   req.EventType,
		Payload:     req.Payload,
	})
	if err != nil {
		return httptransport.NotificationResponse{}, err
	}
	return httptransport.NotificationResponse{
		Status: "success",
		Data:   toNotificationDTO(notification),
	}, nil
}

func (h Handler) ListNotificationsHandler(
	ctx context.Context,
	recipientID string,
	unreadOnly bool,
	limit int,
	offset int,
) (httptransport.NotificationListResponse, error) {
	items, err := h.Service.ListForRecipient(ctx, ports.ListQuery{
		RecipientID: recipientID,
		UnreadOnly:  unreadOnly,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return httptransport.NotificationListResponse{}, err
	}
	resp := httptransport.NotificationListResponse{
		Status: "success",
		Data:   make([]httptransport.NotificationDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toNotificationDTO(item))
	}
	return resp, nil
}

func (h Handler) MarkReadHandler(
	ctx context.Context,
	notificationID string,
	recipientID string,
) (httptransport.NotificationResponse, error) {
	notification, err := h.Service.MarkRead(ctx, notificationID, recipientID)
	if err != nil {
		return httptransport.NotificationResponse{}, err
	}
	return httptransport.NotificationResponse{
		Status: "success",
		Data:   toNotificationDTO(notification),
	}, nil
}

func toNotificationDTO(item entities.Notification) httptransport.NotificationDTO {
	dto := httptransport.NotificationDTO{
		NotificationID: item.NotificationID,
		RecipientID:    item.RecipientID,
		Channel:        item.Channel,
		EventType:      item.EventType,
		Payload:        item.Payload,
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.ReadAt != nil {
		dto.ReadAt = item.ReadAt.UTC().Format(time.RFC3339)
	}
	return dto
}
