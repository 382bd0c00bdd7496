package httptransport

type NotificationDTO struct {
	NotificationID string         `json:"notification_id"`
	RecipientID    string         `json:"recipient_id"`
	Channel        string         `json:"channel"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload,omitempty"`
	ReadAt         string         `json:"read_at,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

type PublishNotificationRequest struct {
	RecipientID string         `json:"recipient_id"`
	Channel     string         `json:"channel,omitempty"`
	EventType   string         `json:"event_type"`
	Payload     map[string]any `json:"payload,omitempty"`
}

type NotificationResponse struct {
	Status string          `json:"status"`
	Data   NotificationDTO `json:"data"`
}

type NotificationListResponse struct {
	Status string            `json:"status"`
	Data   []NotificationDTO `json:"data"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
