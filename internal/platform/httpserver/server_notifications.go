package httpserver

import (
	"errors"
	"net/http"
	"strings"

	notificationerrors "hearth/contexts/engagement/notification-service/domain/errors"
	notificationhttp "hearth/contexts/engagement/notification-service/transport/http"
)

func (s *Server) registerNotificationRoutes() {
	s.handle("POST", "/api/notifications", "notifications_publish", s.handlePublishNotification)
	s.handle("GET", "/api/notifications", "notifications_list", s.handleListNotifications)
	s.handle("POST", "/api/notifications/{notification_id}/read", "notifications_mark_read", s.handleMarkNotificationRead)
}

func requireNotificationUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeNotificationError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func (s *Server) handlePublishNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationhttp.PublishNotificationRequest
	if !s.decodeJSON(w, r, &req, writeNotificationError) {
		return
	}
	resp, err := s.notifications.Handler.PublishNotificationHandler(r.Context(), req)
	if err != nil {
		writeNotificationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireNotificationUser(w, r)
	if !ok {
		return
	}
	unreadOnly := strings.EqualFold(r.URL.Query().Get("unread_only"), "true")
	resp, err := s.notifications.Handler.ListNotificationsHandler(
		r.Context(),
		userID,
		unreadOnly,
		parseQueryInt(r, "limit"),
		parseQueryInt(r, "offset"),
	)
	if err != nil {
		writeNotificationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireNotificationUser(w, r)
	if !ok {
		return
	}
	resp, err := s.notifications.Handler.MarkReadHandler(r.Context(), r.PathValue("notification_id"), userID)
	if err != nil {
		writeNotificationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeNotificationDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notificationerrors.ErrNotificationNotFound):
		writeNotificationError(w, http.StatusNotFound, "notification_not_found", err.Error())
	case errors.Is(err, notificationerrors.ErrInvalidNotificationData):
		writeNotificationError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, notificationerrors.ErrNotRecipient):
		writeNotificationError(w, http.StatusForbidden, "not_recipient", err.Error())
	default:
		writeNotificationError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeNotificationError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, notificationhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
