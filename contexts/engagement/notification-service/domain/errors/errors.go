package errors

import "errors"

var (
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrInvalidNotificationData = errors.New("invalid notification input")
	ErrNotRecipient            = errors.New("notification belongs to another recipient")
)
