package errors

import "errors"

var (
	ErrReviewNotFound         = errors.New("review not found")
	ErrRuleNotFound           = errors.New("moderation rule not found")
	ErrInvalidReviewInput     = errors.New("invalid review input")
	ErrInvalidRuleConfig      = errors.New("invalid moderation rule configuration")
	ErrInvalidRequest         = errors.New("invalid moderation request")
	ErrForbidden              = errors.New("moderator is not authorized")
	ErrAlreadyFlagged         = errors.New("reporter already flagged this review")
	ErrAlreadyModerated       = errors.New("review has already been moderated")
	ErrClassifierUnavailable  = errors.New("content classifier unavailable")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with a different request")
)
