package errors

import "errors"

var (
	ErrCommissionNotFound       = errors.New("commission not found")
	ErrDuplicateCommission      = errors.New("commission already exists for this offer")
	ErrInvalidCommissionInput   = errors.New("invalid commission input")
	ErrInvalidPaymentState      = errors.New("commission is not payable in its current state")
	ErrPayoutDestinationMissing = errors.New("agent has no payout destination on file")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrUnknownGatewayEvent      = errors.New("gateway event does not match any commission")
)
