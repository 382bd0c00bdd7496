package errors

import "errors"

var (
	ErrSubmissionNotFound        = errors.New("submission not found")
	ErrOfferNotFound             = errors.New("offer not found")
	ErrInvalidSubmissionInput    = errors.New("invalid submission input")
	ErrInvalidOfferInput         = errors.New("invalid offer input")
	ErrInvalidDecision           = errors.New("decision must be accept or reject")
	ErrDuplicateOffer            = errors.New("agent already has an active offer on this submission")
	ErrSubmissionClosed          = errors.New("submission is not open for offers")
	ErrSubmissionAlreadyAssigned = errors.New("submission already has an accepted offer")
	ErrOfferAlreadyDecided       = errors.New("offer has already been decided")
	ErrAgentNotEligible          = errors.New("agent is not eligible to submit offers")
	ErrNotSubmissionOwner        = errors.New("caller does not own this submission")
)
