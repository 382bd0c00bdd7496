package entities

import (
	"strings"
	"time"
)

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

// Offer is an agent's bid against exactly one submission. ProposedValue and
// Confidence are optional: a plain interest expression carries neither.
// An offer is decided at most once and is terminal thereafter.
type Offer struct {
	OfferID        string
	SubmissionID   string
	AgentID        string
	ProposedValue  *float64
	Confidence     *int
	Message        string
	Status         OfferStatus
	DecisionReason string
	CreatedAt      time.Time
	DecidedAt      *time.Time
}

func (o Offer) ValidateCreate() bool {
	if strings.TrimSpace(o.SubmissionID) == "" || strings.TrimSpace(o.AgentID) == "" {
		return false
	}
	if o.ProposedValue != nil && *o.ProposedValue <= 0 {
		return false
	}
	if o.Confidence != nil && (*o.Confidence < 1 || *o.Confidence > 5) {
		return false
	}
	return true
}

func (o Offer) IsDecided() bool {
	return o.Status != OfferStatusPending
}
