package entities

import (
	"math"
	"strings"
	"time"

	domainerrors "hearth/contexts/finance-core/commission-engine/domain/errors"
)

type CommissionStatus string

const (
	CommissionStatusPending    CommissionStatus = "pending"
	CommissionStatusProcessing CommissionStatus = "processing"
	CommissionStatusPaid       CommissionStatus = "paid"
	CommissionStatusFailed     CommissionStatus = "failed"
)

const (
	// CommissionRate is the platform cut applied to the listing price.
	CommissionRate = 0.05
	// GracePeriodDays is how long the agent has before the commission is due.
	GracePeriodDays = 14
)

// Commission is the amount an agent owes the platform for a won listing.
type Commission struct {
	CommissionID     string
	ListingID        string
	AgentID          string
	OfferID          string
	Amount           float64
	Rate             float64
	DueDate          time.Time
	Status           CommissionStatus
	GatewayPaymentID string
	PaidAt           *time.Time
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AmountFor computes the commission owed on a listing price, rounded to cents.
func AmountFor(listingPrice float64) float64 {
	return math.Round(listingPrice*CommissionRate*100) / 100
}

func ValidateCreate(offerID string, listingID string, agentID string, listingPrice float64) error {
	if strings.TrimSpace(offerID) == "" {
		return domainerrors.ErrInvalidCommissionInput
	}
	if strings.TrimSpace(listingID) == "" {
		return domainerrors.ErrInvalidCommissionInput
	}
	if strings.TrimSpace(agentID) == "" {
		return domainerrors.ErrInvalidCommissionInput
	}
	if listingPrice <= 0 {
		return domainerrors.ErrInvalidCommissionInput
	}
	return nil
}

// CanInitiatePayment reports whether a payment attempt is allowed from the
// current status. Retrying a failed commission is allowed.
func (c Commission) CanInitiatePayment() bool {
	return c.Status == CommissionStatusPending || c.Status == CommissionStatusFailed
}

func (c Commission) IsTerminalPaid() bool {
	return c.Status == CommissionStatusPaid
}
