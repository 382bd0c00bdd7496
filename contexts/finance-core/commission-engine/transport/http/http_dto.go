package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateCommissionRequest struct {
	OfferID      string  `json:"offer_id"`
	ListingID    string  `json:"listing_id"`
	AgentID      string  `json:"agent_id"`
	ListingPrice float64 `json:"listing_price"`
}

type CommissionDTO struct {
	CommissionID     string  `json:"commission_id"`
	ListingID        string  `json:"listing_id"`
	AgentID          string  `json:"agent_id"`
	OfferID          string  `json:"offer_id"`
	Amount           float64 `json:"amount"`
	Rate             float64 `json:"rate"`
	DueDate          string  `json:"due_date"`
	Status           string  `json:"status"`
	GatewayPaymentID string  `json:"gateway_payment_id,omitempty"`
	PaidAt           string  `json:"paid_at,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

type CommissionResponse struct {
	Status string        `json:"status"`
	Data   CommissionDTO `json:"data"`
}

type CommissionListResponse struct {
	Status string          `json:"status"`
	Data   []CommissionDTO `json:"data"`
}

type AgentSummaryDTO struct {
	AgentID         string  `json:"agent_id"`
	PendingCount    int     `json:"pending_count"`
	ProcessingCount int     `json:"processing_count"`
	PaidCount       int     `json:"paid_count"`
	FailedCount     int     `json:"failed_count"`
	TotalPaidAmount float64 `json:"total_paid_amount"`
}

type AgentSummaryResponse struct {
	Status string          `json:"status"`
	Data   AgentSummaryDTO `json:"data"`
}

// GatewayWebhookRequest is the normalized webhook body posted by the payment
// gateway integration.
type GatewayWebhookRequest struct {
	EventID       string            `json:"event_id"`
	Type          string            `json:"type"`
	IntentID      string            `json:"intent_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
}
