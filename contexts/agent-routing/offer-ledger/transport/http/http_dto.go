package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateSubmissionRequest struct {
	OwnerID      string         `json:"owner_id"`
	Title        string         `json:"title"`
	Details      map[string]any `json:"details,omitempty"`
	ListingPrice float64        `json:"listing_price"`
}

type SubmissionDTO struct {
	SubmissionID    string         `json:"submission_id"`
	OwnerID         string         `json:"owner_id"`
	Title           string         `json:"title"`
	Details         map[string]any `json:"details,omitempty"`
	ListingPrice    float64        `json:"listing_price"`
	Status          string         `json:"status"`
	AssignedAgentID string         `json:"assigned_agent_id,omitempty"`
	CreatedAt       string         `json:"created_at"`
}

type SubmissionResponse struct {
	Status string        `json:"status"`
	Data   SubmissionDTO `json:"data"`
}

type SubmitOfferRequest struct {
	AgentID       string   `json:"agent_id"`
	ProposedValue *float64 `json:"proposed_value,omitempty"`
	Confidence    *int     `json:"confidence,omitempty"`
	Message       string   `json:"message,omitempty"`
}

type OfferDTO struct {
	OfferID        string   `json:"offer_id"`
	SubmissionID   string   `json:"submission_id"`
	AgentID        string   `json:"agent_id"`
	ProposedValue  *float64 `json:"proposed_value,omitempty"`
	Confidence     *int     `json:"confidence,omitempty"`
	Message        string   `json:"message,omitempty"`
	Status         string   `json:"status"`
	DecisionReason string   `json:"decision_reason,omitempty"`
	CreatedAt      string   `json:"created_at"`
	DecidedAt      string   `json:"decided_at,omitempty"`
}

type OfferResponse struct {
	Status string   `json:"status"`
	Data   OfferDTO `json:"data"`
}

type OfferListResponse struct {
	Status string     `json:"status"`
	Data   []OfferDTO `json:"data"`
}

type DecideOfferRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

type DecisionResponse struct {
	Status string `json:"status"`
	Data   struct {
		Offer          OfferDTO   `json:"offer"`
		RejectedOffers []OfferDTO `json:"rejected_offers,omitempty"`
		ConversationID string     `json:"conversation_id,omitempty"`
	} `json:"data"`
}
