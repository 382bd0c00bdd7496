package ports

import (
	"context"
	"time"

	"hearth/contexts/agent-routing/offer-ledger/domain/entities"
	"hearth/internal/shared/events"
)

type CreateSubmissionInput struct {
	OwnerID      string
	Title        string
	Details      map[string]any
	ListingPrice float64
}

type SubmitOfferInput struct {
	SubmissionID  string
	AgentID       string
	ProposedValue *float64
	Confidence    *int
	Message       string
}

type DecideOfferInput struct {
	SubmissionID string
	OfferID      string
	OwnerID      string
	Decision     string
	Reason       string
}

const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// AcceptOfferInput drives the exclusive-acceptance transaction: the target
// offer is accepted, every pending sibling rejected, the submission assigned
// and the owner/agent conversation created in one transaction.
type AcceptOfferInput struct {
	SubmissionID   string
	OfferID        string
	Reason         string
	ConversationID string
	Now            time.Time
}

type RejectOfferInput struct {
	SubmissionID string
	OfferID      string
	Reason       string
	Now          time.Time
}

type AcceptOutcome struct {
	Offer          entities.Offer
	RejectedOffers []entities.Offer
	Conversation   entities.Conversation
	Submission     entities.Submission
}

type DecisionResult struct {
	Offer          entities.Offer
	RejectedOffers []entities.Offer
	ConversationID string
}

type Repository interface {
	CreateSubmission(ctx context.Context, submission entities.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error)
	CreateOffer(ctx context.Context, offer entities.Offer) error
	GetOffer(ctx context.Context, offerID string) (entities.Offer, error)
	ListOffersBySubmission(ctx context.Context, submissionID string) ([]entities.Offer, error)
	AcceptOffer(ctx context.Context, input AcceptOfferInput) (AcceptOutcome, error)
	RejectOffer(ctx context.Context, input RejectOfferInput) (entities.Offer, error)
}

// AgentDirectory answers the external eligibility check for an agent.
type AgentDirectory interface {
	IsEligibleAgent(ctx context.Context, agentID string) (bool, error)
}

// AcceptedOffer is the payload handed to the commission engine once an offer
// has been accepted. Creation is idempotent per offer on the receiving side.
type AcceptedOffer struct {
	OfferID      string
	SubmissionID string
	AgentID      string
	ListingPrice float64
}

type CommissionCreator interface {
	CreateForAcceptedOffer(ctx context.Context, accepted AcceptedOffer) error
}

type NotificationEvent struct {
	RecipientID string
	Channel     string
	EventType   string
	Payload     map[string]any
}

type NotificationPublisher interface {
	Publish(ctx context.Context, event NotificationEvent) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}
