package ports

import (
	"context"
	"time"

	"hearth/contexts/finance-core/commission-engine/domain/entities"
	contractsv1 "hearth/contracts/gen/events/v1"
)

type CreateCommissionInput struct {
	OfferID      string
	ListingID    string
	AgentID      string
	ListingPrice float64
}

type HistoryQuery struct {
	AgentID string
	Limit   int
	Offset  int
}

// AgentSummary aggregates an agent's commissions by status.
type AgentSummary struct {
	AgentID         string
	PendingCount    int
	ProcessingCount int
	PaidCount       int
	FailedCount     int
	TotalPaidAmount float64
}

// GatewayEvent is a normalized payment gateway webhook or poll result.
type GatewayEvent struct {
	EventID       string
	Type          string
	IntentID      string
	Metadata      map[string]string
	FailureReason string
}

const (
	GatewayEventPaymentSucceeded = "payment.succeeded"
	GatewayEventPaymentFailed    = "payment.failed"
	GatewayEventPaymentExpired   = "payment.expired"
)

type Repository interface {
	CreateCommission(ctx context.Context, commission entities.Commission) (entities.Commission, error)
	GetCommission(ctx context.Context, commissionID string) (entities.Commission, error)
	GetCommissionByOfferID(ctx context.Context, offerID string) (entities.Commission, error)
	GetCommissionByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (entities.Commission, error)
	UpdateCommission(ctx context.Context, commission entities.Commission) (entities.Commission, error)
	ListByAgent(ctx context.Context, query HistoryQuery) ([]entities.Commission, error)
	SummarizeAgent(ctx context.Context, agentID string) (AgentSummary, error)
	ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]entities.Commission, error)
}

// PaymentIntent is the gateway-side handle for a payment attempt.
type PaymentIntent struct {
	IntentID      string
	Status        string
	FailureReason string
}

const (
	IntentStatusPending   = "pending"
	IntentStatusSucceeded = "succeeded"
	IntentStatusFailed    = "failed"
	IntentStatusExpired   = "expired"
)

type CreateIntentInput struct {
	Amount      float64
	Currency    string
	Destination string
	Metadata    map[string]string
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (PaymentIntent, error)
	RetrieveIntent(ctx context.Context, intentID string) (PaymentIntent, error)
}

type AgentAccounts interface {
	PayoutDestination(ctx context.Context, agentID string) (string, error)
}

// EventDedup reserves gateway event IDs so webhook replays become no-ops.
type EventDedup interface {
	ReserveEvent(ctx context.Context, eventID string, receivedAt time.Time) (bool, error)
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

// EventEnvelope is the canonical cross-runtime contract for financial events.
type EventEnvelope = contractsv1.Envelope

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
