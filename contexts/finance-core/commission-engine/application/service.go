package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hearth/contexts/finance-core/commission-engine/domain/entities"
	domainerrors "hearth/contexts/finance-core/commission-engine/domain/errors"
	"hearth/contexts/finance-core/commission-engine/ports"
)

const defaultGatewayTimeout = 10 * time.Second

type Service struct {
	Repo           ports.Repository
	Gateway        ports.PaymentGateway
	Accounts       ports.AgentAccounts
	Dedup          ports.EventDedup
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	GatewayTimeout time.Duration
	Logger         *slog.Logger
}

// CreateForAcceptedOffer records the commission owed for a won listing. The
// gateway is never called here. Creation is idempotent per offer: a replay
// returns the existing record.
func (s Service) CreateForAcceptedOffer(ctx context.Context, input ports.CreateCommissionInput) (entities.Commission, error) {
	offerID := strings.TrimSpace(input.OfferID)
	listingID := strings.TrimSpace(input.ListingID)
	agentID := strings.TrimSpace(input.AgentID)
	if err := entities.ValidateCreate(offerID, listingID, agentID, input.ListingPrice); err != nil {
		return entities.Commission{}, err
	}

	existing, err := s.Repo.GetCommissionByOfferID(ctx, offerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainerrors.ErrCommissionNotFound) {
		return entities.Commission{}, err
	}

	commissionID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Commission{}, err
	}
	now := s.now()
	commission := entities.Commission{
		CommissionID: strings.TrimSpace(commissionID),
		ListingID:    listingID,
		AgentID:      agentID,
		OfferID:      offerID,
		Amount:       entities.AmountFor(input.ListingPrice),
		Rate:         entities.CommissionRate,
		DueDate:      now.AddDate(0, 0, entities.GracePeriodDays),
		Status:       entities.CommissionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.Repo.CreateCommission(ctx, commission)
	if errors.Is(err, domainerrors.ErrDuplicateCommission) {
		// Lost a create race for the same offer. The winner's row is the record.
		return s.Repo.GetCommissionByOfferID(ctx, offerID)
	}
	if err != nil {
		return entities.Commission{}, err
	}

	ResolveLogger(s.Logger).Info("commission created",
		"event", "commission_created",
		"module", "finance-core/commission-engine",
		"layer", "application",
		"commission_id", created.CommissionID,
		"offer_id", created.OfferID,
		"agent_id", created.AgentID,
		"amount", created.Amount,
	)
	return created, nil
}

func (s Service) GetCommission(ctx context.Context, commissionID string) (entities.Commission, error) {
	if strings.TrimSpace(commissionID) == "" {
		return entities.Commission{}, domainerrors.ErrInvalidCommissionInput
	}
	return s.Repo.GetCommission(ctx, strings.TrimSpace(commissionID))
}

// InitiatePayment starts collecting a pending or failed commission through the
// payment gateway. Gateway failures and missing payout destinations degrade the
// commission to failed with a note instead of surfacing an error: the caller
// always learns the outcome from the returned record.
func (s Service) InitiatePayment(ctx context.Context, commissionID string) (entities.Commission, error) {
	commission, err := s.GetCommission(ctx, commissionID)
	if err != nil {
		return entities.Commission{}, err
	}
	if !commission.CanInitiatePayment() {
		return entities.Commission{}, domainerrors.ErrInvalidPaymentState
	}

	destination, err := s.Accounts.PayoutDestination(ctx, commission.AgentID)
	if err != nil || strings.TrimSpace(destination) == "" {
		note := "agent has no payout destination on file"
		if err != nil {
			note = fmt.Sprintf("payout destination lookup failed: %s", err.Error())
		}
		return s.markFailed(ctx, commission, note)
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout())
	defer cancel()

	intent, err := s.Gateway.CreateIntent(gatewayCtx, ports.CreateIntentInput{
		Amount:      commission.Amount,
		Currency:    "usd",
		Destination: strings.TrimSpace(destination),
		Metadata: map[string]string{
			"commission_id": commission.CommissionID,
			"listing_id":    commission.ListingID,
			"agent_id":      commission.AgentID,
		},
	})
	if err != nil {
		return s.markFailed(ctx, commission, fmt.Sprintf("payment gateway error: %s", err.Error()))
	}

	now := s.now()
	commission.Status = entities.CommissionStatusProcessing
	commission.GatewayPaymentID = intent.IntentID
	commission.Notes = "payment intent created"
	commission.UpdatedAt = now

	updated, err := s.Repo.UpdateCommission(ctx, commission)
	if err != nil {
		return entities.Commission{}, err
	}

	ResolveLogger(s.Logger).Info("commission payment initiated",
		"event", "commission_payment_initiated",
		"module", "finance-core/commission-engine",
		"layer", "application",
		"commission_id", updated.CommissionID,
		"gateway_payment_id", updated.GatewayPaymentID,
	)
	return updated, nil
}

// Reconcile applies a gateway event to the matching commission. Replays are
// no-ops twice over: the event ID is reserved in the dedup store, and a
// success event against an already paid commission changes nothing.
func (s Service) Reconcile(ctx context.Context, event ports.GatewayEvent) (entities.Commission, error) {
	commission, err := s.findForEvent(ctx, event)
	if err != nil {
		return entities.Commission{}, err
	}

	if s.Dedup != nil && strings.TrimSpace(event.EventID) != "" {
		fresh, err := s.Dedup.ReserveEvent(ctx, strings.TrimSpace(event.EventID), s.now())
		if err != nil {
			return entities.Commission{}, err
		}
		if !fresh {
			ResolveLogger(s.Logger).Info("gateway event replay ignored",
				"event", "commission_event_replayed",
				"module", "finance-core/commission-engine",
				"layer", "application",
				"gateway_event_id", event.EventID,
				"commission_id", commission.CommissionID,
			)
			return commission, nil
		}
	}

	switch event.Type {
	case ports.GatewayEventPaymentSucceeded:
		return s.reconcileSuccess(ctx, commission, event)
	case ports.GatewayEventPaymentFailed, ports.GatewayEventPaymentExpired:
		return s.reconcileFailure(ctx, commission, event)
	default:
		ResolveLogger(s.Logger).Warn("unhandled gateway event type",
			"event", "commission_event_unhandled",
			"module", "finance-core/commission-engine",
			"layer", "application",
			"gateway_event_type", event.Type,
			"commission_id", commission.CommissionID,
		)
		return commission, nil
	}
}

func (s Service) AgentSummary(ctx context.Context, agentID string) (ports.AgentSummary, error) {
	if strings.TrimSpace(agentID) == "" {
		return ports.AgentSummary{}, domainerrors.ErrInvalidCommissionInput
	}
	return s.Repo.SummarizeAgent(ctx, strings.TrimSpace(agentID))
}

func (s Service) AgentHistory(ctx context.Context, query ports.HistoryQuery) ([]entities.Commission, error) {
	query.AgentID = strings.TrimSpace(query.AgentID)
	if query.AgentID == "" {
		return nil, domainerrors.ErrInvalidCommissionInput
	}
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	return s.Repo.ListByAgent(ctx, query)
}

func (s Service) findForEvent(ctx context.Context, event ports.GatewayEvent) (entities.Commission, error) {
	if commissionID := strings.TrimSpace(event.Metadata["commission_id"]); commissionID != "" {
		commission, err := s.Repo.GetCommission(ctx, commissionID)
		if err == nil {
			return commission, nil
		}
		if !errors.Is(err, domainerrors.ErrCommissionNotFound) {
			return entities.Commission{}, err
		}
	}
	if intentID := strings.TrimSpace(event.IntentID); intentID != "" {
		commission, err := s.Repo.GetCommissionByGatewayPaymentID(ctx, intentID)
		if err == nil {
			return commission, nil
		}
		if !errors.Is(err, domainerrors.ErrCommissionNotFound) {
			return entities.Commission{}, err
		}
	}
	return entities.Commission{}, domainerrors.ErrUnknownGatewayEvent
}

func (s Service) reconcileSuccess(ctx context.Context, commission entities.Commission, event ports.GatewayEvent) (entities.Commission, error) {
	if commission.IsTerminalPaid() {
		return commission, nil
	}

	now := s.now()
	commission.Status = entities.CommissionStatusPaid
	commission.PaidAt = &now
	commission.Notes = "payment confirmed by gateway"
	if strings.TrimSpace(event.IntentID) != "" {
		commission.GatewayPaymentID = strings.TrimSpace(event.IntentID)
	}
	commission.UpdatedAt = now

	updated, err := s.Repo.UpdateCommission(ctx, commission)
	if err != nil {
		return entities.Commission{}, err
	}

	s.appendNotificationOutbox(ctx, "commission.paid", updated.AgentID, map[string]any{
		"commission_id": updated.CommissionID,
		"listing_id":    updated.ListingID,
		"amount":        updated.Amount,
	})
	ResolveLogger(s.Logger).Info("commission paid",
		"event", "commission_paid",
		"module", "finance-core/commission-engine",
		"layer", "application",
		"commission_id", updated.CommissionID,
		"agent_id", updated.AgentID,
		"amount", updated.Amount,
	)
	return updated, nil
}

func (s Service) reconcileFailure(ctx context.Context, commission entities.Commission, event ports.GatewayEvent) (entities.Commission, error) {
	// A failure event that races in after confirmed payment never unpays.
	if commission.IsTerminalPaid() {
		return commission, nil
	}

	reason := strings.TrimSpace(event.FailureReason)
	if reason == "" {
		reason = "payment did not complete"
	}
	if event.Type == ports.GatewayEventPaymentExpired {
		reason = "payment intent expired"
	}

	updated, err := s.markFailed(ctx, commission, reason)
	if err != nil {
		return entities.Commission{}, err
	}
	s.appendNotificationOutbox(ctx, "commission.failed", updated.AgentID, map[string]any{
		"commission_id": updated.CommissionID,
		"listing_id":    updated.ListingID,
		"reason":        updated.Notes,
	})
	return updated, nil
}

func (s Service) markFailed(ctx context.Context, commission entities.Commission, note string) (entities.Commission, error) {
	now := s.now()
	commission.Status = entities.CommissionStatusFailed
	commission.Notes = note
	commission.UpdatedAt = now

	updated, err := s.Repo.UpdateCommission(ctx, commission)
	if err != nil {
		return entities.Commission{}, err
	}

	ResolveLogger(s.Logger).Warn("commission payment failed",
		"event", "commission_payment_failed",
		"module", "finance-core/commission-engine",
		"layer", "application",
		"commission_id", updated.CommissionID,
		"note", note,
	)
	return updated, nil
}

func (s Service) appendNotificationOutbox(ctx context.Context, eventType string, recipientID string, payload map[string]any) {
	if s.Outbox == nil {
		return
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		ResolveLogger(s.Logger).Error("outbox event id generation failed",
			"event", "commission_outbox_append_failed",
			"module", "finance-core/commission-engine",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
		return
	}
	body := map[string]any{
		"recipient_id": strings.TrimSpace(recipientID),
		"channel":      "user:" + strings.TrimSpace(recipientID),
	}
	for key, value := range payload {
		body[key] = value
	}
	data, err := json.Marshal(body)
	if err != nil {
		ResolveLogger(s.Logger).Error("outbox payload encode failed",
			"event", "commission_outbox_append_failed",
			"module", "finance-core/commission-engine",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
		return
	}
	err = s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        eventType,
		OccurredAt:       s.now(),
		SourceService:    "commission-engine",
		TraceID:          strings.TrimSpace(eventID),
		SchemaVersion:    1,
		PartitionKeyPath: "recipient_id",
		PartitionKey:     strings.TrimSpace(recipientID),
		Data:             data,
	})
	if err != nil {
		ResolveLogger(s.Logger).Error("outbox append failed",
			"event", "commission_outbox_append_failed",
			"module", "finance-core/commission-engine",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
	}
}

func (s Service) gatewayTimeout() time.Duration {
	if s.GatewayTimeout > 0 {
		return s.GatewayTimeout
	}
	return defaultGatewayTimeout
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
