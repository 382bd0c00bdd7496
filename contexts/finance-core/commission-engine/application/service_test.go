package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"hearth/contexts/finance-core/commission-engine/adapters/memory"
	"hearth/contexts/finance-core/commission-engine/domain/entities"
	domainerrors "hearth/contexts/finance-core/commission-engine/domain/errors"
	"hearth/contexts/finance-core/commission-engine/ports"
)

func newService(store *memory.Store, gateway *memory.Gateway) Service {
	return Service{
		Repo:     store,
		Gateway:  gateway,
		Accounts: store,
		Dedup:    store,
		Outbox:   store,
		Clock:    store,
		IDGen:    store,
	}
}

func seedCommission(t *testing.T, svc Service, offerID string, price float64) entities.Commission {
	t.Helper()
	commission, err := svc.CreateForAcceptedOffer(context.Background(), ports.CreateCommissionInput{
		OfferID:      offerID,
		ListingID:    "listing-1",
		AgentID:      "agent-1",
		ListingPrice: price,
	})
	if err != nil {
		t.Fatalf("seed commission failed: %v", err)
	}
	return commission
}

func TestCreateForAcceptedOfferDeterministicAmount(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewGateway())

	commission := seedCommission(t, svc, "offer-1", 300000)
	if commission.Amount != 15000 {
		t.Fatalf("expected amount 15000, got %v", commission.Amount)
	}
	if commission.Rate != entities.CommissionRate {
		t.Fatalf("expected rate %v, got %v", entities.CommissionRate, commission.Rate)
	}
	if commission.Status != entities.CommissionStatusPending {
		t.Fatalf("expected pending status, got %s", commission.Status)
	}
	wantDue := commission.CreatedAt.AddDate(0, 0, entities.GracePeriodDays)
	if !commission.DueDate.Equal(wantDue) {
		t.Fatalf("expected due date %v, got %v", wantDue, commission.DueDate)
	}
}

func TestReconcileSuccessWritesCanonicalOutboxEnvelope(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := newService(store, gateway)
	store.SetPayoutDestination("agent-1", "acct_123")

	commission := seedCommission(t, svc, "offer-1", 300000)
	processing, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}
	if _, err := svc.Reconcile(context.Background(), ports.GatewayEvent{
		EventID:  "evt-1",
		Type:     ports.GatewayEventPaymentSucceeded,
		IntentID: processing.GatewayPaymentID,
	}); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	rows, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one outbox row, got %d", len(rows))
	}
	var envelope ports.EventEnvelope
	if err := json.Unmarshal(rows[0].Payload, &envelope); err != nil {
		t.Fatalf("outbox row is not a canonical envelope: %v", err)
	}
	if envelope.EventType != "commission.paid" || envelope.SchemaVersion != 1 {
		t.Fatalf("unexpected envelope header: type=%q schema=%d", envelope.EventType, envelope.SchemaVersion)
	}
	if envelope.PartitionKey != "agent-1" {
		t.Fatalf("expected recipient partition key, got %q", envelope.PartitionKey)
	}
	var data map[string]any
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("envelope data decode failed: %v", err)
	}
	if data["recipient_id"] != "agent-1" || data["commission_id"] != commission.CommissionID {
		t.Fatalf("unexpected envelope data: %+v", data)
	}
}

func TestCreateForAcceptedOfferRoundsToCents(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewGateway())

	commission := seedCommission(t, svc, "offer-1", 333333.33)
	if commission.Amount != 16666.67 {
		t.Fatalf("expected amount 16666.67, got %v", commission.Amount)
	}
}

func TestCreateForAcceptedOfferIdempotentPerOffer(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewGateway())

	first := seedCommission(t, svc, "offer-1", 300000)
	replay := seedCommission(t, svc, "offer-1", 300000)
	if replay.CommissionID != first.CommissionID {
		t.Fatalf("expected replay to return the original commission, got %s and %s", first.CommissionID, replay.CommissionID)
	}

	history, err := svc.AgentHistory(context.Background(), ports.HistoryQuery{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one commission after replay, got %d", len(history))
	}
}

func TestInitiatePaymentMovesToProcessing(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := newService(store, gateway)
	store.SetPayoutDestination("agent-1", "acct_123")
	commission := seedCommission(t, svc, "offer-1", 300000)

	updated, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}
	if updated.Status != entities.CommissionStatusProcessing {
		t.Fatalf("expected processing status, got %s", updated.Status)
	}
	if updated.GatewayPaymentID == "" {
		t.Fatalf("expected gateway payment id to be stored")
	}
	if len(gateway.CreateCalls) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.CreateCalls))
	}
	call := gateway.CreateCalls[0]
	if call.Metadata["commission_id"] != commission.CommissionID {
		t.Fatalf("expected commission id in gateway metadata, got %+v", call.Metadata)
	}
}

func TestInitiatePaymentWithoutDestinationFails(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewGateway())
	commission := seedCommission(t, svc, "offer-1", 300000)

	updated, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("expected degraded outcome without error, got %v", err)
	}
	if updated.Status != entities.CommissionStatusFailed {
		t.Fatalf("expected failed status, got %s", updated.Status)
	}
	if updated.Notes == "" {
		t.Fatalf("expected a note explaining the failure")
	}
}

func TestInitiatePaymentGatewayErrorDegradesToFailed(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := newService(store, gateway)
	store.SetPayoutDestination("agent-1", "acct_123")
	commission := seedCommission(t, svc, "offer-1", 300000)
	gateway.FailNextCreate(errors.New("connection reset"))

	updated, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("expected degraded outcome without error, got %v", err)
	}
	if updated.Status != entities.CommissionStatusFailed {
		t.Fatalf("expected failed status, got %s", updated.Status)
	}

	// Failed commissions stay payable.
	retried, err := svc.InitiatePayment(context.Background(), updated.CommissionID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.Status != entities.CommissionStatusProcessing {
		t.Fatalf("expected processing after retry, got %s", retried.Status)
	}
}

func TestInitiatePaymentRejectedFromProcessing(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := newService(store, gateway)
	store.SetPayoutDestination("agent-1", "acct_123")
	commission := seedCommission(t, svc, "offer-1", 300000)

	if _, err := svc.InitiatePayment(context.Background(), commission.CommissionID); err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}
	_, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if !errors.Is(err, domainerrors.ErrInvalidPaymentState) {
		t.Fatalf("expected invalid payment state, got %v", err)
	}
}

func TestReconcileSuccessIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := newService(store, gateway)
	store.SetPayoutDestination("agent-1", "acct_123")
	commission := seedCommission(t, svc, "offer-1", 300000)
	processing, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}

	event := ports.GatewayEvent{
		EventID:  "evt-1",
		Type:     ports.GatewayEventPaymentSucceeded,
		IntentID: processing.GatewayPaymentID,
		Metadata: map[string]string{"commission_id": commission.CommissionID},
	}
	paid, err := svc.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if paid.Status != entities.CommissionStatusPaid {
		t.Fatalf("expected paid status, got %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatalf("expected paid timestamp")
	}

	// Same webhook delivered again.
	replay, err := svc.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("replay reconcile failed: %v", err)
	}
	if replay.Status != entities.CommissionStatusPaid {
		t.Fatalf("expected paid status after replay, got %s", replay.Status)
	}
	if !replay.PaidAt.Equal(*paid.PaidAt) {
		t.Fatalf("expected paid timestamp unchanged on replay")
	}
}

func TestReconcileFailureAfterPaidIsNoOp(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := newService(store, gateway)
	store.SetPayoutDestination("agent-1", "acct_123")
	commission := seedCommission(t, svc, "offer-1", 300000)
	processing, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}

	if _, err := svc.Reconcile(context.Background(), ports.GatewayEvent{
		EventID:  "evt-1",
		Type:     ports.GatewayEventPaymentSucceeded,
		IntentID: processing.GatewayPaymentID,
		Metadata: map[string]string{"commission_id": commission.CommissionID},
	}); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	after, err := svc.Reconcile(context.Background(), ports.GatewayEvent{
		EventID:       "evt-2",
		Type:          ports.GatewayEventPaymentFailed,
		IntentID:      processing.GatewayPaymentID,
		Metadata:      map[string]string{"commission_id": commission.CommissionID},
		FailureReason: "card declined",
	})
	if err != nil {
		t.Fatalf("late failure reconcile errored: %v", err)
	}
	if after.Status != entities.CommissionStatusPaid {
		t.Fatalf("late failure must not unpay, got %s", after.Status)
	}
}

func TestReconcileUnknownEvent(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewGateway())

	_, err := svc.Reconcile(context.Background(), ports.GatewayEvent{
		EventID:  "evt-x",
		Type:     ports.GatewayEventPaymentSucceeded,
		IntentID: "pi_unknown",
	})
	if !errors.Is(err, domainerrors.ErrUnknownGatewayEvent) {
		t.Fatalf("expected unknown gateway event error, got %v", err)
	}
}

func TestAgentSummaryAggregates(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := newService(store, gateway)
	store.SetPayoutDestination("agent-1", "acct_123")

	seedCommission(t, svc, "offer-1", 100000)
	second := seedCommission(t, svc, "offer-2", 200000)
	processing, err := svc.InitiatePayment(context.Background(), second.CommissionID)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}
	if _, err := svc.Reconcile(context.Background(), ports.GatewayEvent{
		EventID:  "evt-1",
		Type:     ports.GatewayEventPaymentSucceeded,
		IntentID: processing.GatewayPaymentID,
		Metadata: map[string]string{"commission_id": second.CommissionID},
	}); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	summary, err := svc.AgentSummary(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.PendingCount != 1 || summary.PaidCount != 1 {
		t.Fatalf("unexpected summary counts: %+v", summary)
	}
	if summary.TotalPaidAmount != 10000 {
		t.Fatalf("expected paid total 10000, got %v", summary.TotalPaidAmount)
	}
}
