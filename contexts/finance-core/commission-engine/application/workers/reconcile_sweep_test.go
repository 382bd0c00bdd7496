package workers

import (
	"context"
	"testing"
	"time"

	"hearth/contexts/finance-core/commission-engine/adapters/memory"
	"hearth/contexts/finance-core/commission-engine/application"
	"hearth/contexts/finance-core/commission-engine/domain/entities"
	"hearth/contexts/finance-core/commission-engine/ports"
)

func TestSweepReconcilesSettledIntent(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := application.Service{
		Repo:     store,
		Gateway:  gateway,
		Accounts: store,
		Dedup:    store,
		Outbox:   store,
		Clock:    store,
		IDGen:    store,
	}
	store.SetPayoutDestination("agent-1", "acct_123")

	commission, err := svc.CreateForAcceptedOffer(context.Background(), ports.CreateCommissionInput{
		OfferID:      "offer-1",
		ListingID:    "listing-1",
		AgentID:      "agent-1",
		ListingPrice: 300000,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	processing, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}

	// The webhook never arrived; the gateway settled the intent meanwhile.
	gateway.SettleIntent(processing.GatewayPaymentID, ports.IntentStatusSucceeded, "")

	// Backdate the row so the sweep treats it as stale.
	processing.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	if _, err := store.UpdateCommission(context.Background(), processing); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	sweep := ReconcileSweep{
		Repo:       store,
		Gateway:    gateway,
		Service:    svc,
		StaleAfter: 30 * time.Minute,
		BatchSize:  10,
	}
	if err := sweep.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	final, err := store.GetCommission(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if final.Status != entities.CommissionStatusPaid {
		t.Fatalf("expected paid after sweep, got %s", final.Status)
	}
}

func TestSweepLeavesPendingIntentsAlone(t *testing.T) {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	svc := application.Service{
		Repo:     store,
		Gateway:  gateway,
		Accounts: store,
		Dedup:    store,
		Outbox:   store,
		Clock:    store,
		IDGen:    store,
	}
	store.SetPayoutDestination("agent-1", "acct_123")

	commission, err := svc.CreateForAcceptedOffer(context.Background(), ports.CreateCommissionInput{
		OfferID:      "offer-1",
		ListingID:    "listing-1",
		AgentID:      "agent-1",
		ListingPrice: 300000,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	processing, err := svc.InitiatePayment(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}

	processing.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	if _, err := store.UpdateCommission(context.Background(), processing); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	sweep := ReconcileSweep{
		Repo:    store,
		Gateway: gateway,
		Service: svc,
	}
	if err := sweep.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	final, err := store.GetCommission(context.Background(), commission.CommissionID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if final.Status != entities.CommissionStatusProcessing {
		t.Fatalf("expected still processing, got %s", final.Status)
	}
}
