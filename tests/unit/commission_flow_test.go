package unit

import (
	"context"
	"testing"

	offerports "hearth/contexts/agent-routing/offer-ledger/ports"
	commissionentities "hearth/contexts/finance-core/commission-engine/domain/entities"
	commissionports "hearth/contexts/finance-core/commission-engine/ports"
	"hearth/internal/app/bootstrap"
)

// The full happy path: a submission is listed, an agent's offer is accepted,
// the commission engine books 5% of the listing price, payment goes out
// through the gateway and the webhook settles it as paid.
func TestAcceptedOfferSettlesCommission(t *testing.T) {
	app := bootstrap.BuildInMemory(nil)
	ctx := context.Background()

	submission, err := app.Offers.Service.CreateSubmission(ctx, offerports.CreateSubmissionInput{
		OwnerID:      "owner-1",
		Title:        "Waterfront listing",
		ListingPrice: 300000,
	})
	if err != nil {
		t.Fatalf("create submission failed: %v", err)
	}

	offer, err := app.Offers.Service.SubmitOffer(ctx, offerports.SubmitOfferInput{
		SubmissionID: submission.SubmissionID,
		AgentID:      "agent-1",
		Message:      "I can move this quickly",
	})
	if err != nil {
		t.Fatalf("submit offer failed: %v", err)
	}

	if _, err := app.Offers.Service.DecideOffer(ctx, offerports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      offer.OfferID,
		OwnerID:      "owner-1",
		Decision:     offerports.DecisionAccept,
	}); err != nil {
		t.Fatalf("accept offer failed: %v", err)
	}

	commission, err := app.Commissions.Store.GetCommissionByOfferID(ctx, offer.OfferID)
	if err != nil {
		t.Fatalf("commission was not created for accepted offer: %v", err)
	}
	if commission.Amount != 15000 {
		t.Fatalf("expected commission amount 15000, got %v", commission.Amount)
	}
	if commission.Status != commissionentities.CommissionStatusPending {
		t.Fatalf("expected pending commission, got %s", commission.Status)
	}

	app.Commissions.Store.SetPayoutDestination("agent-1", "acct_agent_1")
	commission, err = app.Commissions.Service.InitiatePayment(ctx, commission.CommissionID)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}
	if commission.Status != commissionentities.CommissionStatusProcessing {
		t.Fatalf("expected processing commission, got %s", commission.Status)
	}
	if commission.GatewayPaymentID == "" {
		t.Fatalf("expected gateway payment id after initiation")
	}

	commission, err = app.Commissions.Service.Reconcile(ctx, commissionports.GatewayEvent{
		EventID:  "evt-settle-1",
		Type:     commissionports.GatewayEventPaymentSucceeded,
		IntentID: commission.GatewayPaymentID,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if commission.Status != commissionentities.CommissionStatusPaid {
		t.Fatalf("expected paid commission, got %s", commission.Status)
	}
	if commission.PaidAt == nil {
		t.Fatalf("expected paid timestamp")
	}
}

func TestAcceptedOfferCommissionIsIdempotentAcrossRetries(t *testing.T) {
	app := bootstrap.BuildInMemory(nil)
	ctx := context.Background()

	submission, err := app.Offers.Service.CreateSubmission(ctx, offerports.CreateSubmissionInput{
		OwnerID:      "owner-1",
		Title:        "Country cottage",
		ListingPrice: 100000,
	})
	if err != nil {
		t.Fatalf("create submission failed: %v", err)
	}
	offer, err := app.Offers.Service.SubmitOffer(ctx, offerports.SubmitOfferInput{
		SubmissionID: submission.SubmissionID,
		AgentID:      "agent-2",
	})
	if err != nil {
		t.Fatalf("submit offer failed: %v", err)
	}
	if _, err := app.Offers.Service.DecideOffer(ctx, offerports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      offer.OfferID,
		OwnerID:      "owner-1",
		Decision:     offerports.DecisionAccept,
	}); err != nil {
		t.Fatalf("accept offer failed: %v", err)
	}

	first, err := app.Commissions.Store.GetCommissionByOfferID(ctx, offer.OfferID)
	if err != nil {
		t.Fatalf("commission missing: %v", err)
	}

	// A redelivered accept event must not mint a second commission.
	replay, err := app.Commissions.Service.CreateForAcceptedOffer(ctx, commissionports.CreateCommissionInput{
		OfferID:      offer.OfferID,
		ListingID:    submission.SubmissionID,
		AgentID:      "agent-2",
		ListingPrice: 100000,
	})
	if err != nil {
		t.Fatalf("replayed create failed: %v", err)
	}
	if replay.CommissionID != first.CommissionID {
		t.Fatalf("replay created a second commission: %s vs %s", replay.CommissionID, first.CommissionID)
	}
}
