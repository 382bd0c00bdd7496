package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hearth/contexts/agent-routing/offer-ledger/adapters/memory"
	"hearth/contexts/agent-routing/offer-ledger/domain/entities"
	domainerrors "hearth/contexts/agent-routing/offer-ledger/domain/errors"
	"hearth/contexts/agent-routing/offer-ledger/ports"
)

func newService(store *memory.Store) Service {
	return Service{
		Repo:        store,
		Outbox:      store,
		Agents:      store,
		Commissions: store,
		Clock:       store,
		IDGen:       store,
	}
}

func seedSubmission(t *testing.T, svc Service, ownerID string, price float64) entities.Submission {
	t.Helper()
	submission, err := svc.CreateSubmission(context.Background(), ports.CreateSubmissionInput{
		OwnerID:      ownerID,
		Title:        "3BR house on Elm Street",
		ListingPrice: price,
	})
	if err != nil {
		t.Fatalf("seed submission failed: %v", err)
	}
	return submission
}

func seedOffer(t *testing.T, svc Service, submissionID string, agentID string) entities.Offer {
	t.Helper()
	value := 250000.0
	offer, err := svc.SubmitOffer(context.Background(), ports.SubmitOfferInput{
		SubmissionID:  submissionID,
		AgentID:       agentID,
		ProposedValue: &value,
	})
	if err != nil {
		t.Fatalf("seed offer for agent %s failed: %v", agentID, err)
	}
	return offer
}

func TestSubmitOfferDuplicateRejected(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)

	seedOffer(t, svc, submission.SubmissionID, "agent-1")
	_, err := svc.SubmitOffer(context.Background(), ports.SubmitOfferInput{
		SubmissionID: submission.SubmissionID,
		AgentID:      "agent-1",
	})
	if !errors.Is(err, domainerrors.ErrDuplicateOffer) {
		t.Fatalf("expected duplicate offer error, got %v", err)
	}

	offers, err := svc.ListOffers(context.Background(), submission.SubmissionID)
	if err != nil {
		t.Fatalf("list offers failed: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("expected exactly one offer for the pair, got %d", len(offers))
	}
}

func TestSubmitOfferClosedSubmission(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)
	offer := seedOffer(t, svc, submission.SubmissionID, "agent-1")

	_, err := svc.DecideOffer(context.Background(), ports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      offer.OfferID,
		OwnerID:      "owner-1",
		Decision:     ports.DecisionAccept,
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	_, err = svc.SubmitOffer(context.Background(), ports.SubmitOfferInput{
		SubmissionID: submission.SubmissionID,
		AgentID:      "agent-2",
	})
	if !errors.Is(err, domainerrors.ErrSubmissionClosed) {
		t.Fatalf("expected submission closed error, got %v", err)
	}
}

func TestSubmitOfferIneligibleAgent(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)
	store.MarkIneligible("agent-9")

	_, err := svc.SubmitOffer(context.Background(), ports.SubmitOfferInput{
		SubmissionID: submission.SubmissionID,
		AgentID:      "agent-9",
	})
	if !errors.Is(err, domainerrors.ErrAgentNotEligible) {
		t.Fatalf("expected eligibility error, got %v", err)
	}
}

func TestAcceptRejectsAllPendingSiblings(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)

	target := seedOffer(t, svc, submission.SubmissionID, "agent-1")
	seedOffer(t, svc, submission.SubmissionID, "agent-2")
	seedOffer(t, svc, submission.SubmissionID, "agent-3")

	result, err := svc.DecideOffer(context.Background(), ports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      target.OfferID,
		OwnerID:      "owner-1",
		Decision:     ports.DecisionAccept,
		Reason:       "best local track record",
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if result.Offer.Status != entities.OfferStatusAccepted {
		t.Fatalf("expected accepted status, got %s", result.Offer.Status)
	}
	if len(result.RejectedOffers) != 2 {
		t.Fatalf("expected 2 rejected siblings, got %d", len(result.RejectedOffers))
	}
	if result.ConversationID == "" {
		t.Fatalf("expected conversation to be created on accept")
	}

	offers, err := svc.ListOffers(context.Background(), submission.SubmissionID)
	if err != nil {
		t.Fatalf("list offers failed: %v", err)
	}
	accepted := 0
	for _, item := range offers {
		switch item.Status {
		case entities.OfferStatusAccepted:
			accepted++
		case entities.OfferStatusRejected:
		default:
			t.Fatalf("offer %s left in status %s", item.OfferID, item.Status)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted offer, got %d", accepted)
	}

	updated, err := svc.GetSubmission(context.Background(), submission.SubmissionID)
	if err != nil {
		t.Fatalf("get submission failed: %v", err)
	}
	if updated.Status != entities.SubmissionStatusAssigned {
		t.Fatalf("expected submission assigned, got %s", updated.Status)
	}
	if updated.AssignedAgentID != "agent-1" {
		t.Fatalf("expected agent-1 assigned, got %s", updated.AssignedAgentID)
	}
}

func TestConcurrentAcceptsExactlyOneWins(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)
	first := seedOffer(t, svc, submission.SubmissionID, "agent-1")
	second := seedOffer(t, svc, submission.SubmissionID, "agent-2")

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i, offerID := range []string{first.OfferID, second.OfferID} {
		wg.Add(1)
		go func(slot int, id string) {
			defer wg.Done()
			_, err := svc.DecideOffer(context.Background(), ports.DecideOfferInput{
				SubmissionID: submission.SubmissionID,
				OfferID:      id,
				OwnerID:      "owner-1",
				Decision:     ports.DecisionAccept,
			})
			results[slot] = err
		}(i, offerID)
	}
	wg.Wait()

	succeeded := 0
	conflicts := 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domainerrors.ErrSubmissionAlreadyAssigned),
			errors.Is(err, domainerrors.ErrOfferAlreadyDecided):
			conflicts++
		default:
			t.Fatalf("unexpected error from concurrent accept: %v", err)
		}
	}
	if succeeded != 1 || conflicts != 1 {
		t.Fatalf("expected one success and one conflict, got %d successes, %d conflicts", succeeded, conflicts)
	}

	updated, err := svc.GetSubmission(context.Background(), submission.SubmissionID)
	if err != nil {
		t.Fatalf("get submission failed: %v", err)
	}
	if updated.Status != entities.SubmissionStatusAssigned {
		t.Fatalf("expected submission assigned after the race, got %s", updated.Status)
	}
}

func TestDecideOfferOwnershipEnforced(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)
	offer := seedOffer(t, svc, submission.SubmissionID, "agent-1")

	_, err := svc.DecideOffer(context.Background(), ports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      offer.OfferID,
		OwnerID:      "intruder",
		Decision:     ports.DecisionAccept,
	})
	if !errors.Is(err, domainerrors.ErrNotSubmissionOwner) {
		t.Fatalf("expected ownership error, got %v", err)
	}
}

func TestDecideOfferAlreadyDecided(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)
	offer := seedOffer(t, svc, submission.SubmissionID, "agent-1")

	if _, err := svc.DecideOffer(context.Background(), ports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      offer.OfferID,
		OwnerID:      "owner-1",
		Decision:     ports.DecisionReject,
		Reason:       "valuation too low",
	}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	_, err := svc.DecideOffer(context.Background(), ports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      offer.OfferID,
		OwnerID:      "owner-1",
		Decision:     ports.DecisionAccept,
	})
	if !errors.Is(err, domainerrors.ErrOfferAlreadyDecided) {
		t.Fatalf("expected already decided error, got %v", err)
	}
}

func TestRejectedAgentMayOfferAgain(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)
	offer := seedOffer(t, svc, submission.SubmissionID, "agent-1")

	if _, err := svc.DecideOffer(context.Background(), ports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      offer.OfferID,
		OwnerID:      "owner-1",
		Decision:     ports.DecisionReject,
	}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if _, err := svc.SubmitOffer(context.Background(), ports.SubmitOfferInput{
		SubmissionID: submission.SubmissionID,
		AgentID:      "agent-1",
	}); err != nil {
		t.Fatalf("expected new offer after rejection to succeed, got %v", err)
	}
}

func TestAcceptHandsOfferToCommissionEngine(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)
	offer := seedOffer(t, svc, submission.SubmissionID, "agent-1")

	if _, err := svc.DecideOffer(context.Background(), ports.DecideOfferInput{
		SubmissionID: submission.SubmissionID,
		OfferID:      offer.OfferID,
		OwnerID:      "owner-1",
		Decision:     ports.DecisionAccept,
	}); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if len(store.CommissionCalls) != 1 {
		t.Fatalf("expected one commission creation call, got %d", len(store.CommissionCalls))
	}
	call := store.CommissionCalls[0]
	if call.OfferID != offer.OfferID || call.AgentID != "agent-1" || call.ListingPrice != 300000 {
		t.Fatalf("unexpected commission payload: %+v", call)
	}
}

func TestConfidenceOutOfRangeRejected(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	submission := seedSubmission(t, svc, "owner-1", 300000)

	confidence := 6
	_, err := svc.SubmitOffer(context.Background(), ports.SubmitOfferInput{
		SubmissionID: submission.SubmissionID,
		AgentID:      "agent-1",
		Confidence:   &confidence,
	})
	if !errors.Is(err, domainerrors.ErrInvalidOfferInput) {
		t.Fatalf("expected invalid offer input, got %v", err)
	}
}
