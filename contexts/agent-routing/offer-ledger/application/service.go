package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"hearth/contexts/agent-routing/offer-ledger/domain/entities"
	domainerrors "hearth/contexts/agent-routing/offer-ledger/domain/errors"
	"hearth/contexts/agent-routing/offer-ledger/ports"
)

type Service struct {
	Repo        ports.Repository
	Outbox      ports.OutboxWriter
	Agents      ports.AgentDirectory
	Commissions ports.CommissionCreator
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func (s Service) CreateSubmission(ctx context.Context, input ports.CreateSubmissionInput) (entities.Submission, error) {
	submission := entities.Submission{
		OwnerID:      strings.TrimSpace(input.OwnerID),
		Title:        strings.TrimSpace(input.Title),
		Details:      input.Details,
		ListingPrice: input.ListingPrice,
		Status:       entities.SubmissionStatusPending,
	}
	if !submission.ValidateCreate() {
		return entities.Submission{}, domainerrors.ErrInvalidSubmissionInput
	}

	submissionID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Submission{}, err
	}
	now := s.now()
	submission.SubmissionID = strings.TrimSpace(submissionID)
	submission.CreatedAt = now
	submission.UpdatedAt = now

	if err := s.Repo.CreateSubmission(ctx, submission); err != nil {
		return entities.Submission{}, err
	}

	ResolveLogger(s.Logger).Info("submission created",
		"event", "submission_created",
		"module", "agent-routing/offer-ledger",
		"layer", "application",
		"submission_id", submission.SubmissionID,
		"owner_id", submission.OwnerID,
	)
	return submission, nil
}

func (s Service) GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error) {
	if strings.TrimSpace(submissionID) == "" {
		return entities.Submission{}, domainerrors.ErrInvalidSubmissionInput
	}
	return s.Repo.GetSubmission(ctx, strings.TrimSpace(submissionID))
}

// SubmitOffer records an agent's bid against a pending submission. The
// one-active-offer-per-agent invariant is enforced by the repository, not by a
// read-then-write check here.
func (s Service) SubmitOffer(ctx context.Context, input ports.SubmitOfferInput) (entities.Offer, error) {
	offer := entities.Offer{
		SubmissionID:  strings.TrimSpace(input.SubmissionID),
		AgentID:       strings.TrimSpace(input.AgentID),
		ProposedValue: input.ProposedValue,
		Confidence:    input.Confidence,
		Message:       strings.TrimSpace(input.Message),
		Status:        entities.OfferStatusPending,
	}
	if !offer.ValidateCreate() {
		return entities.Offer{}, domainerrors.ErrInvalidOfferInput
	}

	submission, err := s.Repo.GetSubmission(ctx, offer.SubmissionID)
	if err != nil {
		return entities.Offer{}, err
	}
	if submission.Status != entities.SubmissionStatusPending {
		return entities.Offer{}, domainerrors.ErrSubmissionClosed
	}

	eligible, err := s.Agents.IsEligibleAgent(ctx, offer.AgentID)
	if err != nil {
		return entities.Offer{}, err
	}
	if !eligible {
		return entities.Offer{}, domainerrors.ErrAgentNotEligible
	}

	offerID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Offer{}, err
	}
	offer.OfferID = strings.TrimSpace(offerID)
	offer.CreatedAt = s.now()

	if err := s.Repo.CreateOffer(ctx, offer); err != nil {
		return entities.Offer{}, err
	}

	s.appendNotificationOutbox(ctx, "offer.received", submission.OwnerID, map[string]any{
		"submission_id": submission.SubmissionID,
		"offer_id":      offer.OfferID,
		"agent_id":      offer.AgentID,
	})

	ResolveLogger(s.Logger).Info("offer submitted",
		"event", "offer_submitted",
		"module", "agent-routing/offer-ledger",
		"layer", "application",
		"submission_id", offer.SubmissionID,
		"offer_id", offer.OfferID,
		"agent_id", offer.AgentID,
	)
	return offer, nil
}

func (s Service) ListOffers(ctx context.Context, submissionID string) ([]entities.Offer, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, domainerrors.ErrInvalidSubmissionInput
	}
	if _, err := s.Repo.GetSubmission(ctx, strings.TrimSpace(submissionID)); err != nil {
		return nil, err
	}
	return s.Repo.ListOffersBySubmission(ctx, strings.TrimSpace(submissionID))
}

// DecideOffer resolves a pending offer. Offers are not ranked: acceptance is
// an explicit owner action and the system only guarantees exclusivity.
func (s Service) DecideOffer(ctx context.Context, input ports.DecideOfferInput) (ports.DecisionResult, error) {
	submissionID := strings.TrimSpace(input.SubmissionID)
	offerID := strings.TrimSpace(input.OfferID)
	ownerID := strings.TrimSpace(input.OwnerID)
	decision := strings.TrimSpace(strings.ToLower(input.Decision))
	reason := strings.TrimSpace(input.Reason)

	if submissionID == "" || offerID == "" || ownerID == "" {
		return ports.DecisionResult{}, domainerrors.ErrInvalidOfferInput
	}
	if decision != ports.DecisionAccept && decision != ports.DecisionReject {
		return ports.DecisionResult{}, domainerrors.ErrInvalidDecision
	}

	submission, err := s.Repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return ports.DecisionResult{}, err
	}
	if submission.OwnerID != ownerID {
		return ports.DecisionResult{}, domainerrors.ErrNotSubmissionOwner
	}
	switch submission.Status {
	case entities.SubmissionStatusAssigned:
		return ports.DecisionResult{}, domainerrors.ErrSubmissionAlreadyAssigned
	case entities.SubmissionStatusClosed:
		return ports.DecisionResult{}, domainerrors.ErrSubmissionClosed
	}

	offer, err := s.Repo.GetOffer(ctx, offerID)
	if err != nil {
		return ports.DecisionResult{}, err
	}
	if offer.SubmissionID != submissionID {
		return ports.DecisionResult{}, domainerrors.ErrOfferNotFound
	}
	if offer.IsDecided() {
		return ports.DecisionResult{}, domainerrors.ErrOfferAlreadyDecided
	}

	now := s.now()
	if decision == ports.DecisionReject {
		rejected, err := s.Repo.RejectOffer(ctx, ports.RejectOfferInput{
			SubmissionID: submissionID,
			OfferID:      offerID,
			Reason:       reason,
			Now:          now,
		})
		if err != nil {
			return ports.DecisionResult{}, err
		}
		s.appendNotificationOutbox(ctx, "offer.rejected", rejected.AgentID, map[string]any{
			"submission_id": submissionID,
			"offer_id":      rejected.OfferID,
			"reason":        rejected.DecisionReason,
		})
		ResolveLogger(s.Logger).Info("offer rejected",
			"event", "offer_rejected",
			"module", "agent-routing/offer-ledger",
			"layer", "application",
			"submission_id", submissionID,
			"offer_id", offerID,
		)
		return ports.DecisionResult{Offer: rejected}, nil
	}

	conversationID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.DecisionResult{}, err
	}
	outcome, err := s.Repo.AcceptOffer(ctx, ports.AcceptOfferInput{
		SubmissionID:   submissionID,
		OfferID:        offerID,
		Reason:         reason,
		ConversationID: strings.TrimSpace(conversationID),
		Now:            now,
	})
	if err != nil {
		return ports.DecisionResult{}, err
	}

	// The accepted event carries everything the commission engine needs so the
	// outbox relay can replay the create if the synchronous call below fails.
	s.appendNotificationOutbox(ctx, "offer.accepted", outcome.Offer.AgentID, map[string]any{
		"submission_id": submissionID,
		"offer_id":      outcome.Offer.OfferID,
		"agent_id":      outcome.Offer.AgentID,
		"listing_price": outcome.Submission.ListingPrice,
		"reason":        outcome.Offer.DecisionReason,
	})
	for _, sibling := range outcome.RejectedOffers {
		s.appendNotificationOutbox(ctx, "offer.rejected", sibling.AgentID, map[string]any{
			"submission_id": submissionID,
			"offer_id":      sibling.OfferID,
			"reason":        sibling.DecisionReason,
		})
	}

	s.createCommission(ctx, outcome)

	ResolveLogger(s.Logger).Info("offer accepted",
		"event", "offer_accepted",
		"module", "agent-routing/offer-ledger",
		"layer", "application",
		"submission_id", submissionID,
		"offer_id", offerID,
		"agent_id", outcome.Offer.AgentID,
		"rejected_siblings", len(outcome.RejectedOffers),
	)
	return ports.DecisionResult{
		Offer:          outcome.Offer,
		RejectedOffers: outcome.RejectedOffers,
		ConversationID: outcome.Conversation.ConversationID,
	}, nil
}

// createCommission hands the accepted offer to the commission engine. The
// accept transaction has already committed, so this is the fast path only: a
// failure here is logged and the outbox relay replays the create from the
// committed offer.accepted row (the engine's create is idempotent per offer).
func (s Service) createCommission(ctx context.Context, outcome ports.AcceptOutcome) {
	if s.Commissions == nil {
		return
	}
	err := s.Commissions.CreateForAcceptedOffer(ctx, ports.AcceptedOffer{
		OfferID:      outcome.Offer.OfferID,
		SubmissionID: outcome.Submission.SubmissionID,
		AgentID:      outcome.Offer.AgentID,
		ListingPrice: outcome.Submission.ListingPrice,
	})
	if err != nil {
		ResolveLogger(s.Logger).Error("commission creation failed after accept",
			"event", "offer_commission_create_failed",
			"module", "agent-routing/offer-ledger",
			"layer", "application",
			"submission_id", outcome.Submission.SubmissionID,
			"offer_id", outcome.Offer.OfferID,
			"error", err.Error(),
		)
	}
}

func (s Service) appendNotificationOutbox(ctx context.Context, eventType string, recipientID string, payload map[string]any) {
	if s.Outbox == nil {
		return
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		ResolveLogger(s.Logger).Error("outbox event id generation failed",
			"event", "offer_outbox_append_failed",
			"module", "agent-routing/offer-ledger",
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
	err = s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:        strings.TrimSpace(eventID),
		EventType:      eventType,
		SourceService:  "offer-ledger",
		OccurredAtUTC:  s.now(),
		CorrelationID:  strings.TrimSpace(eventID),
		EntityType:     "offer",
		EntityID:       strings.TrimSpace(recipientID),
		PayloadVersion: 1,
		Payload:        body,
	})
	if err != nil {
		ResolveLogger(s.Logger).Error("outbox append failed",
			"event", "offer_outbox_append_failed",
			"module", "agent-routing/offer-ledger",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
	}
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
