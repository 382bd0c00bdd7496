package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "hearth/contexts/agent-routing/offer-ledger/application"
	"hearth/contexts/agent-routing/offer-ledger/ports"
)

// OutboxRelay hands pending offer outbox rows to the notification fanout. For
// accepted offers it also replays the commission create, so an accept whose
// synchronous commission call failed is repaired from the committed row.
type OutboxRelay struct {
	Outbox      ports.OutboxRepository
	Publisher   ports.NotificationPublisher
	Commissions ports.CommissionCreator
	Clock       ports.Clock
	BatchSize   int
	Logger      *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("offer outbox list failed",
			"event", "offer_outbox_list_failed",
			"module", "agent-routing/offer-ledger",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			logger.Error("offer outbox decode failed",
				"event", "offer_outbox_decode_failed",
				"module", "agent-routing/offer-ledger",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		if envelope.EventType == "offer.accepted" {
			if err := r.ensureCommission(ctx, envelope); err != nil {
				logger.Error("commission replay failed, row kept pending",
					"event", "offer_outbox_commission_replay_failed",
					"module", "agent-routing/offer-ledger",
					"layer", "worker",
					"outbox_id", row.OutboxID,
					"event_id", envelope.EventID,
					"error", err.Error(),
				)
				return err
			}
		}

		if err := r.Publisher.Publish(ctx, toNotificationEvent(envelope)); err != nil {
			logger.Error("offer outbox publish failed",
				"event", "offer_outbox_publish_failed",
				"module", "agent-routing/offer-ledger",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("offer outbox mark published failed",
				"event", "offer_outbox_mark_published_failed",
				"module", "agent-routing/offer-ledger",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("offer outbox relay cycle completed",
			"event", "offer_outbox_relay_completed",
			"module", "agent-routing/offer-ledger",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}

// ensureCommission re-issues the commission create for an accepted offer.
// Creation is idempotent per offer, so rows whose fast-path call already
// succeeded are no-ops here.
func (r OutboxRelay) ensureCommission(ctx context.Context, envelope ports.EventEnvelope) error {
	if r.Commissions == nil {
		return nil
	}
	payload, _ := envelope.Payload.(map[string]any)
	if payload == nil {
		return nil
	}
	accepted := ports.AcceptedOffer{}
	if offerID, ok := payload["offer_id"].(string); ok {
		accepted.OfferID = strings.TrimSpace(offerID)
	}
	if submissionID, ok := payload["submission_id"].(string); ok {
		accepted.SubmissionID = strings.TrimSpace(submissionID)
	}
	if agentID, ok := payload["agent_id"].(string); ok {
		accepted.AgentID = strings.TrimSpace(agentID)
	}
	if price, ok := payload["listing_price"].(float64); ok {
		accepted.ListingPrice = price
	}
	if accepted.OfferID == "" || accepted.AgentID == "" {
		// Rows written before the payload carried commission fields only feed
		// the notification fanout.
		return nil
	}
	return r.Commissions.CreateForAcceptedOffer(ctx, accepted)
}

func toNotificationEvent(envelope ports.EventEnvelope) ports.NotificationEvent {
	payload, _ := envelope.Payload.(map[string]any)
	event := ports.NotificationEvent{
		EventType: envelope.EventType,
		Payload:   payload,
	}
	if payload != nil {
		if recipient, ok := payload["recipient_id"].(string); ok {
			event.RecipientID = strings.TrimSpace(recipient)
		}
		if channel, ok := payload["channel"].(string); ok {
			event.Channel = strings.TrimSpace(channel)
		}
	}
	return event
}
