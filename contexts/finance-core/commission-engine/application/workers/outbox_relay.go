package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"hearth/contexts/finance-core/commission-engine/application"
	"hearth/contexts/finance-core/commission-engine/ports"
)

// OutboxRelay hands pending commission outbox rows to the notification fanout.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.NotificationPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("commission outbox list failed",
			"event", "commission_outbox_list_failed",
			"module", "finance-core/commission-engine",
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
			logger.Error("commission outbox decode failed",
				"event", "commission_outbox_decode_failed",
				"module", "finance-core/commission-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		event, err := toNotificationEvent(envelope)
		if err != nil {
			logger.Error("commission outbox decode failed",
				"event", "commission_outbox_decode_failed",
				"module", "finance-core/commission-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Publisher.Publish(ctx, event); err != nil {
			logger.Error("commission outbox publish failed",
				"event", "commission_outbox_publish_failed",
				"module", "finance-core/commission-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("commission outbox mark published failed",
				"event", "commission_outbox_mark_published_failed",
				"module", "finance-core/commission-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("commission outbox relay cycle completed",
			"event", "commission_outbox_relay_completed",
			"module", "finance-core/commission-engine",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}

func toNotificationEvent(envelope ports.EventEnvelope) (ports.NotificationEvent, error) {
	var payload map[string]any
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return ports.NotificationEvent{}, err
		}
	}
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
	return event, nil
}
