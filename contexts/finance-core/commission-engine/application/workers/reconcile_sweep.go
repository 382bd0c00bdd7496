package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hearth/contexts/finance-core/commission-engine/application"
	"hearth/contexts/finance-core/commission-engine/domain/entities"
	"hearth/contexts/finance-core/commission-engine/ports"
)

const defaultStaleAfter = 30 * time.Minute

// ReconcileSweep polls the gateway for commissions stuck in processing and
// applies any terminal outcome. It covers webhooks the server never received.
type ReconcileSweep struct {
	Repo       ports.Repository
	Gateway    ports.PaymentGateway
	Service    application.Service
	Clock      ports.Clock
	StaleAfter time.Duration
	BatchSize  int
	Logger     *slog.Logger
}

func (w ReconcileSweep) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	staleAfter := w.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	limit := w.BatchSize
	if limit <= 0 {
		limit = 50
	}

	now := time.Now().UTC()
	if w.Clock != nil {
		now = w.Clock.Now().UTC()
	}

	stale, err := w.Repo.ListStaleProcessing(ctx, now.Add(-staleAfter), limit)
	if err != nil {
		logger.Error("stale commission list failed",
			"event", "commission_sweep_list_failed",
			"module", "finance-core/commission-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	reconciled := 0
	for _, commission := range stale {
		if commission.GatewayPaymentID == "" {
			continue
		}
		intent, err := w.Gateway.RetrieveIntent(ctx, commission.GatewayPaymentID)
		if err != nil {
			logger.Warn("intent retrieval failed, will retry next sweep",
				"event", "commission_sweep_retrieve_failed",
				"module", "finance-core/commission-engine",
				"layer", "worker",
				"commission_id", commission.CommissionID,
				"gateway_payment_id", commission.GatewayPaymentID,
				"error", err.Error(),
			)
			continue
		}

		event, ok := eventForIntent(commission, intent, now)
		if !ok {
			continue
		}
		if _, err := w.Service.Reconcile(ctx, event); err != nil {
			logger.Error("sweep reconcile failed",
				"event", "commission_sweep_reconcile_failed",
				"module", "finance-core/commission-engine",
				"layer", "worker",
				"commission_id", commission.CommissionID,
				"error", err.Error(),
			)
			continue
		}
		reconciled++
	}

	if len(stale) > 0 {
		logger.Info("commission sweep cycle completed",
			"event", "commission_sweep_completed",
			"module", "finance-core/commission-engine",
			"layer", "worker",
			"stale_count", len(stale),
			"reconciled_count", reconciled,
		)
	}
	return nil
}

// eventForIntent maps a polled intent to a synthetic gateway event. Intents
// still pending produce nothing; the next sweep looks again.
func eventForIntent(commission entities.Commission, intent ports.PaymentIntent, now time.Time) (ports.GatewayEvent, bool) {
	event := ports.GatewayEvent{
		EventID:  fmt.Sprintf("sweep:%s:%d", intent.IntentID, now.Unix()),
		IntentID: intent.IntentID,
		Metadata: map[string]string{
			"commission_id": commission.CommissionID,
		},
		FailureReason: intent.FailureReason,
	}
	switch intent.Status {
	case ports.IntentStatusSucceeded:
		event.Type = ports.GatewayEventPaymentSucceeded
	case ports.IntentStatusFailed:
		event.Type = ports.GatewayEventPaymentFailed
	case ports.IntentStatusExpired:
		event.Type = ports.GatewayEventPaymentExpired
	default:
		return ports.GatewayEvent{}, false
	}
	return event, true
}
