package bootstrap

import (
	"log/slog"
	"time"

	offerledger "hearth/contexts/agent-routing/offer-ledger"
	offermemory "hearth/contexts/agent-routing/offer-ledger/adapters/memory"
	notificationservice "hearth/contexts/engagement/notification-service"
	commissionengine "hearth/contexts/finance-core/commission-engine"
	moderationservice "hearth/contexts/moderation-safety/moderation-service"
	moderationmemory "hearth/contexts/moderation-safety/moderation-service/adapters/memory"
)

// InMemoryApp wires all four modules against in-process adapters with the
// same cross-context bridges the production build uses. Tests exercise the
// full accept-to-payout flow through it without external services.
type InMemoryApp struct {
	Offers        offerledger.Module
	Commissions   commissionengine.Module
	Moderation    moderationservice.Module
	Notifications notificationservice.Module

	OfferStore      *offermemory.Store
	ModerationStore *moderationmemory.Store
}

func BuildInMemory(logger *slog.Logger) InMemoryApp {
	notifications := notificationservice.NewInMemoryModule(logger)
	commissions := commissionengine.NewInMemoryModule(logger)

	offerStore := offermemory.NewStore()
	offers := offerledger.NewModule(offerledger.Dependencies{
		Repository:  offerStore,
		Outbox:      offerStore,
		Agents:      offerStore,
		Commissions: commissionCreator{service: commissions.Service},
		Clock:       offerStore,
		IDGenerator: offerStore,
		Logger:      logger,
	})
	offers.Store = offerStore

	moderationStore := moderationmemory.NewStore()
	classifier := moderationmemory.NewClassifier()
	moderation := moderationservice.NewModule(moderationservice.Dependencies{
		Repository:     moderationStore,
		Classifier:     classifier,
		Moderators:     moderationStore,
		Notifications:  moderationNotifier{service: notifications.Service},
		Idempotency:    moderationStore,
		Clock:          moderationStore,
		IDGenerator:    moderationStore,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	moderation.Store = moderationStore
	moderation.Classifier = classifier

	return InMemoryApp{
		Offers:          offers,
		Commissions:     commissions,
		Moderation:      moderation,
		Notifications:   notifications,
		OfferStore:      offerStore,
		ModerationStore: moderationStore,
	}
}
