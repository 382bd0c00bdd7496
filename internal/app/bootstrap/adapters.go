package bootstrap

import (
	"context"

	offerports "hearth/contexts/agent-routing/offer-ledger/ports"
	notificationapp "hearth/contexts/engagement/notification-service/application"
	notificationports "hearth/contexts/engagement/notification-service/ports"
	commissionapp "hearth/contexts/finance-core/commission-engine/application"
	commissionports "hearth/contexts/finance-core/commission-engine/ports"
	moderationports "hearth/contexts/moderation-safety/moderation-service/ports"
)

// commissionCreator bridges an accepted offer into the commission engine.
// The submission doubles as the listing on the finance side.
type commissionCreator struct {
	service commissionapp.Service
}

func (c commissionCreator) CreateForAcceptedOffer(ctx context.Context, accepted offerports.AcceptedOffer) error {
	_, err := c.service.CreateForAcceptedOffer(ctx, commissionports.CreateCommissionInput{
		OfferID:      accepted.OfferID,
		ListingID:    accepted.SubmissionID,
		AgentID:      accepted.AgentID,
		ListingPrice: accepted.ListingPrice,
	})
	return err
}

// offerNotifier fans offer events out through the notification service.
type offerNotifier struct {
	service notificationapp.Service
}

func (n offerNotifier) Publish(ctx context.Context, event offerports.NotificationEvent) error {
	_, err := n.service.Publish(ctx, notificationports.PublishInput{
		RecipientID: event.RecipientID,
		Channel:     event.Channel,
		EventType:   event.EventType,
		Payload:     event.Payload,
	})
	return err
}

type commissionNotifier struct {
	service notificationapp.Service
}

func (n commissionNotifier) Publish(ctx context.Context, event commissionports.NotificationEvent) error {
	_, err := n.service.Publish(ctx, notificationports.PublishInput{
		RecipientID: event.RecipientID,
		Channel:     event.Channel,
		EventType:   event.EventType,
		Payload:     event.Payload,
	})
	return err
}

type moderationNotifier struct {
	service notificationapp.Service
}

func (n moderationNotifier) Publish(ctx context.Context, event moderationports.NotificationEvent) error {
	_, err := n.service.Publish(ctx, notificationports.PublishInput{
		RecipientID: event.RecipientID,
		Channel:     event.Channel,
		EventType:   event.EventType,
		Payload:     event.Payload,
	})
	return err
}
