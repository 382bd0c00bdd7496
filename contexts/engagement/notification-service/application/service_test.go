package application

import (
	"context"
	"errors"
	"testing"

	"hearth/contexts/engagement/notification-service/adapters/memory"
	domainerrors "hearth/contexts/engagement/notification-service/domain/errors"
	"hearth/contexts/engagement/notification-service/ports"
)

func newService(store *memory.Store, bus *memory.Bus) Service {
	return Service{
		Repo:  store,
		Bus:   bus,
		Clock: store,
		IDGen: store,
	}
}

func TestPublishWritesRowAndPushes(t *testing.T) {
	store := memory.NewStore()
	bus := memory.NewBus()
	service := newService(store, bus)

	notification, err := service.Publish(context.Background(), ports.PublishInput{
		RecipientID: "agent-1",
		EventType:   "commission.paid",
		Payload:     map[string]any{"commission_id": "c-1"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if notification.Channel != "user:agent-1" {
		t.Fatalf("expected default channel, got %q", notification.Channel)
	}

	stored, err := store.GetNotification(context.Background(), notification.NotificationID)
	if err != nil {
		t.Fatalf("durable row missing: %v", err)
	}
	if stored.EventType != "commission.paid" {
		t.Fatalf("unexpected stored event type %q", stored.EventType)
	}

	if len(bus.Delivered) != 1 {
		t.Fatalf("expected one bus message, got %d", len(bus.Delivered))
	}
	if bus.Delivered[0].Channel != "user:agent-1" {
		t.Fatalf("unexpected bus channel %q", bus.Delivered[0].Channel)
	}
}

func TestPublishSurvivesBusFailure(t *testing.T) {
	store := memory.NewStore()
	bus := memory.NewBus()
	bus.FailWith(errors.New("subscriber gone"))
	service := newService(store, bus)

	notification, err := service.Publish(context.Background(), ports.PublishInput{
		RecipientID: "agent-1",
		EventType:   "offer.accepted",
	})
	if err != nil {
		t.Fatalf("bus failure must not surface: %v", err)
	}

	if _, err := store.GetNotification(context.Background(), notification.NotificationID); err != nil {
		t.Fatalf("durable row must exist despite bus failure: %v", err)
	}
	if len(bus.Delivered) != 0 {
		t.Fatalf("expected no delivered messages, got %d", len(bus.Delivered))
	}
}

func TestPublishRejectsMissingRecipient(t *testing.T) {
	service := newService(memory.NewStore(), memory.NewBus())

	_, err := service.Publish(context.Background(), ports.PublishInput{
		EventType: "offer.accepted",
	})
	if !errors.Is(err, domainerrors.ErrInvalidNotificationData) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestListForRecipientFiltersUnread(t *testing.T) {
	store := memory.NewStore()
	service := newService(store, memory.NewBus())

	first, err := service.Publish(context.Background(), ports.PublishInput{
		RecipientID: "agent-1",
		EventType:   "offer.accepted",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if _, err := service.Publish(context.Background(), ports.PublishInput{
		RecipientID: "agent-1",
		EventType:   "commission.paid",
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if _, err := service.Publish(context.Background(), ports.PublishInput{
		RecipientID: "agent-2",
		EventType:   "review-rejected",
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if _, err := service.MarkRead(context.Background(), first.NotificationID, "agent-1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	all, err := service.ListForRecipient(context.Background(), ports.ListQuery{RecipientID: "agent-1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 notifications for agent-1, got %d", len(all))
	}

	unread, err := service.ListForRecipient(context.Background(), ports.ListQuery{
		RecipientID: "agent-1",
		UnreadOnly:  true,
	})
	if err != nil {
		t.Fatalf("list unread failed: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread notification, got %d", len(unread))
	}
	if unread[0].EventType != "commission.paid" {
		t.Fatalf("unexpected unread notification %q", unread[0].EventType)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	service := newService(store, memory.NewBus())

	notification, err := service.Publish(context.Background(), ports.PublishInput{
		RecipientID: "agent-1",
		EventType:   "offer.accepted",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	first, err := service.MarkRead(context.Background(), notification.NotificationID, "agent-1")
	if err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	second, err := service.MarkRead(context.Background(), notification.NotificationID, "agent-1")
	if err != nil {
		t.Fatalf("repeat mark read failed: %v", err)
	}
	if first.ReadAt == nil || second.ReadAt == nil {
		t.Fatalf("expected read timestamps on both results")
	}
	if !first.ReadAt.Equal(*second.ReadAt) {
		t.Fatalf("repeat mark read must keep the original timestamp")
	}
}

func TestMarkReadEnforcesRecipient(t *testing.T) {
	store := memory.NewStore()
	service := newService(store, memory.NewBus())

	notification, err := service.Publish(context.Background(), ports.PublishInput{
		RecipientID: "agent-1",
		EventType:   "offer.accepted",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	_, err = service.MarkRead(context.Background(), notification.NotificationID, "agent-2")
	if !errors.Is(err, domainerrors.ErrNotRecipient) {
		t.Fatalf("expected recipient mismatch, got %v", err)
	}
}
