package realtime

import (
	"context"
	"log/slog"
	"sync"

	"hearth/contexts/engagement/notification-service/ports"
)

// Bus is the in-process realtime push fabric. Channels are keyed strings
// ("user:<id>"); delivery is best-effort and slow subscribers are dropped
// rather than blocking publishers. The durable notification row is the
// record; this layer only makes it feel instant.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan ports.BusMessage
	logger      *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]chan ports.BusMessage),
		logger:      logger,
	}
}

func (b *Bus) Publish(ctx context.Context, message ports.BusMessage) error {
	b.mu.RLock()
	subs := append([]chan ports.BusMessage(nil), b.subscribers[message.Channel]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- message:
		default:
			if b.logger != nil {
				b.logger.Warn("dropping message for slow subscriber",
					"event", "realtime_publish_drop",
					"module", "internal/platform/realtime",
					"layer", "platform",
					"channel", message.Channel,
					"event_type", message.EventType,
				)
			}
		}
	}
	return nil
}

// Subscribe delivers channel messages to handler until ctx is cancelled.
func (b *Bus) Subscribe(
	ctx context.Context,
	channel string,
	handler func(context.Context, ports.BusMessage) error,
) {
	ch := make(chan ports.BusMessage, 128)

	b.mu.Lock()
	b.subscribers[channel] = append(b.subscribers[channel], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(channel, ch)
				return
			case message := <-ch:
				if err := handler(ctx, message); err != nil && b.logger != nil {
					b.logger.Error("subscriber handler failed",
						"event", "realtime_consume_failed",
						"module", "internal/platform/realtime",
						"layer", "platform",
						"channel", channel,
						"event_type", message.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
}

func (b *Bus) removeSubscriber(channel string, target chan ports.BusMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[channel]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan ports.BusMessage, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[channel] = filtered
}
