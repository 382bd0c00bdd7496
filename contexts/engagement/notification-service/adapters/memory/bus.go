package memory

import (
	"context"
	"sync"

	"hearth/contexts/engagement/notification-service/ports"
)

// Bus records published realtime messages and can be told to fail, which is
// all the application layer needs from a bus in tests.
type Bus struct {
	mu        sync.Mutex
	failWith  error
	Delivered []ports.BusMessage
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = err
}

func (b *Bus) Publish(_ context.Context, message ports.BusMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.Delivered = append(b.Delivered, message)
	return nil
}
