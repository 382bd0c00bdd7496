package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domainerrors "hearth/contexts/finance-core/commission-engine/domain/errors"
	"hearth/contexts/finance-core/commission-engine/ports"

	"github.com/google/uuid"
)

// Gateway is an in-memory payment gateway. Tests script its behavior through
// FailNextCreate and SettleIntent; by default every created intent stays
// pending until settled.
type Gateway struct {
	mu sync.Mutex

	intents        map[string]ports.PaymentIntent
	failNextCreate error

	CreateCalls []ports.CreateIntentInput
}

func NewGateway() *Gateway {
	return &Gateway{intents: make(map[string]ports.PaymentIntent)}
}

// FailNextCreate makes the next CreateIntent call return the given error.
func (g *Gateway) FailNextCreate(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNextCreate = err
}

// SettleIntent moves an intent to a terminal status, as the real gateway
// would asynchronously.
func (g *Gateway) SettleIntent(intentID string, status string, failureReason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[strings.TrimSpace(intentID)]
	if !ok {
		return
	}
	intent.Status = status
	intent.FailureReason = failureReason
	g.intents[intent.IntentID] = intent
}

func (g *Gateway) CreateIntent(_ context.Context, input ports.CreateIntentInput) (ports.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.CreateCalls = append(g.CreateCalls, input)
	if g.failNextCreate != nil {
		err := g.failNextCreate
		g.failNextCreate = nil
		return ports.PaymentIntent{}, err
	}

	intent := ports.PaymentIntent{
		IntentID: fmt.Sprintf("pi_%s", uuid.NewString()),
		Status:   ports.IntentStatusPending,
	}
	g.intents[intent.IntentID] = intent
	return intent, nil
}

func (g *Gateway) RetrieveIntent(_ context.Context, intentID string) (ports.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[strings.TrimSpace(intentID)]
	if !ok {
		return ports.PaymentIntent{}, domainerrors.ErrGatewayUnavailable
	}
	return intent, nil
}
