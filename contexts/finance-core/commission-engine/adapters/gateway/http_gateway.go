package gatewayadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	domainerrors "hearth/contexts/finance-core/commission-engine/domain/errors"
	"hearth/contexts/finance-core/commission-engine/ports"
)

// HTTPGateway talks to the payment provider's intents API over HTTP. The
// provider is behind the ports.PaymentGateway interface so tests and local
// runs can swap in the memory fake.
type HTTPGateway struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func New(baseURL string, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  http.DefaultClient,
	}
}

type intentPayload struct {
	IntentID      string            `json:"intent_id"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Amount        float64           `json:"amount,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Destination   string            `json:"destination,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, input ports.CreateIntentInput) (ports.PaymentIntent, error) {
	body, err := json.Marshal(intentPayload{
		Amount:      input.Amount,
		Currency:    input.Currency,
		Destination: input.Destination,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return ports.PaymentIntent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return ports.PaymentIntent{}, err
	}
	return g.do(req)
}

func (g *HTTPGateway) RetrieveIntent(ctx context.Context, intentID string) (ports.PaymentIntent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/v1/intents/"+intentID, nil)
	if err != nil {
		return ports.PaymentIntent{}, err
	}
	return g.do(req)
}

func (g *HTTPGateway) do(req *http.Request) (ports.PaymentIntent, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return ports.PaymentIntent{}, fmt.Errorf("%w: %v", domainerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return ports.PaymentIntent{}, fmt.Errorf("%w: gateway returned %d", domainerrors.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return ports.PaymentIntent{}, fmt.Errorf("gateway rejected request with %d", resp.StatusCode)
	}

	var payload intentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ports.PaymentIntent{}, fmt.Errorf("%w: decode response: %v", domainerrors.ErrGatewayUnavailable, err)
	}
	return ports.PaymentIntent{
		IntentID:      payload.IntentID,
		Status:        payload.Status,
		FailureReason: payload.FailureReason,
	}, nil
}
