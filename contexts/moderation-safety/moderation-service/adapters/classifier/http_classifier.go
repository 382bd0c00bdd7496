package classifieradapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	domainerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
	"hearth/contexts/moderation-safety/moderation-service/ports"
)

// HTTPClassifier calls the content screening API. It sits behind the
// ports.ContentClassifier interface; tests use the memory fake instead.
type HTTPClassifier struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func New(baseURL string, apiKey string) *HTTPClassifier {
	return &HTTPClassifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  http.DefaultClient,
	}
}

type classifyRequest struct {
	Model   string `json:"model"`
	Content string `json:"content"`
}

type classifyResponse struct {
	Scores map[string]float64 `json:"scores"`
	Flags  map[string]bool    `json:"flags"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, model string, content string) (ports.Classification, error) {
	body, err := json.Marshal(classifyRequest{Model: model, Content: content})
	if err != nil {
		return ports.Classification{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return ports.Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return ports.Classification{}, fmt.Errorf("%w: %v", domainerrors.ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.Classification{}, fmt.Errorf("%w: classifier returned %d", domainerrors.ErrClassifierUnavailable, resp.StatusCode)
	}

	var payload classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ports.Classification{}, fmt.Errorf("%w: decode response: %v", domainerrors.ErrClassifierUnavailable, err)
	}
	return ports.Classification{
		Scores: payload.Scores,
		Flags:  payload.Flags,
	}, nil
}
