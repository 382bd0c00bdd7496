package httpserver

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	offerledger "hearth/contexts/agent-routing/offer-ledger"
	notificationservice "hearth/contexts/engagement/notification-service"
	commissionengine "hearth/contexts/finance-core/commission-engine"
	moderationservice "hearth/contexts/moderation-safety/moderation-service"
)

const testWebhookSecret = "whsec-test"

func newTestServer() *Server {
	return New(
		Modules{
			Offers:        offerledger.NewInMemoryModule(slog.Default()),
			Commissions:   commissionengine.NewInMemoryModule(slog.Default()),
			Moderation:    moderationservice.NewInMemoryModule(slog.Default()),
			Notifications: notificationservice.NewInMemoryModule(slog.Default()),
		},
		slog.Default(),
		":0",
		testWebhookSecret,
	)
}

func TestDecideOfferRequiresUserHeader(t *testing.T) {
	server := newTestServer()
	body := []byte(`{"decision":"accept"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/submissions/sub-1/offers/offer-1/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGatewayWebhookRequiresSecret(t *testing.T) {
	server := newTestServer()
	body := []byte(`{"event_id":"evt-1","type":"payment_intent.succeeded","intent_id":"pi_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGatewayWebhookRejectsWrongSecret(t *testing.T) {
	server := newTestServer()
	body := []byte(`{"event_id":"evt-1","type":"payment_intent.succeeded","intent_id":"pi_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "whsec-wrong")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestBulkModerateRequiresUserHeader(t *testing.T) {
	server := newTestServer()
	body := []byte(`{"decisions":[{"review_id":"r-1","action":"approve"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/moderation/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "bulk-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestListNotificationsRequiresUserHeader(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSubmitReviewRejectsInvalidJSON(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/reviews", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}
