package httpserver

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	commissionerrors "hearth/contexts/finance-core/commission-engine/domain/errors"
	commissionhttp "hearth/contexts/finance-core/commission-engine/transport/http"
)

func (s *Server) registerCommissionRoutes() {
	s.handle("POST", "/api/commissions", "commissions_create", s.handleCreateCommission)
	s.handle("GET", "/api/commissions/{commission_id}", "commissions_get", s.handleGetCommission)
	s.handle("POST", "/api/commissions/{commission_id}/pay", "commissions_pay", s.handleInitiatePayment)
	s.handle("POST", "/api/payments/webhook", "payments_webhook", s.handleGatewayWebhook)
	s.handle("GET", "/api/agents/{agent_id}/commissions/summary", "agent_commission_summary", s.handleAgentSummary)
	s.handle("GET", "/api/agents/{agent_id}/commissions", "agent_commission_history", s.handleAgentHistory)
}

func (s *Server) handleCreateCommission(w http.ResponseWriter, r *http.Request) {
	var req commissionhttp.CreateCommissionRequest
	if !s.decodeJSON(w, r, &req, writeCommissionError) {
		return
	}
	resp, err := s.commissions.Handler.CreateCommissionHandler(r.Context(), req)
	if err != nil {
		writeCommissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetCommission(w http.ResponseWriter, r *http.Request) {
	resp, err := s.commissions.Handler.GetCommissionHandler(r.Context(), r.PathValue("commission_id"))
	if err != nil {
		writeCommissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	resp, err := s.commissions.Handler.InitiatePaymentHandler(r.Context(), r.PathValue("commission_id"))
	if err != nil {
		writeCommissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGatewayWebhook ingests settlement callbacks. Callers must present the
// shared secret; without it any client could mark commissions paid.
func (s *Server) handleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret == "" || !secureEqual(r.Header.Get("X-Webhook-Secret"), s.webhookSecret) {
		writeCommissionError(w, http.StatusUnauthorized, "invalid_webhook_secret", "webhook secret is missing or wrong")
		return
	}

	var req commissionhttp.GatewayWebhookRequest
	if !s.decodeJSON(w, r, &req, writeCommissionError) {
		return
	}
	resp, err := s.commissions.Handler.GatewayWebhookHandler(r.Context(), req)
	if err != nil {
		writeCommissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.commissions.Handler.AgentSummaryHandler(r.Context(), r.PathValue("agent_id"))
	if err != nil {
		writeCommissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit")
	offset := parseQueryInt(r, "offset")
	resp, err := s.commissions.Handler.AgentHistoryHandler(r.Context(), r.PathValue("agent_id"), limit, offset)
	if err != nil {
		writeCommissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeCommissionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commissionerrors.ErrCommissionNotFound):
		writeCommissionError(w, http.StatusNotFound, "commission_not_found", err.Error())
	case errors.Is(err, commissionerrors.ErrDuplicateCommission):
		writeCommissionError(w, http.StatusConflict, "duplicate_commission", err.Error())
	case errors.Is(err, commissionerrors.ErrInvalidCommissionInput):
		writeCommissionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, commissionerrors.ErrInvalidPaymentState):
		writeCommissionError(w, http.StatusConflict, "invalid_payment_state", err.Error())
	case errors.Is(err, commissionerrors.ErrUnknownGatewayEvent):
		writeCommissionError(w, http.StatusBadRequest, "unknown_gateway_event", err.Error())
	case errors.Is(err, commissionerrors.ErrGatewayUnavailable):
		writeCommissionError(w, http.StatusServiceUnavailable, "gateway_unavailable", err.Error())
	default:
		writeCommissionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeCommissionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, commissionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func secureEqual(got string, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func parseQueryInt(r *http.Request, name string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
