package httpserver

import (
	"errors"
	"net/http"
	"strings"

	moderationerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
	moderationhttp "hearth/contexts/moderation-safety/moderation-service/transport/http"
)

func (s *Server) registerModerationRoutes() {
	s.handle("POST", "/api/reviews", "reviews_submit", s.handleSubmitReview)
	s.handle("GET", "/api/reviews/{review_id}", "reviews_get", s.handleGetReview)
	s.handle("POST", "/api/reviews/{review_id}/flag", "reviews_flag", s.handleFlagReview)
	s.handle("GET", "/api/moderation/queue", "moderation_queue", s.handleModerationQueue)
	s.handle("POST", "/api/moderation/bulk", "moderation_bulk", s.handleBulkModerate)
	s.handle("GET", "/api/moderation/rules", "moderation_rules_list", s.handleListRules)
	s.handle("POST", "/api/moderation/rules", "moderation_rules_create", s.handleCreateRule)
	s.handle("PATCH", "/api/moderation/rules/{rule_id}", "moderation_rules_update", s.handleUpdateRule)
	s.handle("DELETE", "/api/moderation/rules/{rule_id}", "moderation_rules_delete", s.handleDeleteRule)
}

func requireModerationUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeModerationError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req moderationhttp.SubmitReviewRequest
	if !s.decodeJSON(w, r, &req, writeModerationError) {
		return
	}
	resp, err := s.moderation.Handler.SubmitReviewHandler(r.Context(), req)
	if err != nil {
		writeModerationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	resp, err := s.moderation.Handler.GetReviewHandler(r.Context(), r.PathValue("review_id"))
	if err != nil {
		writeModerationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFlagReview(w http.ResponseWriter, r *http.Request) {
	var req moderationhttp.FlagReviewRequest
	if !s.decodeJSON(w, r, &req, writeModerationError) {
		return
	}
	resp, err := s.moderation.Handler.FlagReviewHandler(r.Context(), r.PathValue("review_id"), req)
	if err != nil {
		writeModerationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleModerationQueue(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireModerationUser(w, r); !ok {
		return
	}
	resp, err := s.moderation.Handler.ListQueueHandler(
		r.Context(),
		r.URL.Query().Get("status"),
		parseQueryInt(r, "limit"),
		parseQueryInt(r, "offset"),
	)
	if err != nil {
		writeModerationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBulkModerate(w http.ResponseWriter, r *http.Request) {
	moderatorID, ok := requireModerationUser(w, r)
	if !ok {
		return
	}
	var req moderationhttp.BulkModerateRequest
	if !s.decodeJSON(w, r, &req, writeModerationError) {
		return
	}
	resp, err := s.moderation.Handler.BulkModerateHandler(
		r.Context(),
		strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		moderatorID,
		req,
	)
	if err != nil {
		writeModerationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	resp, err := s.moderation.Handler.ListRulesHandler(r.Context())
	if err != nil {
		writeModerationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	moderatorID, ok := requireModerationUser(w, r)
	if !ok {
		return
	}
	var req moderationhttp.CreateRuleRequest
	if !s.decodeJSON(w, r, &req, writeModerationError) {
		return
	}
	resp, err := s.moderation.Handler.CreateRuleHandler(r.Context(), moderatorID, req)
	if err != nil {
		writeModerationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	moderatorID, ok := requireModerationUser(w, r)
	if !ok {
		return
	}
	var req moderationhttp.UpdateRuleRequest
	if !s.decodeJSON(w, r, &req, writeModerationError) {
		return
	}
	resp, err := s.moderation.Handler.UpdateRuleHandler(r.Context(), moderatorID, r.PathValue("rule_id"), req)
	if err != nil {
		writeModerationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	moderatorID, ok := requireModerationUser(w, r)
	if !ok {
		return
	}
	if err := s.moderation.Handler.DeleteRuleHandler(r.Context(), moderatorID, r.PathValue("rule_id")); err != nil {
		writeModerationDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeModerationDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, moderationerrors.ErrReviewNotFound):
		writeModerationError(w, http.StatusNotFound, "review_not_found", err.Error())
	case errors.Is(err, moderationerrors.ErrRuleNotFound):
		writeModerationError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, moderationerrors.ErrInvalidReviewInput),
		errors.Is(err, moderationerrors.ErrInvalidRuleConfig),
		errors.Is(err, moderationerrors.ErrInvalidRequest):
		writeModerationError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, moderationerrors.ErrForbidden):
		writeModerationError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, moderationerrors.ErrAlreadyFlagged):
		writeModerationError(w, http.StatusConflict, "already_flagged", err.Error())
	case errors.Is(err, moderationerrors.ErrAlreadyModerated):
		writeModerationError(w, http.StatusConflict, "already_moderated", err.Error())
	case errors.Is(err, moderationerrors.ErrIdempotencyKeyConflict):
		writeModerationError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, moderationerrors.ErrClassifierUnavailable):
		writeModerationError(w, http.StatusServiceUnavailable, "classifier_unavailable", err.Error())
	default:
		writeModerationError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeModerationError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, moderationhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
