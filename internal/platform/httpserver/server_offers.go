package httpserver

import (
	"errors"
	"net/http"
	"strings"

	offererrors "hearth/contexts/agent-routing/offer-ledger/domain/errors"
	offerhttp "hearth/contexts/agent-routing/offer-ledger/transport/http"
)

func (s *Server) registerOfferRoutes() {
	s.handle("POST", "/api/submissions", "submissions_create", s.handleCreateSubmission)
	s.handle("GET", "/api/submissions/{submission_id}", "submissions_get", s.handleGetSubmission)
	s.handle("POST", "/api/submissions/{submission_id}/offers", "offers_submit", s.handleSubmitOffer)
	s.handle("GET", "/api/submissions/{submission_id}/offers", "offers_list", s.handleListOffers)
	s.handle("POST", "/api/submissions/{submission_id}/offers/{offer_id}/decision", "offers_decide", s.handleDecideOffer)
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req offerhttp.CreateSubmissionRequest
	if !s.decodeJSON(w, r, &req, writeOfferError) {
		return
	}
	resp, err := s.offers.Handler.CreateSubmissionHandler(r.Context(), req)
	if err != nil {
		writeOfferDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	resp, err := s.offers.Handler.GetSubmissionHandler(r.Context(), r.PathValue("submission_id"))
	if err != nil {
		writeOfferDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	var req offerhttp.SubmitOfferRequest
	if !s.decodeJSON(w, r, &req, writeOfferError) {
		return
	}
	resp, err := s.offers.Handler.SubmitOfferHandler(r.Context(), r.PathValue("submission_id"), req)
	if err != nil {
		writeOfferDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.offers.Handler.ListOffersHandler(r.Context(), r.PathValue("submission_id"))
	if err != nil {
		writeOfferDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDecideOffer(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if ownerID == "" {
		writeOfferError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req offerhttp.DecideOfferRequest
	if !s.decodeJSON(w, r, &req, writeOfferError) {
		return
	}
	resp, err := s.offers.Handler.DecideOfferHandler(
		r.Context(),
		r.PathValue("submission_id"),
		r.PathValue("offer_id"),
		ownerID,
		req,
	)
	if err != nil {
		writeOfferDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeOfferDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, offererrors.ErrSubmissionNotFound):
		writeOfferError(w, http.StatusNotFound, "submission_not_found", err.Error())
	case errors.Is(err, offererrors.ErrOfferNotFound):
		writeOfferError(w, http.StatusNotFound, "offer_not_found", err.Error())
	case errors.Is(err, offererrors.ErrInvalidSubmissionInput),
		errors.Is(err, offererrors.ErrInvalidOfferInput),
		errors.Is(err, offererrors.ErrInvalidDecision):
		writeOfferError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, offererrors.ErrDuplicateOffer):
		writeOfferError(w, http.StatusConflict, "duplicate_offer", err.Error())
	case errors.Is(err, offererrors.ErrSubmissionClosed):
		writeOfferError(w, http.StatusConflict, "submission_closed", err.Error())
	case errors.Is(err, offererrors.ErrSubmissionAlreadyAssigned):
		writeOfferError(w, http.StatusConflict, "submission_already_assigned", err.Error())
	case errors.Is(err, offererrors.ErrOfferAlreadyDecided):
		writeOfferError(w, http.StatusConflict, "offer_already_decided", err.Error())
	case errors.Is(err, offererrors.ErrAgentNotEligible):
		writeOfferError(w, http.StatusForbidden, "agent_not_eligible", err.Error())
	case errors.Is(err, offererrors.ErrNotSubmissionOwner):
		writeOfferError(w, http.StatusForbidden, "not_submission_owner", err.Error())
	default:
		writeOfferError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeOfferError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, offerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
