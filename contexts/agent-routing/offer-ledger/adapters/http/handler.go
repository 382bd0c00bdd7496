package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"hearth/contexts/agent-routing/offer-ledger/application"
	"hearth/contexts/agent-routing/offer-ledger/domain/entities"
	"hearth/contexts/agent-routing/offer-ledger/ports"
	httptransport "hearth/contexts/agent-routing/offer-ledger/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateSubmissionHandler(
	ctx context.Context,
	req httptransport.CreateSubmissionRequest,
) (httptransport.SubmissionResponse, error) {
	submission, err := h.Service.CreateSubmission(ctx, ports.CreateSubmissionInput{
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Details:      req.Details,
		ListingPrice: req.ListingPrice,
	})
	if err != nil {
		return httptransport.SubmissionResponse{}, err
	}
	return httptransport.SubmissionResponse{
		Status: "success",
		Data:   toSubmissionDTO(submission),
	}, nil
}

func (h Handler) GetSubmissionHandler(
	ctx context.Context,
	submissionID string,
) (httptransport.SubmissionResponse, error) {
	submission, err := h.Service.GetSubmission(ctx, submissionID)
	if err != nil {
		return httptransport.SubmissionResponse{}, err
	}
	return httptransport.SubmissionResponse{
		Status: "success",
		Data:   toSubmissionDTO(submission),
	}, nil
}

func (h Handler) SubmitOfferHandler(
	ctx context.Context,
	submissionID string,
	req httptransport.SubmitOfferRequest,
) (httptransport.OfferResponse, error) {
	offer, err := h.Service.SubmitOffer(ctx, ports.SubmitOfferInput{
		SubmissionID:  submissionID,
		AgentID:       req.AgentID,
		ProposedValue: req.ProposedValue,
		Confidence:    req.Confidence,
		Message:       req.Message,
	})
	if err != nil {
		return httptransport.OfferResponse{}, err
	}
	return httptransport.OfferResponse{
		Status: "success",
		Data:   toOfferDTO(offer),
	}, nil
}

func (h Handler) ListOffersHandler(
	ctx context.Context,
	submissionID string,
) (httptransport.OfferListResponse, error) {
	items, err := h.Service.ListOffers(ctx, submissionID)
	if err != nil {
		return httptransport.OfferListResponse{}, err
	}
	resp := httptransport.OfferListResponse{
		Status: "success",
		Data:   make([]httptransport.OfferDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toOfferDTO(item))
	}
	return resp, nil
}

func (h Handler) DecideOfferHandler(
	ctx context.Context,
	submissionID string,
	offerID string,
	ownerID string,
	req httptransport.DecideOfferRequest,
) (httptransport.DecisionResponse, error) {
	result, err := h.Service.DecideOffer(ctx, ports.DecideOfferInput{
		SubmissionID: submissionID,
		OfferID:      offerID,
		OwnerID:      ownerID,
		Decision:     req.Decision,
		Reason:       req.Reason,
	})
	if err != nil {
		return httptransport.DecisionResponse{}, err
	}
	resp := httptransport.DecisionResponse{Status: "success"}
	resp.Data.Offer = toOfferDTO(result.Offer)
	resp.Data.ConversationID = result.ConversationID
	for _, item := range result.RejectedOffers {
		resp.Data.RejectedOffers = append(resp.Data.RejectedOffers, toOfferDTO(item))
	}
	return resp, nil
}

func toSubmissionDTO(item entities.Submission) httptransport.SubmissionDTO {
	return httptransport.SubmissionDTO{
		SubmissionID:    item.SubmissionID,
		OwnerID:         item.OwnerID,
		Title:           item.Title,
		Details:         item.Details,
		ListingPrice:    item.ListingPrice,
		Status:          string(item.Status),
		AssignedAgentID: item.AssignedAgentID,
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toOfferDTO(item entities.Offer) httptransport.OfferDTO {
	dto := httptransport.OfferDTO{
		OfferID:        item.OfferID,
		SubmissionID:   item.SubmissionID,
		AgentID:        item.AgentID,
		ProposedValue:  item.ProposedValue,
		Confidence:     item.Confidence,
		Message:        item.Message,
		Status:         string(item.Status),
		DecisionReason: item.DecisionReason,
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.DecidedAt != nil {
		dto.DecidedAt = item.DecidedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
