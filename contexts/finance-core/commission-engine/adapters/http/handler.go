package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"hearth/contexts/finance-core/commission-engine/application"
	"hearth/contexts/finance-core/commission-engine/domain/entities"
	"hearth/contexts/finance-core/commission-engine/ports"
	httptransport "hearth/contexts/finance-core/commission-engine/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateCommissionHandler(
	ctx context.Context,
	req httptransport.CreateCommissionRequest,
) (httptransport.CommissionResponse, error) {
	commission, err := h.Service.CreateForAcceptedOffer(ctx, ports.CreateCommissionInput{
		OfferID:      req.OfferID,
		ListingID:    req.ListingID,
		AgentID:      req.AgentID,
		ListingPrice: req.ListingPrice,
	})
	if err != nil {
		return httptransport.CommissionResponse{}, err
	}
	return httptransport.CommissionResponse{
		Status: "success",
		Data:   toCommissionDTO(commission),
	}, nil
}

func (h Handler) GetCommissionHandler(
	ctx context.Context,
	commissionID string,
) (httptransport.CommissionResponse, error) {
	commission, err := h.Service.GetCommission(ctx, commissionID)
	if err != nil {
		return httptransport.CommissionResponse{}, err
	}
	return httptransport.CommissionResponse{
		Status: "success",
		Data:   toCommissionDTO(commission),
	}, nil
}

func (h Handler) InitiatePaymentHandler(
	ctx context.Context,
	commissionID string,
) (httptransport.CommissionResponse, error) {
	commission, err := h.Service.InitiatePayment(ctx, commissionID)
	if err != nil {
		return httptransport.CommissionResponse{}, err
	}
	return httptransport.CommissionResponse{
		Status: "success",
		Data:   toCommissionDTO(commission),
	}, nil
}

func (h Handler) GatewayWebhookHandler(
	ctx context.Context,
	req httptransport.GatewayWebhookRequest,
) (httptransport.CommissionResponse, error) {
	commission, err := h.Service.Reconcile(ctx, ports.GatewayEvent{
		EventID:       req.EventID,
		Type:          req.Type,
		IntentID:      req.IntentID,
		Metadata:      req.Metadata,
		FailureReason: req.FailureReason,
	})
	if err != nil {
		return httptransport.CommissionResponse{}, err
	}
	return httptransport.CommissionResponse{
		Status: "success",
		Data:   toCommissionDTO(commission),
	}, nil
}

func (h Handler) AgentSummaryHandler(
	ctx context.Context,
	agentID string,
) (httptransport.AgentSummaryResponse, error) {
	summary, err := h.Service.AgentSummary(ctx, agentID)
	if err != nil {
		return httptransport.AgentSummaryResponse{}, err
	}
	return httptransport.AgentSummaryResponse{
		Status: "success",
		Data: httptransport.AgentSummaryDTO{
			AgentID:         summary.AgentID,
			PendingCount:    summary.PendingCount,
			ProcessingCount: summary.ProcessingCount,
			PaidCount:       summary.PaidCount,
			FailedCount:     summary.FailedCount,
			TotalPaidAmount: summary.TotalPaidAmount,
		},
	}, nil
}

func (h Handler) AgentHistoryHandler(
	ctx context.Context,
	agentID string,
	limit int,
	offset int,
) (httptransport.CommissionListResponse, error) {
	items, err := h.Service.AgentHistory(ctx, ports.HistoryQuery{
		AgentID: agentID,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return httptransport.CommissionListResponse{}, err
	}
	resp := httptransport.CommissionListResponse{
		Status: "success",
		Data:   make([]httptransport.CommissionDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toCommissionDTO(item))
	}
	return resp, nil
}

func toCommissionDTO(item entities.Commission) httptransport.CommissionDTO {
	dto := httptransport.CommissionDTO{
		CommissionID:     item.CommissionID,
		ListingID:        item.ListingID,
		AgentID:          item.AgentID,
		OfferID:          item.OfferID,
		Amount:           item.Amount,
		Rate:             item.Rate,
		DueDate:          item.DueDate.UTC().Format(time.RFC3339),
		Status:           string(item.Status),
		GatewayPaymentID: item.GatewayPaymentID,
		Notes:            item.Notes,
		CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.PaidAt != nil {
		dto.PaidAt = item.PaidAt.UTC().Format(time.RFC3339)
	}
	return dto
}
