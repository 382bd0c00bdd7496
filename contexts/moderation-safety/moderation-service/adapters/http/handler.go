package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"hearth/contexts/moderation-safety/moderation-service/application"
	"hearth/contexts/moderation-safety/moderation-service/domain/entities"
	"hearth/contexts/moderation-safety/moderation-service/ports"
	httptransport "hearth/contexts/moderation-safety/moderation-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) SubmitReviewHandler(
	ctx context.Context,
	req httptransport.SubmitReviewRequest,
) (httptransport.ReviewResponse, error) {
	review, err := h.Service.SubmitReview(ctx, ports.SubmitReviewInput{
		AuthorID:  req.AuthorID,
		ListingID: req.ListingID,
		Title:     req.Title,
		Content:   req.Content,
		Rating:    req.Rating,
	})
	if err != nil {
		return httptransport.ReviewResponse{}, err
	}
	return httptransport.ReviewResponse{
		Status: "success",
		Data:   toReviewDTO(review),
	}, nil
}

func (h Handler) GetReviewHandler(
	ctx context.Context,
	reviewID string,
) (httptransport.ReviewResponse, error) {
	review, err := h.Service.GetReview(ctx, reviewID)
	if err != nil {
		return httptransport.ReviewResponse{}, err
	}
	return httptransport.ReviewResponse{
		Status: "success",
		Data:   toReviewDTO(review),
	}, nil
}

func (h Handler) ListQueueHandler(
	ctx context.Context,
	status string,
	limit int,
	offset int,
) (httptransport.ReviewListResponse, error) {
	items, err := h.Service.ListQueue(ctx, ports.QueueFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return httptransport.ReviewListResponse{}, err
	}
	resp := httptransport.ReviewListResponse{
		Status: "success",
		Data:   make([]httptransport.ReviewDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toReviewDTO(item))
	}
	return resp, nil
}

func (h Handler) FlagReviewHandler(
	ctx context.Context,
	reviewID string,
	req httptransport.FlagReviewRequest,
) (httptransport.FlagResponse, error) {
	flag, err := h.Service.FlagReview(ctx, reviewID, req.ReporterID, req.Reason)
	if err != nil {
		return httptransport.FlagResponse{}, err
	}
	return httptransport.FlagResponse{
		Status: "success",
		Data: httptransport.FlagDTO{
			FlagID:     flag.FlagID,
			ReviewID:   flag.ReviewID,
			ReporterID: flag.ReporterID,
			Reason:     flag.Reason,
			Status:     string(flag.Status),
			CreatedAt:  flag.CreatedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

func (h Handler) BulkModerateHandler(
	ctx context.Context,
	idempotencyKey string,
	moderatorID string,
	req httptransport.BulkModerateRequest,
) (httptransport.BulkSummaryResponse, error) {
	decisions := make([]ports.BulkDecision, 0, len(req.Decisions))
	for _, decision := range req.Decisions {
		decisions = append(decisions, ports.BulkDecision{
			ReviewID: decision.ReviewID,
			Action:   decision.Action,
			Reason:   decision.Reason,
			Note:     decision.Note,
		})
	}
	summary, err := h.Service.BulkModerate(ctx, idempotencyKey, ports.BulkModerateCommand{
		ModeratorID: moderatorID,
		Decisions:   decisions,
		SkipAICheck: req.SkipAICheck,
	})
	if err != nil {
		return httptransport.BulkSummaryResponse{}, err
	}

	resp := httptransport.BulkSummaryResponse{Status: "success"}
	resp.Data.Succeeded = summary.Succeeded
	resp.Data.Failed = summary.Failed
	resp.Data.Skipped = summary.Skipped
	resp.Data.Items = make([]httptransport.BulkItemDTO, 0, len(summary.Items))
	for _, item := range summary.Items {
		resp.Data.Items = append(resp.Data.Items, httptransport.BulkItemDTO{
			ReviewID: item.ReviewID,
			Action:   item.Action,
			Outcome:  item.Outcome,
			Detail:   item.Detail,
			Scores:   item.Scores,
		})
	}
	return resp, nil
}

func (h Handler) CreateRuleHandler(
	ctx context.Context,
	moderatorID string,
	req httptransport.CreateRuleRequest,
) (httptransport.RuleResponse, error) {
	rule, err := h.Service.CreateRule(ctx, ports.CreateRuleInput{
		ModeratorID: moderatorID,
		Name:        req.Name,
		Type:        req.Type,
		Keywords:    req.Keywords,
		Pattern:     req.Pattern,
		AIModel:     req.AIModel,
		AIThreshold: req.AIThreshold,
		Enabled:     req.Enabled,
		Priority:    req.Priority,
	})
	if err != nil {
		return httptransport.RuleResponse{}, err
	}
	return httptransport.RuleResponse{
		Status: "success",
		Data:   toRuleDTO(rule),
	}, nil
}

func (h Handler) UpdateRuleHandler(
	ctx context.Context,
	moderatorID string,
	ruleID string,
	req httptransport.UpdateRuleRequest,
) (httptransport.RuleResponse, error) {
	rule, err := h.Service.UpdateRule(ctx, ports.UpdateRuleInput{
		ModeratorID: moderatorID,
		RuleID:      ruleID,
		Name:        req.Name,
		Keywords:    req.Keywords,
		Pattern:     req.Pattern,
		AIModel:     req.AIModel,
		AIThreshold: req.AIThreshold,
		Enabled:     req.Enabled,
		Priority:    req.Priority,
	})
	if err != nil {
		return httptransport.RuleResponse{}, err
	}
	return httptransport.RuleResponse{
		Status: "success",
		Data:   toRuleDTO(rule),
	}, nil
}

func (h Handler) DeleteRuleHandler(
	ctx context.Context,
	moderatorID string,
	ruleID string,
) error {
	return h.Service.DeleteRule(ctx, moderatorID, ruleID)
}

func (h Handler) ListRulesHandler(ctx context.Context) (httptransport.RuleListResponse, error) {
	items, err := h.Service.ListRules(ctx)
	if err != nil {
		return httptransport.RuleListResponse{}, err
	}
	resp := httptransport.RuleListResponse{
		Status: "success",
		Data:   make([]httptransport.RuleDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toRuleDTO(item))
	}
	return resp, nil
}

func toReviewDTO(item entities.Review) httptransport.ReviewDTO {
	dto := httptransport.ReviewDTO{
		ReviewID:  item.ReviewID,
		AuthorID:  item.AuthorID,
		ListingID: item.ListingID,
		Title:     item.Title,
		Content:   item.Content,
		Rating:    item.Rating,
		Status:    string(item.Status),
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.ModeratedAt != nil {
		dto.ModeratedAt = item.ModeratedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toRuleDTO(item entities.ModerationRule) httptransport.RuleDTO {
	return httptransport.RuleDTO{
		RuleID:      item.RuleID,
		Name:        item.Name,
		Type:        string(item.Type),
		Keywords:    item.Keywords,
		Pattern:     item.Pattern,
		AIModel:     item.AIModel,
		AIThreshold: item.AIThreshold,
		Enabled:     item.Enabled,
		Priority:    item.Priority,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
	}
}
