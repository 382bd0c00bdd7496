package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"hearth/contexts/moderation-safety/moderation-service/domain/entities"
	domainerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
	"hearth/contexts/moderation-safety/moderation-service/ports"
)

// bulkChunkSize bounds how many reviews are in flight at once during a bulk
// run; classifier calls fan out per chunk, chunks run sequentially.
const bulkChunkSize = 10

type Service struct {
	Repo           ports.Repository
	Rules          RuleEngine
	Moderators     ports.ModeratorDirectory
	Notifications  ports.NotificationPublisher
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (s Service) SubmitReview(ctx context.Context, input ports.SubmitReviewInput) (entities.Review, error) {
	review := entities.Review{
		AuthorID:  strings.TrimSpace(input.AuthorID),
		ListingID: strings.TrimSpace(input.ListingID),
		Title:     strings.TrimSpace(input.Title),
		Content:   strings.TrimSpace(input.Content),
		Rating:    input.Rating,
		Status:    entities.ReviewStatusPending,
	}
	if !review.ValidateCreate() {
		return entities.Review{}, domainerrors.ErrInvalidReviewInput
	}

	reviewID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Review{}, err
	}
	now := s.now()
	review.ReviewID = strings.TrimSpace(reviewID)
	review.CreatedAt = now
	review.UpdatedAt = now

	if err := s.Repo.CreateReview(ctx, review); err != nil {
		return entities.Review{}, err
	}

	ResolveLogger(s.Logger).Info("review submitted",
		"event", "review_submitted",
		"module", "moderation-safety/moderation-service",
		"layer", "application",
		"review_id", review.ReviewID,
		"listing_id", review.ListingID,
	)
	return review, nil
}

func (s Service) GetReview(ctx context.Context, reviewID string) (entities.Review, error) {
	if strings.TrimSpace(reviewID) == "" {
		return entities.Review{}, domainerrors.ErrInvalidReviewInput
	}
	return s.Repo.GetReview(ctx, strings.TrimSpace(reviewID))
}

func (s Service) ListQueue(ctx context.Context, filter ports.QueueFilter) ([]entities.Review, error) {
	filter.Status = strings.TrimSpace(strings.ToLower(filter.Status))
	if filter.Status != "" {
		switch entities.ReviewStatus(filter.Status) {
		case entities.ReviewStatusPending, entities.ReviewStatusFlagged,
			entities.ReviewStatusApproved, entities.ReviewStatusRejected:
		default:
			return nil, domainerrors.ErrInvalidRequest
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		return nil, domainerrors.ErrInvalidRequest
	}
	return s.Repo.ListQueue(ctx, filter)
}

// FlagReview opens a report against a review. The review moves to flagged so
// it becomes eligible for (re-)moderation; one open flag per reporter.
func (s Service) FlagReview(ctx context.Context, reviewID string, reporterID string, reason string) (entities.ReviewFlag, error) {
	reviewID = strings.TrimSpace(reviewID)
	reporterID = strings.TrimSpace(reporterID)
	reason = strings.TrimSpace(reason)
	if reviewID == "" || reporterID == "" || reason == "" {
		return entities.ReviewFlag{}, domainerrors.ErrInvalidRequest
	}

	review, err := s.Repo.GetReview(ctx, reviewID)
	if err != nil {
		return entities.ReviewFlag{}, err
	}

	open, err := s.Repo.HasOpenFlag(ctx, reviewID, reporterID)
	if err != nil {
		return entities.ReviewFlag{}, err
	}
	if open {
		return entities.ReviewFlag{}, domainerrors.ErrAlreadyFlagged
	}

	flagID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.ReviewFlag{}, err
	}
	now := s.now()
	flag := entities.ReviewFlag{
		FlagID:     strings.TrimSpace(flagID),
		ReviewID:   reviewID,
		ReporterID: reporterID,
		Reason:     reason,
		Status:     entities.FlagStatusOpen,
		CreatedAt:  now,
	}
	if err := s.Repo.CreateFlag(ctx, flag); err != nil {
		return entities.ReviewFlag{}, err
	}

	if review.Status == entities.ReviewStatusPending || review.Status == entities.ReviewStatusApproved {
		if _, err := s.Repo.MarkFlagged(ctx, reviewID, now); err != nil {
			return entities.ReviewFlag{}, err
		}
	}

	ResolveLogger(s.Logger).Info("review flagged",
		"event", "review_flagged",
		"module", "moderation-safety/moderation-service",
		"layer", "application",
		"review_id", reviewID,
		"reporter_id", reporterID,
	)
	return flag, nil
}

// BulkModerate applies a batch of moderator decisions with partial-failure
// semantics: one bad item never aborts its siblings, and the caller gets a
// per-item account of what happened. Passing an idempotency key makes the
// whole batch replay-safe.
func (s Service) BulkModerate(ctx context.Context, idempotencyKey string, cmd ports.BulkModerateCommand) (ports.BulkSummary, error) {
	cmd.ModeratorID = strings.TrimSpace(cmd.ModeratorID)
	if cmd.ModeratorID == "" || len(cmd.Decisions) == 0 {
		return ports.BulkSummary{}, domainerrors.ErrInvalidRequest
	}
	if err := s.authorize(ctx, cmd.ModeratorID); err != nil {
		return ports.BulkSummary{}, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return s.runBulk(ctx, cmd)
	}

	var summary ports.BulkSummary
	err := s.runIdempotent(
		ctx,
		idempotencyKey,
		bulkRequestHash(cmd),
		func(raw []byte) error { return json.Unmarshal(raw, &summary) },
		func() ([]byte, error) {
			result, err := s.runBulk(ctx, cmd)
			if err != nil {
				return nil, err
			}
			return json.Marshal(result)
		},
	)
	return summary, err
}

func (s Service) runBulk(ctx context.Context, cmd ports.BulkModerateCommand) (ports.BulkSummary, error) {
	results := make([]ports.BulkItemResult, len(cmd.Decisions))

	for start := 0; start < len(cmd.Decisions); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(cmd.Decisions) {
			end = len(cmd.Decisions)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(slot int, decision ports.BulkDecision) {
				defer wg.Done()
				results[slot] = s.processDecision(ctx, cmd.ModeratorID, decision, cmd.SkipAICheck)
			}(i, cmd.Decisions[i])
		}
		wg.Wait()
	}

	summary := ports.BulkSummary{Items: results}
	for _, item := range results {
		switch item.Outcome {
		case ports.BulkItemSucceeded:
			summary.Succeeded++
		case ports.BulkItemFailed:
			summary.Failed++
		case ports.BulkItemSkipped:
			summary.Skipped++
		}
	}

	s.appendBatchSummaryLog(ctx, cmd.ModeratorID, summary)

	ResolveLogger(s.Logger).Info("bulk moderation completed",
		"event", "bulk_moderation_completed",
		"module", "moderation-safety/moderation-service",
		"layer", "application",
		"moderator_id", cmd.ModeratorID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func (s Service) processDecision(ctx context.Context, moderatorID string, decision ports.BulkDecision, skipAI bool) ports.BulkItemResult {
	result := ports.BulkItemResult{
		ReviewID: strings.TrimSpace(decision.ReviewID),
		Action:   strings.TrimSpace(strings.ToLower(decision.Action)),
	}
	if result.ReviewID == "" {
		result.Outcome = ports.BulkItemFailed
		result.Detail = "missing review id"
		return result
	}
	if result.Action != ports.BulkActionApprove && result.Action != ports.BulkActionReject {
		result.Outcome = ports.BulkItemFailed
		result.Detail = fmt.Sprintf("unknown action %q", decision.Action)
		return result
	}

	review, err := s.Repo.GetReview(ctx, result.ReviewID)
	if err != nil {
		result.Outcome = ports.BulkItemFailed
		result.Detail = err.Error()
		return result
	}
	if !review.IsModeratable() {
		result.Outcome = ports.BulkItemSkipped
		result.Detail = "Already moderated"
		return result
	}

	if result.Action == ports.BulkActionApprove && !skipAI {
		verdict, err := s.Rules.Evaluate(ctx, review, false)
		if err != nil {
			// Classifier timeouts and outages are per-item failures, never a
			// silent approve.
			result.Outcome = ports.BulkItemFailed
			result.Detail = err.Error()
			return result
		}
		if verdict.Outcome == VerdictAutoReject {
			result.Outcome = ports.BulkItemSkipped
			result.Detail = "Blocked by moderation rule"
			if verdict.AIChecked {
				result.Detail = "Failed AI check"
			}
			result.Scores = verdict.Scores
			return result
		}
		// needs_human passes through here: the moderator issuing the batch is
		// the human reviewing it.
	}

	status := entities.ReviewStatusApproved
	if result.Action == ports.BulkActionReject {
		status = entities.ReviewStatusRejected
	}

	logID, err := s.IDGen.NewID(ctx)
	if err != nil {
		result.Outcome = ports.BulkItemFailed
		result.Detail = err.Error()
		return result
	}

	updated, err := s.Repo.ApplyDecision(ctx, ports.ApplyDecisionInput{
		ReviewID:    result.ReviewID,
		ModeratorID: moderatorID,
		Status:      status,
		Action:      result.Action,
		Reason:      strings.TrimSpace(decision.Reason),
		Notes:       strings.TrimSpace(decision.Note),
		Now:         s.now(),
		LogID:       strings.TrimSpace(logID),
		Resolution:  fmt.Sprintf("review %s by moderator", status),
	})
	if err != nil {
		result.Outcome = ports.BulkItemFailed
		result.Detail = err.Error()
		return result
	}

	if status == entities.ReviewStatusRejected {
		s.notifyAuthor(ctx, updated, strings.TrimSpace(decision.Reason))
	}

	result.Outcome = ports.BulkItemSucceeded
	return result
}

// notifyAuthor is best-effort: the moderation decision already committed.
func (s Service) notifyAuthor(ctx context.Context, review entities.Review, reason string) {
	if s.Notifications == nil {
		return
	}
	err := s.Notifications.Publish(ctx, ports.NotificationEvent{
		RecipientID: review.AuthorID,
		Channel:     "user:" + review.AuthorID,
		EventType:   "review-rejected",
		Payload: map[string]any{
			"review_id":  review.ReviewID,
			"listing_id": review.ListingID,
			"reason":     reason,
		},
	})
	if err != nil {
		ResolveLogger(s.Logger).Error("review rejection notification failed",
			"event", "review_rejected_notify_failed",
			"module", "moderation-safety/moderation-service",
			"layer", "application",
			"review_id", review.ReviewID,
			"error", err.Error(),
		)
	}
}

func (s Service) appendBatchSummaryLog(ctx context.Context, moderatorID string, summary ports.BulkSummary) {
	logID, err := s.IDGen.NewID(ctx)
	if err != nil {
		ResolveLogger(s.Logger).Error("batch summary log id generation failed",
			"event", "moderation_batch_log_failed",
			"module", "moderation-safety/moderation-service",
			"layer", "application",
			"error", err.Error(),
		)
		return
	}
	err = s.Repo.AppendLog(ctx, entities.ModerationLog{
		LogID:       strings.TrimSpace(logID),
		ModeratorID: moderatorID,
		Action:      "bulk_moderate",
		Notes: fmt.Sprintf("succeeded=%d failed=%d skipped=%d",
			summary.Succeeded, summary.Failed, summary.Skipped),
		CreatedAt: s.now(),
	})
	if err != nil {
		ResolveLogger(s.Logger).Error("batch summary log append failed",
			"event", "moderation_batch_log_failed",
			"module", "moderation-safety/moderation-service",
			"layer", "application",
			"error", err.Error(),
		)
	}
}

func (s Service) CreateRule(ctx context.Context, input ports.CreateRuleInput) (entities.ModerationRule, error) {
	if err := s.authorize(ctx, strings.TrimSpace(input.ModeratorID)); err != nil {
		return entities.ModerationRule{}, err
	}

	rule := entities.ModerationRule{
		Name:        strings.TrimSpace(input.Name),
		Type:        entities.RuleType(strings.TrimSpace(strings.ToLower(input.Type))),
		Keywords:    input.Keywords,
		Pattern:     input.Pattern,
		AIModel:     strings.TrimSpace(input.AIModel),
		AIThreshold: input.AIThreshold,
		Enabled:     input.Enabled,
		Priority:    input.Priority,
	}
	if err := rule.Validate(); err != nil {
		return entities.ModerationRule{}, err
	}

	ruleID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.ModerationRule{}, err
	}
	now := s.now()
	rule.RuleID = strings.TrimSpace(ruleID)
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.Repo.CreateRule(ctx, rule); err != nil {
		return entities.ModerationRule{}, err
	}

	ResolveLogger(s.Logger).Info("moderation rule created",
		"event", "moderation_rule_created",
		"module", "moderation-safety/moderation-service",
		"layer", "application",
		"rule_id", rule.RuleID,
		"rule_type", string(rule.Type),
	)
	return rule, nil
}

func (s Service) UpdateRule(ctx context.Context, input ports.UpdateRuleInput) (entities.ModerationRule, error) {
	if err := s.authorize(ctx, strings.TrimSpace(input.ModeratorID)); err != nil {
		return entities.ModerationRule{}, err
	}
	if strings.TrimSpace(input.RuleID) == "" {
		return entities.ModerationRule{}, domainerrors.ErrInvalidRequest
	}

	rule, err := s.Repo.GetRule(ctx, strings.TrimSpace(input.RuleID))
	if err != nil {
		return entities.ModerationRule{}, err
	}
	if input.Name != nil {
		rule.Name = strings.TrimSpace(*input.Name)
	}
	if input.Keywords != nil {
		rule.Keywords = input.Keywords
	}
	if input.Pattern != nil {
		rule.Pattern = *input.Pattern
	}
	if input.AIModel != nil {
		rule.AIModel = strings.TrimSpace(*input.AIModel)
	}
	if input.AIThreshold != nil {
		rule.AIThreshold = *input.AIThreshold
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if err := rule.Validate(); err != nil {
		return entities.ModerationRule{}, err
	}
	rule.UpdatedAt = s.now()

	if err := s.Repo.UpdateRule(ctx, rule); err != nil {
		return entities.ModerationRule{}, err
	}
	return rule, nil
}

func (s Service) DeleteRule(ctx context.Context, moderatorID string, ruleID string) error {
	if err := s.authorize(ctx, strings.TrimSpace(moderatorID)); err != nil {
		return err
	}
	if strings.TrimSpace(ruleID) == "" {
		return domainerrors.ErrInvalidRequest
	}
	return s.Repo.DeleteRule(ctx, strings.TrimSpace(ruleID))
}

func (s Service) ListRules(ctx context.Context) ([]entities.ModerationRule, error) {
	return s.Repo.ListRules(ctx, false)
}

func (s Service) authorize(ctx context.Context, moderatorID string) error {
	if moderatorID == "" {
		return domainerrors.ErrForbidden
	}
	if s.Moderators == nil {
		return nil
	}
	allowed, err := s.Moderators.IsModerator(ctx, moderatorID)
	if err != nil {
		return err
	}
	if !allowed {
		return domainerrors.ErrForbidden
	}
	return nil
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.IdempotencyTTL
}

func (s Service) runIdempotent(
	ctx context.Context,
	key string,
	requestHash string,
	decode func([]byte) error,
	exec func() ([]byte, error),
) error {
	if s.Idempotency == nil {
		payload, err := exec()
		if err != nil {
			return err
		}
		return decode(payload)
	}

	now := s.now()
	record, found, err := s.Idempotency.Get(ctx, key, now)
	if err != nil {
		return err
	}
	if found {
		if record.RequestHash != requestHash {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		return decode(record.Payload)
	}
	payload, err := exec()
	if err != nil {
		return err
	}
	if err := s.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Payload:     payload,
		ExpiresAt:   now.Add(s.idempotencyTTL()),
	}); err != nil {
		return err
	}
	ResolveLogger(s.Logger).Debug("moderation idempotent mutation committed",
		"event", "moderation_idempotent_mutation_committed",
		"module", "moderation-safety/moderation-service",
		"layer", "application",
		"idempotency_key", key,
	)
	return decode(payload)
}

func bulkRequestHash(cmd ports.BulkModerateCommand) string {
	parts := []string{cmd.ModeratorID, fmt.Sprintf("skip_ai=%t", cmd.SkipAICheck)}
	for _, decision := range cmd.Decisions {
		parts = append(parts, strings.Join([]string{
			decision.ReviewID, decision.Action, decision.Reason, decision.Note,
		}, ","))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
