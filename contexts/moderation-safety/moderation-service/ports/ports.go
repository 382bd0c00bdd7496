package ports

import (
	"context"
	"time"

	"hearth/contexts/moderation-safety/moderation-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type SubmitReviewInput struct {
	AuthorID  string
	ListingID string
	Title     string
	Content   string
	Rating    int
}

type QueueFilter struct {
	Status string
	Limit  int
	Offset int
}

type CreateRuleInput struct {
	ModeratorID string
	Name        string
	Type        string
	Keywords    []string
	Pattern     string
	AIModel     string
	AIThreshold float64
	Enabled     bool
	Priority    int
}

type UpdateRuleInput struct {
	ModeratorID string
	RuleID      string
	Name        *string
	Keywords    []string
	Pattern     *string
	AIModel     *string
	AIThreshold *float64
	Enabled     *bool
	Priority    *int
}

const (
	BulkActionApprove = "approve"
	BulkActionReject  = "reject"
)

type BulkDecision struct {
	ReviewID string
	Action   string
	Reason   string
	Note     string
}

type BulkModerateCommand struct {
	ModeratorID string
	Decisions   []BulkDecision
	SkipAICheck bool
}

const (
	BulkItemSucceeded = "succeeded"
	BulkItemFailed    = "failed"
	BulkItemSkipped   = "skipped"
)

type BulkItemResult struct {
	ReviewID string
	Action   string
	Outcome  string
	Detail   string
	Scores   map[string]float64
}

type BulkSummary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Items     []BulkItemResult
}

// ApplyDecisionInput is the atomic moderation write: review status, audit log
// row and open-flag resolution move together.
type ApplyDecisionInput struct {
	ReviewID    string
	ModeratorID string
	Status      entities.ReviewStatus
	Action      string
	Reason      string
	Notes       string
	Now         time.Time
	LogID       string
	Resolution  string
}

type Repository interface {
	CreateReview(ctx context.Context, review entities.Review) error
	GetReview(ctx context.Context, reviewID string) (entities.Review, error)
	ListQueue(ctx context.Context, filter QueueFilter) ([]entities.Review, error)
	ApplyDecision(ctx context.Context, input ApplyDecisionInput) (entities.Review, error)
	CreateFlag(ctx context.Context, flag entities.ReviewFlag) error
	HasOpenFlag(ctx context.Context, reviewID string, reporterID string) (bool, error)
	MarkFlagged(ctx context.Context, reviewID string, now time.Time) (entities.Review, error)
	AppendLog(ctx context.Context, log entities.ModerationLog) error
	ListLogsByReview(ctx context.Context, reviewID string) ([]entities.ModerationLog, error)
	CreateRule(ctx context.Context, rule entities.ModerationRule) error
	GetRule(ctx context.Context, ruleID string) (entities.ModerationRule, error)
	UpdateRule(ctx context.Context, rule entities.ModerationRule) error
	DeleteRule(ctx context.Context, ruleID string) error
	ListRules(ctx context.Context, enabledOnly bool) ([]entities.ModerationRule, error)
}

// Classification is the AI verdict for one piece of content. Scores are in
// [0,1]; flags are hard signals independent of the threshold.
type Classification struct {
	Scores map[string]float64
	Flags  map[string]bool
}

type ContentClassifier interface {
	Classify(ctx context.Context, model string, content string) (Classification, error)
}

// ModeratorDirectory answers whether a user may manage rules and moderate.
type ModeratorDirectory interface {
	IsModerator(ctx context.Context, userID string) (bool, error)
}

type NotificationEvent struct {
	RecipientID string
	Channel     string
	EventType   string
	Payload     map[string]any
}

type NotificationPublisher interface {
	Publish(ctx context.Context, event NotificationEvent) error
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Payload     []byte
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}
