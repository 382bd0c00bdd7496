package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"hearth/contexts/moderation-safety/moderation-service/domain/entities"
	domainerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
	"hearth/contexts/moderation-safety/moderation-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists reviews, flags, rules and the moderation audit log.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateReview(ctx context.Context, review entities.Review) error {
	row := reviewModelFromEntity(review)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidReviewInput
		}
		return err
	}
	return nil
}

func (r *Repository) GetReview(ctx context.Context, reviewID string) (entities.Review, error) {
	var row reviewModel
	err := r.db.WithContext(ctx).
		Where("review_id = ?", strings.TrimSpace(reviewID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Review{}, domainerrors.ErrReviewNotFound
		}
		return entities.Review{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListQueue(ctx context.Context, filter ports.QueueFilter) ([]entities.Review, error) {
	query := r.db.WithContext(ctx).Model(&reviewModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	} else {
		query = query.Where("status IN ?", []string{
			string(entities.ReviewStatusPending),
			string(entities.ReviewStatusFlagged),
		})
	}

	var rows []reviewModel
	if err := query.
		Order("CASE WHEN status = 'flagged' THEN 0 ELSE 1 END, created_at ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Review, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// ApplyDecision moves the review to its decided status, writes the audit row
// and resolves open flags in one transaction. The review row is locked so two
// concurrent bulk items cannot both decide it.
func (r *Repository) ApplyDecision(ctx context.Context, input ports.ApplyDecisionInput) (entities.Review, error) {
	var updated entities.Review
	now := input.Now.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row reviewModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("review_id = ?", strings.TrimSpace(input.ReviewID)).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrReviewNotFound
			}
			return err
		}
		current := entities.ReviewStatus(row.Status)
		if current != entities.ReviewStatusPending && current != entities.ReviewStatusFlagged {
			return domainerrors.ErrAlreadyModerated
		}

		if err := tx.Model(&reviewModel{}).
			Where("review_id = ?", row.ReviewID).
			Updates(map[string]any{
				"status":       string(input.Status),
				"updated_at":   now,
				"moderated_at": now,
			}).Error; err != nil {
			return err
		}

		logRow := moderationLogModel{
			LogID:       strings.TrimSpace(input.LogID),
			ReviewID:    row.ReviewID,
			ModeratorID: strings.TrimSpace(input.ModeratorID),
			Action:      input.Action,
			Reason:      input.Reason,
			Notes:       input.Notes,
			CreatedAt:   now,
		}
		if err := tx.Create(&logRow).Error; err != nil {
			return err
		}

		if err := tx.Model(&reviewFlagModel{}).
			Where("review_id = ?", row.ReviewID).
			Where("status = ?", string(entities.FlagStatusOpen)).
			Updates(map[string]any{
				"status":      string(entities.FlagStatusResolved),
				"resolution":  input.Resolution,
				"resolved_at": now,
			}).Error; err != nil {
			return err
		}

		updated = row.toEntity()
		updated.Status = input.Status
		updated.UpdatedAt = now
		updated.ModeratedAt = &now
		return nil
	})
	if err != nil {
		return entities.Review{}, err
	}
	return updated, nil
}

func (r *Repository) CreateFlag(ctx context.Context, flag entities.ReviewFlag) error {
	row := reviewFlagModel{
		FlagID:     strings.TrimSpace(flag.FlagID),
		ReviewID:   strings.TrimSpace(flag.ReviewID),
		ReporterID: strings.TrimSpace(flag.ReporterID),
		Reason:     flag.Reason,
		Status:     string(flag.Status),
		Resolution: flag.Resolution,
		CreatedAt:  flag.CreatedAt.UTC(),
		ResolvedAt: normalizeOptionalTime(flag.ResolvedAt),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyFlagged
		}
		return err
	}
	return nil
}

func (r *Repository) HasOpenFlag(ctx context.Context, reviewID string, reporterID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&reviewFlagModel{}).
		Where("review_id = ?", strings.TrimSpace(reviewID)).
		Where("reporter_id = ?", strings.TrimSpace(reporterID)).
		Where("status = ?", string(entities.FlagStatusOpen)).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) MarkFlagged(ctx context.Context, reviewID string, now time.Time) (entities.Review, error) {
	result := r.db.WithContext(ctx).
		Model(&reviewModel{}).
		Where("review_id = ?", strings.TrimSpace(reviewID)).
		Updates(map[string]any{
			"status":     string(entities.ReviewStatusFlagged),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return entities.Review{}, result.Error
	}
	if result.RowsAffected == 0 {
		return entities.Review{}, domainerrors.ErrReviewNotFound
	}
	return r.GetReview(ctx, reviewID)
}

func (r *Repository) AppendLog(ctx context.Context, log entities.ModerationLog) error {
	row := moderationLogModel{
		LogID:       strings.TrimSpace(log.LogID),
		ReviewID:    strings.TrimSpace(log.ReviewID),
		ModeratorID: strings.TrimSpace(log.ModeratorID),
		Action:      log.Action,
		Reason:      log.Reason,
		Notes:       log.Notes,
		CreatedAt:   log.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) ListLogsByReview(ctx context.Context, reviewID string) ([]entities.ModerationLog, error) {
	var rows []moderationLogModel
	if err := r.db.WithContext(ctx).
		Where("review_id = ?", strings.TrimSpace(reviewID)).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.ModerationLog, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.ModerationLog{
			LogID:       row.LogID,
			ReviewID:    row.ReviewID,
			ModeratorID: row.ModeratorID,
			Action:      row.Action,
			Reason:      row.Reason,
			Notes:       row.Notes,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) CreateRule(ctx context.Context, rule entities.ModerationRule) error {
	row, err := ruleModelFromEntity(rule)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) GetRule(ctx context.Context, ruleID string) (entities.ModerationRule, error) {
	var row moderationRuleModel
	err := r.db.WithContext(ctx).
		Where("rule_id = ?", strings.TrimSpace(ruleID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ModerationRule{}, domainerrors.ErrRuleNotFound
		}
		return entities.ModerationRule{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateRule(ctx context.Context, rule entities.ModerationRule) error {
	row, err := ruleModelFromEntity(rule)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&moderationRuleModel{}).
		Where("rule_id = ?", row.RuleID).
		Updates(map[string]any{
			"name":         row.Name,
			"keywords":     row.Keywords,
			"pattern":      row.Pattern,
			"ai_model":     row.AIModel,
			"ai_threshold": row.AIThreshold,
			"enabled":      row.Enabled,
			"priority":     row.Priority,
			"updated_at":   row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRuleNotFound
	}
	return nil
}

func (r *Repository) DeleteRule(ctx context.Context, ruleID string) error {
	result := r.db.WithContext(ctx).
		Where("rule_id = ?", strings.TrimSpace(ruleID)).
		Delete(&moderationRuleModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRuleNotFound
	}
	return nil
}

func (r *Repository) ListRules(ctx context.Context, enabledOnly bool) ([]entities.ModerationRule, error) {
	query := r.db.WithContext(ctx).Model(&moderationRuleModel{})
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}
	var rows []moderationRuleModel
	if err := query.
		Order("priority ASC, created_at ASC, rule_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.ModerationRule, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		Where("expires_at > ?", now.UTC()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		Payload:     append([]byte(nil), row.Payload...),
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: record.RequestHash,
		Payload:     record.Payload,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
}

type reviewModel struct {
	ReviewID    string     `gorm:"column:review_id;primaryKey"`
	AuthorID    string     `gorm:"column:author_id"`
	ListingID   string     `gorm:"column:listing_id"`
	Title       string     `gorm:"column:title"`
	Content     string     `gorm:"column:content"`
	Rating      int        `gorm:"column:rating"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	ModeratedAt *time.Time `gorm:"column:moderated_at"`
}

func (reviewModel) TableName() string {
	return "reviews"
}

func reviewModelFromEntity(item entities.Review) reviewModel {
	return reviewModel{
		ReviewID:    strings.TrimSpace(item.ReviewID),
		AuthorID:    strings.TrimSpace(item.AuthorID),
		ListingID:   strings.TrimSpace(item.ListingID),
		Title:       item.Title,
		Content:     item.Content,
		Rating:      item.Rating,
		Status:      string(item.Status),
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt.UTC(),
		ModeratedAt: normalizeOptionalTime(item.ModeratedAt),
	}
}

func (m reviewModel) toEntity() entities.Review {
	return entities.Review{
		ReviewID:    m.ReviewID,
		AuthorID:    m.AuthorID,
		ListingID:   m.ListingID,
		Title:       m.Title,
		Content:     m.Content,
		Rating:      m.Rating,
		Status:      entities.ReviewStatus(m.Status),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		ModeratedAt: normalizeOptionalTime(m.ModeratedAt),
	}
}

type reviewFlagModel struct {
	FlagID     string     `gorm:"column:flag_id;primaryKey"`
	ReviewID   string     `gorm:"column:review_id"`
	ReporterID string     `gorm:"column:reporter_id"`
	Reason     string     `gorm:"column:reason"`
	Status     string     `gorm:"column:status"`
	Resolution string     `gorm:"column:resolution"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	ResolvedAt *time.Time `gorm:"column:resolved_at"`
}

func (reviewFlagModel) TableName() string {
	return "review_flags"
}

type moderationLogModel struct {
	LogID       string    `gorm:"column:log_id;primaryKey"`
	ReviewID    string    `gorm:"column:review_id"`
	ModeratorID string    `gorm:"column:moderator_id"`
	Action      string    `gorm:"column:action"`
	Reason      string    `gorm:"column:reason"`
	Notes       string    `gorm:"column:notes"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (moderationLogModel) TableName() string {
	return "moderation_logs"
}

type moderationRuleModel struct {
	RuleID      string    `gorm:"column:rule_id;primaryKey"`
	Name        string    `gorm:"column:name"`
	Type        string    `gorm:"column:type"`
	Keywords    []byte    `gorm:"column:keywords"`
	Pattern     string    `gorm:"column:pattern"`
	AIModel     string    `gorm:"column:ai_model"`
	AIThreshold float64   `gorm:"column:ai_threshold"`
	Enabled     bool      `gorm:"column:enabled"`
	Priority    int       `gorm:"column:priority"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (moderationRuleModel) TableName() string {
	return "moderation_rules"
}

func ruleModelFromEntity(item entities.ModerationRule) (moderationRuleModel, error) {
	keywords, err := json.Marshal(item.Keywords)
	if err != nil {
		return moderationRuleModel{}, err
	}
	return moderationRuleModel{
		RuleID:      strings.TrimSpace(item.RuleID),
		Name:        strings.TrimSpace(item.Name),
		Type:        string(item.Type),
		Keywords:    keywords,
		Pattern:     item.Pattern,
		AIModel:     strings.TrimSpace(item.AIModel),
		AIThreshold: item.AIThreshold,
		Enabled:     item.Enabled,
		Priority:    item.Priority,
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt.UTC(),
	}, nil
}

func (m moderationRuleModel) toEntity() entities.ModerationRule {
	var keywords []string
	if len(m.Keywords) > 0 {
		_ = json.Unmarshal(m.Keywords, &keywords)
	}
	return entities.ModerationRule{
		RuleID:      m.RuleID,
		Name:        m.Name,
		Type:        entities.RuleType(m.Type),
		Keywords:    keywords,
		Pattern:     m.Pattern,
		AIModel:     m.AIModel,
		AIThreshold: m.AIThreshold,
		Enabled:     m.Enabled,
		Priority:    m.Priority,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	Payload     []byte    `gorm:"column:payload"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "moderation_idempotency"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
