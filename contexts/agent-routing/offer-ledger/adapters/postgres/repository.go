package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"hearth/contexts/agent-routing/offer-ledger/domain/entities"
	domainerrors "hearth/contexts/agent-routing/offer-ledger/domain/errors"
	"hearth/contexts/agent-routing/offer-ledger/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository persists submissions and offers. The offers table carries a
// partial unique index on (submission_id, agent_id) WHERE status <> 'rejected'
// so the duplicate-offer invariant holds without a read-then-write race.
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

func (r *Repository) CreateSubmission(ctx context.Context, submission entities.Submission) error {
	row := submissionModelFromEntity(submission)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidSubmissionInput
		}
		return err
	}
	return nil
}

func (r *Repository) GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error) {
	var row submissionModel
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", strings.TrimSpace(submissionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Submission{}, domainerrors.ErrSubmissionNotFound
		}
		return entities.Submission{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateOffer(ctx context.Context, offer entities.Offer) error {
	row := offerModelFromEntity(offer)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateOffer
		}
		return err
	}
	return nil
}

func (r *Repository) GetOffer(ctx context.Context, offerID string) (entities.Offer, error) {
	var row offerModel
	err := r.db.WithContext(ctx).
		Where("offer_id = ?", strings.TrimSpace(offerID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Offer{}, domainerrors.ErrOfferNotFound
		}
		return entities.Offer{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListOffersBySubmission(ctx context.Context, submissionID string) ([]entities.Offer, error) {
	var rows []offerModel
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", strings.TrimSpace(submissionID)).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Offer, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// AcceptOffer runs the exclusive-acceptance transition as one transaction.
// The submission row is locked FOR UPDATE so two concurrent accepts serialize;
// the loser observes status assigned and fails with a conflict.
func (r *Repository) AcceptOffer(ctx context.Context, input ports.AcceptOfferInput) (ports.AcceptOutcome, error) {
	var outcome ports.AcceptOutcome
	now := input.Now.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var submissionRow submissionModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("submission_id = ?", strings.TrimSpace(input.SubmissionID)).
			First(&submissionRow).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrSubmissionNotFound
			}
			return err
		}
		switch entities.SubmissionStatus(submissionRow.Status) {
		case entities.SubmissionStatusAssigned:
			return domainerrors.ErrSubmissionAlreadyAssigned
		case entities.SubmissionStatusClosed:
			return domainerrors.ErrSubmissionClosed
		}

		var offerRow offerModel
		if err := tx.
			Where("offer_id = ?", strings.TrimSpace(input.OfferID)).
			Where("submission_id = ?", submissionRow.SubmissionID).
			First(&offerRow).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrOfferNotFound
			}
			return err
		}
		if entities.OfferStatus(offerRow.Status) != entities.OfferStatusPending {
			return domainerrors.ErrOfferAlreadyDecided
		}

		if err := tx.Model(&offerModel{}).
			Where("offer_id = ?", offerRow.OfferID).
			Updates(map[string]any{
				"status":          string(entities.OfferStatusAccepted),
				"decision_reason": strings.TrimSpace(input.Reason),
				"decided_at":      now,
			}).Error; err != nil {
			return err
		}

		var siblingRows []offerModel
		if err := tx.
			Where("submission_id = ?", submissionRow.SubmissionID).
			Where("offer_id <> ?", offerRow.OfferID).
			Where("status = ?", string(entities.OfferStatusPending)).
			Order("created_at ASC").
			Find(&siblingRows).
			Error; err != nil {
			return err
		}
		if len(siblingRows) > 0 {
			if err := tx.Model(&offerModel{}).
				Where("submission_id = ?", submissionRow.SubmissionID).
				Where("offer_id <> ?", offerRow.OfferID).
				Where("status = ?", string(entities.OfferStatusPending)).
				Updates(map[string]any{
					"status":          string(entities.OfferStatusRejected),
					"decision_reason": "another offer was accepted",
					"decided_at":      now,
				}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&submissionModel{}).
			Where("submission_id = ?", submissionRow.SubmissionID).
			Updates(map[string]any{
				"status":            string(entities.SubmissionStatusAssigned),
				"assigned_agent_id": offerRow.AgentID,
				"updated_at":        now,
			}).Error; err != nil {
			return err
		}

		conversationRow := conversationModel{
			ConversationID: strings.TrimSpace(input.ConversationID),
			SubmissionID:   submissionRow.SubmissionID,
			OwnerID:        submissionRow.OwnerID,
			AgentID:        offerRow.AgentID,
			CreatedAt:      now,
		}
		if err := tx.Create(&conversationRow).Error; err != nil {
			return err
		}

		accepted := offerRow.toEntity()
		accepted.Status = entities.OfferStatusAccepted
		accepted.DecisionReason = strings.TrimSpace(input.Reason)
		accepted.DecidedAt = &now

		rejected := make([]entities.Offer, 0, len(siblingRows))
		for _, sibling := range siblingRows {
			item := sibling.toEntity()
			item.Status = entities.OfferStatusRejected
			item.DecisionReason = "another offer was accepted"
			item.DecidedAt = &now
			rejected = append(rejected, item)
		}

		submission := submissionRow.toEntity()
		submission.Status = entities.SubmissionStatusAssigned
		submission.AssignedAgentID = offerRow.AgentID
		submission.UpdatedAt = now

		outcome = ports.AcceptOutcome{
			Offer:          accepted,
			RejectedOffers: rejected,
			Conversation: entities.Conversation{
				ConversationID: conversationRow.ConversationID,
				SubmissionID:   conversationRow.SubmissionID,
				OwnerID:        conversationRow.OwnerID,
				AgentID:        conversationRow.AgentID,
				CreatedAt:      now,
			},
			Submission: submission,
		}
		return nil
	})
	if err != nil {
		return ports.AcceptOutcome{}, err
	}
	return outcome, nil
}

func (r *Repository) RejectOffer(ctx context.Context, input ports.RejectOfferInput) (entities.Offer, error) {
	now := input.Now.UTC()
	result := r.db.WithContext(ctx).
		Model(&offerModel{}).
		Where("offer_id = ?", strings.TrimSpace(input.OfferID)).
		Where("submission_id = ?", strings.TrimSpace(input.SubmissionID)).
		Where("status = ?", string(entities.OfferStatusPending)).
		Updates(map[string]any{
			"status":          string(entities.OfferStatusRejected),
			"decision_reason": strings.TrimSpace(input.Reason),
			"decided_at":      now,
		})
	if result.Error != nil {
		return entities.Offer{}, result.Error
	}
	if result.RowsAffected == 0 {
		// Either unknown or already decided; disambiguate for the caller.
		offer, err := r.GetOffer(ctx, input.OfferID)
		if err != nil {
			return entities.Offer{}, err
		}
		if offer.SubmissionID != strings.TrimSpace(input.SubmissionID) {
			return entities.Offer{}, domainerrors.ErrOfferNotFound
		}
		return entities.Offer{}, domainerrors.ErrOfferAlreadyDecided
	}
	return r.GetOffer(ctx, input.OfferID)
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.EntityID),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAtUTC.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrInvalidOfferInput
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOfferNotFound
	}
	return nil
}

type submissionModel struct {
	SubmissionID    string    `gorm:"column:submission_id;primaryKey"`
	OwnerID         string    `gorm:"column:owner_id"`
	Title           string    `gorm:"column:title"`
	Details         []byte    `gorm:"column:details"`
	ListingPrice    float64   `gorm:"column:listing_price"`
	Status          string    `gorm:"column:status"`
	AssignedAgentID string    `gorm:"column:assigned_agent_id"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (submissionModel) TableName() string {
	return "submissions"
}

func submissionModelFromEntity(item entities.Submission) submissionModel {
	details := map[string]any{}
	if item.Details != nil {
		details = item.Details
	}
	detailsRaw, _ := json.Marshal(details)
	return submissionModel{
		SubmissionID:    strings.TrimSpace(item.SubmissionID),
		OwnerID:         strings.TrimSpace(item.OwnerID),
		Title:           strings.TrimSpace(item.Title),
		Details:         detailsRaw,
		ListingPrice:    item.ListingPrice,
		Status:          string(item.Status),
		AssignedAgentID: strings.TrimSpace(item.AssignedAgentID),
		CreatedAt:       item.CreatedAt.UTC(),
		UpdatedAt:       item.UpdatedAt.UTC(),
	}
}

func (m submissionModel) toEntity() entities.Submission {
	details := map[string]any{}
	if len(m.Details) > 0 {
		_ = json.Unmarshal(m.Details, &details)
	}
	return entities.Submission{
		SubmissionID:    m.SubmissionID,
		OwnerID:         m.OwnerID,
		Title:           m.Title,
		Details:         details,
		ListingPrice:    m.ListingPrice,
		Status:          entities.SubmissionStatus(m.Status),
		AssignedAgentID: m.AssignedAgentID,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

type offerModel struct {
	OfferID        string     `gorm:"column:offer_id;primaryKey"`
	SubmissionID   string     `gorm:"column:submission_id"`
	AgentID        string     `gorm:"column:agent_id"`
	ProposedValue  *float64   `gorm:"column:proposed_value"`
	Confidence     *int       `gorm:"column:confidence"`
	Message        string     `gorm:"column:message"`
	Status         string     `gorm:"column:status"`
	DecisionReason string     `gorm:"column:decision_reason"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	DecidedAt      *time.Time `gorm:"column:decided_at"`
}

func (offerModel) TableName() string {
	return "offers"
}

func offerModelFromEntity(item entities.Offer) offerModel {
	return offerModel{
		OfferID:        strings.TrimSpace(item.OfferID),
		SubmissionID:   strings.TrimSpace(item.SubmissionID),
		AgentID:        strings.TrimSpace(item.AgentID),
		ProposedValue:  item.ProposedValue,
		Confidence:     item.Confidence,
		Message:        strings.TrimSpace(item.Message),
		Status:         string(item.Status),
		DecisionReason: strings.TrimSpace(item.DecisionReason),
		CreatedAt:      item.CreatedAt.UTC(),
		DecidedAt:      normalizeOptionalTime(item.DecidedAt),
	}
}

func (m offerModel) toEntity() entities.Offer {
	return entities.Offer{
		OfferID:        m.OfferID,
		SubmissionID:   m.SubmissionID,
		AgentID:        m.AgentID,
		ProposedValue:  m.ProposedValue,
		Confidence:     m.Confidence,
		Message:        m.Message,
		Status:         entities.OfferStatus(m.Status),
		DecisionReason: m.DecisionReason,
		CreatedAt:      m.CreatedAt.UTC(),
		DecidedAt:      normalizeOptionalTime(m.DecidedAt),
	}
}

type conversationModel struct {
	ConversationID string    `gorm:"column:conversation_id;primaryKey"`
	SubmissionID   string    `gorm:"column:submission_id"`
	OwnerID        string    `gorm:"column:owner_id"`
	AgentID        string    `gorm:"column:agent_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (conversationModel) TableName() string {
	return "conversations"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "offer_outbox"
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
