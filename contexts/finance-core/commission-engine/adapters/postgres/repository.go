package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"hearth/contexts/finance-core/commission-engine/domain/entities"
	domainerrors "hearth/contexts/finance-core/commission-engine/domain/errors"
	"hearth/contexts/finance-core/commission-engine/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository persists commissions. The commissions table carries a unique
// index on offer_id so replayed creates for the same accepted offer collapse
// into one row.
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

func (r *Repository) CreateCommission(ctx context.Context, commission entities.Commission) (entities.Commission, error) {
	row := commissionModelFromEntity(commission)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return entities.Commission{}, domainerrors.ErrDuplicateCommission
		}
		return entities.Commission{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetCommission(ctx context.Context, commissionID string) (entities.Commission, error) {
	var row commissionModel
	err := r.db.WithContext(ctx).
		Where("commission_id = ?", strings.TrimSpace(commissionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Commission{}, domainerrors.ErrCommissionNotFound
		}
		return entities.Commission{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetCommissionByOfferID(ctx context.Context, offerID string) (entities.Commission, error) {
	var row commissionModel
	err := r.db.WithContext(ctx).
		Where("offer_id = ?", strings.TrimSpace(offerID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Commission{}, domainerrors.ErrCommissionNotFound
		}
		return entities.Commission{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetCommissionByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (entities.Commission, error) {
	target := strings.TrimSpace(gatewayPaymentID)
	if target == "" {
		return entities.Commission{}, domainerrors.ErrCommissionNotFound
	}
	var row commissionModel
	err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ?", target).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Commission{}, domainerrors.ErrCommissionNotFound
		}
		return entities.Commission{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateCommission(ctx context.Context, commission entities.Commission) (entities.Commission, error) {
	row := commissionModelFromEntity(commission)
	result := r.db.WithContext(ctx).
		Model(&commissionModel{}).
		Where("commission_id = ?", row.CommissionID).
		Updates(map[string]any{
			"status":             row.Status,
			"gateway_payment_id": row.GatewayPaymentID,
			"paid_at":            row.PaidAt,
			"notes":              row.Notes,
			"updated_at":         row.UpdatedAt,
		})
	if result.Error != nil {
		return entities.Commission{}, result.Error
	}
	if result.RowsAffected == 0 {
		return entities.Commission{}, domainerrors.ErrCommissionNotFound
	}
	return r.GetCommission(ctx, commission.CommissionID)
}

func (r *Repository) ListByAgent(ctx context.Context, query ports.HistoryQuery) ([]entities.Commission, error) {
	var rows []commissionModel
	if err := r.db.WithContext(ctx).
		Where("agent_id = ?", query.AgentID).
		Order("created_at DESC").
		Limit(query.Limit).
		Offset(query.Offset).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Commission, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SummarizeAgent(ctx context.Context, agentID string) (ports.AgentSummary, error) {
	type statusRow struct {
		Status string
		Count  int
		Total  float64
	}
	var rows []statusRow
	if err := r.db.WithContext(ctx).
		Model(&commissionModel{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("agent_id = ?", agentID).
		Group("status").
		Scan(&rows).
		Error; err != nil {
		return ports.AgentSummary{}, err
	}

	summary := ports.AgentSummary{AgentID: agentID}
	for _, row := range rows {
		switch entities.CommissionStatus(row.Status) {
		case entities.CommissionStatusPending:
			summary.PendingCount = row.Count
		case entities.CommissionStatusProcessing:
			summary.ProcessingCount = row.Count
		case entities.CommissionStatusPaid:
			summary.PaidCount = row.Count
			summary.TotalPaidAmount = row.Total
		case entities.CommissionStatusFailed:
			summary.FailedCount = row.Count
		}
	}
	return summary, nil
}

func (r *Repository) ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]entities.Commission, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []commissionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.CommissionStatusProcessing)).
		Where("updated_at < ?", olderThan.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Commission, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// ReserveEvent inserts the gateway event ID, reporting false on conflict so a
// replayed webhook is recognized without a separate read.
func (r *Repository) ReserveEvent(ctx context.Context, eventID string, receivedAt time.Time) (bool, error) {
	row := gatewayEventModel{
		EventID:    strings.TrimSpace(eventID),
		ReceivedAt: receivedAt.UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
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
		return domainerrors.ErrInvalidCommissionInput
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
		return domainerrors.ErrCommissionNotFound
	}
	return nil
}

type commissionModel struct {
	CommissionID     string     `gorm:"column:commission_id;primaryKey"`
	ListingID        string     `gorm:"column:listing_id"`
	AgentID          string     `gorm:"column:agent_id"`
	OfferID          string     `gorm:"column:offer_id;uniqueIndex"`
	Amount           float64    `gorm:"column:amount"`
	Rate             float64    `gorm:"column:rate"`
	DueDate          time.Time  `gorm:"column:due_date"`
	Status           string     `gorm:"column:status"`
	GatewayPaymentID string     `gorm:"column:gateway_payment_id"`
	PaidAt           *time.Time `gorm:"column:paid_at"`
	Notes            string     `gorm:"column:notes"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (commissionModel) TableName() string {
	return "commissions"
}

func commissionModelFromEntity(item entities.Commission) commissionModel {
	return commissionModel{
		CommissionID:     strings.TrimSpace(item.CommissionID),
		ListingID:        strings.TrimSpace(item.ListingID),
		AgentID:          strings.TrimSpace(item.AgentID),
		OfferID:          strings.TrimSpace(item.OfferID),
		Amount:           item.Amount,
		Rate:             item.Rate,
		DueDate:          item.DueDate.UTC(),
		Status:           string(item.Status),
		GatewayPaymentID: strings.TrimSpace(item.GatewayPaymentID),
		PaidAt:           normalizeOptionalTime(item.PaidAt),
		Notes:            item.Notes,
		CreatedAt:        item.CreatedAt.UTC(),
		UpdatedAt:        item.UpdatedAt.UTC(),
	}
}

func (m commissionModel) toEntity() entities.Commission {
	return entities.Commission{
		CommissionID:     m.CommissionID,
		ListingID:        m.ListingID,
		AgentID:          m.AgentID,
		OfferID:          m.OfferID,
		Amount:           m.Amount,
		Rate:             m.Rate,
		DueDate:          m.DueDate.UTC(),
		Status:           entities.CommissionStatus(m.Status),
		GatewayPaymentID: m.GatewayPaymentID,
		PaidAt:           normalizeOptionalTime(m.PaidAt),
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

type gatewayEventModel struct {
	EventID    string    `gorm:"column:event_id;primaryKey"`
	ReceivedAt time.Time `gorm:"column:received_at"`
}

func (gatewayEventModel) TableName() string {
	return "commission_gateway_events"
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
	return "commission_outbox"
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
