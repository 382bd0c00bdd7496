package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"hearth/contexts/finance-core/commission-engine/domain/entities"
	domainerrors "hearth/contexts/finance-core/commission-engine/domain/errors"
	"hearth/contexts/finance-core/commission-engine/ports"

	"github.com/google/uuid"
)

// Store is the in-memory fake backing tests and local runtime.
type Store struct {
	mu sync.Mutex

	commissions  map[string]entities.Commission
	byOffer      map[string]string
	destinations map[string]string
	seenEvents   map[string]time.Time
	outbox       map[string]outboxRecord

	Published []ports.NotificationEvent
}

type outboxRecord struct {
	Message     ports.OutboxMessage
	Status      string
	PublishedAt *time.Time
}

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

func NewStore() *Store {
	return &Store{
		commissions:  make(map[string]entities.Commission),
		byOffer:      make(map[string]string),
		destinations: make(map[string]string),
		seenEvents:   make(map[string]time.Time),
		outbox:       make(map[string]outboxRecord),
	}
}

// SetPayoutDestination registers an agent's payout account.
func (s *Store) SetPayoutDestination(agentID string, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destinations[strings.TrimSpace(agentID)] = strings.TrimSpace(destination)
}

func (s *Store) CreateCommission(_ context.Context, commission entities.Commission) (entities.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(commission.CommissionID)
	if id == "" {
		return entities.Commission{}, domainerrors.ErrInvalidCommissionInput
	}
	if _, exists := s.byOffer[commission.OfferID]; exists {
		return entities.Commission{}, domainerrors.ErrDuplicateCommission
	}
	s.commissions[id] = commission
	s.byOffer[commission.OfferID] = id
	return commission, nil
}

func (s *Store) GetCommission(_ context.Context, commissionID string) (entities.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.commissions[strings.TrimSpace(commissionID)]
	if !ok {
		return entities.Commission{}, domainerrors.ErrCommissionNotFound
	}
	return item, nil
}

func (s *Store) GetCommissionByOfferID(_ context.Context, offerID string) (entities.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byOffer[strings.TrimSpace(offerID)]
	if !ok {
		return entities.Commission{}, domainerrors.ErrCommissionNotFound
	}
	return s.commissions[id], nil
}

func (s *Store) GetCommissionByGatewayPaymentID(_ context.Context, gatewayPaymentID string) (entities.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := strings.TrimSpace(gatewayPaymentID)
	if target == "" {
		return entities.Commission{}, domainerrors.ErrCommissionNotFound
	}
	for _, item := range s.commissions {
		if item.GatewayPaymentID == target {
			return item, nil
		}
	}
	return entities.Commission{}, domainerrors.ErrCommissionNotFound
}

func (s *Store) UpdateCommission(_ context.Context, commission entities.Commission) (entities.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(commission.CommissionID)
	if _, ok := s.commissions[id]; !ok {
		return entities.Commission{}, domainerrors.ErrCommissionNotFound
	}
	s.commissions[id] = commission
	return commission, nil
}

func (s *Store) ListByAgent(_ context.Context, query ports.HistoryQuery) ([]entities.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.Commission, 0)
	for _, item := range s.commissions {
		if item.AgentID == query.AgentID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if query.Offset >= len(items) {
		return []entities.Commission{}, nil
	}
	items = items[query.Offset:]
	if query.Limit > 0 && len(items) > query.Limit {
		items = items[:query.Limit]
	}
	return items, nil
}

func (s *Store) SummarizeAgent(_ context.Context, agentID string) (ports.AgentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := ports.AgentSummary{AgentID: agentID}
	for _, item := range s.commissions {
		if item.AgentID != agentID {
			continue
		}
		switch item.Status {
		case entities.CommissionStatusPending:
			summary.PendingCount++
		case entities.CommissionStatusProcessing:
			summary.ProcessingCount++
		case entities.CommissionStatusPaid:
			summary.PaidCount++
			summary.TotalPaidAmount += item.Amount
		case entities.CommissionStatusFailed:
			summary.FailedCount++
		}
	}
	return summary, nil
}

func (s *Store) ListStaleProcessing(_ context.Context, olderThan time.Time, limit int) ([]entities.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	items := make([]entities.Commission, 0)
	for _, item := range s.commissions {
		if item.Status == entities.CommissionStatusProcessing && item.UpdatedAt.Before(olderThan) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.Before(items[j].UpdatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) PayoutDestination(_ context.Context, agentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destinations[strings.TrimSpace(agentID)], nil
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, receivedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(eventID)
	if _, seen := s.seenEvents[id]; seen {
		return false, nil
	}
	s.seenEvents[id] = receivedAt.UTC()
	return true, nil
}

func (s *Store) Publish(_ context.Context, event ports.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Published = append(s.Published, event)
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrInvalidCommissionInput
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.Message.Payload, payload) {
			return domainerrors.ErrInvalidCommissionInput
		}
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		Status: outboxStatusPending,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrCommissionNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
