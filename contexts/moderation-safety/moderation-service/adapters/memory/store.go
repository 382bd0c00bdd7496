package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hearth/contexts/moderation-safety/moderation-service/domain/entities"
	domainerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
	"hearth/contexts/moderation-safety/moderation-service/ports"

	"github.com/google/uuid"
)

// Store is the in-memory fake backing tests and local runtime.
type Store struct {
	mu sync.Mutex

	reviews       map[string]entities.Review
	flags         map[string]entities.ReviewFlag
	logs          []entities.ModerationLog
	rules         map[string]entities.ModerationRule
	idempotency   map[string]ports.IdempotencyRecord
	nonModerators map[string]bool

	Published []ports.NotificationEvent
}

func NewStore() *Store {
	return &Store{
		reviews:       make(map[string]entities.Review),
		flags:         make(map[string]entities.ReviewFlag),
		rules:         make(map[string]entities.ModerationRule),
		idempotency:   make(map[string]ports.IdempotencyRecord),
		nonModerators: make(map[string]bool),
	}
}

// DenyModerator makes the directory report the user as unauthorized.
func (s *Store) DenyModerator(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonModerators[strings.TrimSpace(userID)] = true
}

// Logs returns a copy of the append-only moderation log.
func (s *Store) Logs() []entities.ModerationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.ModerationLog(nil), s.logs...)
}

// FlagsByReview returns all flags recorded against a review.
func (s *Store) FlagsByReview(reviewID string) []entities.ReviewFlag {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.ReviewFlag, 0)
	for _, flag := range s.flags {
		if flag.ReviewID == strings.TrimSpace(reviewID) {
			items = append(items, flag)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

func (s *Store) CreateReview(_ context.Context, review entities.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(review.ReviewID)
	if id == "" {
		return domainerrors.ErrInvalidReviewInput
	}
	if _, exists := s.reviews[id]; exists {
		return domainerrors.ErrInvalidReviewInput
	}
	s.reviews[id] = review
	return nil
}

func (s *Store) GetReview(_ context.Context, reviewID string) (entities.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.reviews[strings.TrimSpace(reviewID)]
	if !ok {
		return entities.Review{}, domainerrors.ErrReviewNotFound
	}
	return item, nil
}

func (s *Store) ListQueue(_ context.Context, filter ports.QueueFilter) ([]entities.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.Review, 0)
	for _, item := range s.reviews {
		if filter.Status != "" && string(item.Status) != filter.Status {
			continue
		}
		if filter.Status == "" && !item.IsModeratable() {
			continue
		}
		items = append(items, item)
	}
	// Flagged reviews jump the queue; within a class, oldest first.
	sort.Slice(items, func(i, j int) bool {
		if items[i].Status != items[j].Status {
			return items[i].Status == entities.ReviewStatusFlagged
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if filter.Offset >= len(items) {
		return []entities.Review{}, nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *Store) ApplyDecision(_ context.Context, input ports.ApplyDecisionInput) (entities.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	review, ok := s.reviews[strings.TrimSpace(input.ReviewID)]
	if !ok {
		return entities.Review{}, domainerrors.ErrReviewNotFound
	}
	if !review.IsModeratable() {
		return entities.Review{}, domainerrors.ErrAlreadyModerated
	}

	now := input.Now.UTC()
	review.Status = input.Status
	review.UpdatedAt = now
	review.ModeratedAt = &now
	s.reviews[review.ReviewID] = review

	s.logs = append(s.logs, entities.ModerationLog{
		LogID:       input.LogID,
		ReviewID:    review.ReviewID,
		ModeratorID: input.ModeratorID,
		Action:      input.Action,
		Reason:      input.Reason,
		Notes:       input.Notes,
		CreatedAt:   now,
	})

	for id, flag := range s.flags {
		if flag.ReviewID != review.ReviewID || flag.Status != entities.FlagStatusOpen {
			continue
		}
		flag.Status = entities.FlagStatusResolved
		flag.Resolution = input.Resolution
		flag.ResolvedAt = &now
		s.flags[id] = flag
	}

	return review, nil
}

func (s *Store) CreateFlag(_ context.Context, flag entities.ReviewFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(flag.FlagID)
	if id == "" {
		return domainerrors.ErrInvalidRequest
	}
	s.flags[id] = flag
	return nil
}

func (s *Store) HasOpenFlag(_ context.Context, reviewID string, reporterID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, flag := range s.flags {
		if flag.ReviewID == strings.TrimSpace(reviewID) &&
			flag.ReporterID == strings.TrimSpace(reporterID) &&
			flag.Status == entities.FlagStatusOpen {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkFlagged(_ context.Context, reviewID string, now time.Time) (entities.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	review, ok := s.reviews[strings.TrimSpace(reviewID)]
	if !ok {
		return entities.Review{}, domainerrors.ErrReviewNotFound
	}
	review.Status = entities.ReviewStatusFlagged
	review.UpdatedAt = now.UTC()
	s.reviews[review.ReviewID] = review
	return review, nil
}

func (s *Store) AppendLog(_ context.Context, log entities.ModerationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *Store) ListLogsByReview(_ context.Context, reviewID string) ([]entities.ModerationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.ModerationLog, 0)
	for _, log := range s.logs {
		if log.ReviewID == strings.TrimSpace(reviewID) {
			items = append(items, log)
		}
	}
	return items, nil
}

func (s *Store) CreateRule(_ context.Context, rule entities.ModerationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(rule.RuleID)
	if id == "" {
		return domainerrors.ErrInvalidRuleConfig
	}
	s.rules[id] = rule
	return nil
}

func (s *Store) GetRule(_ context.Context, ruleID string) (entities.ModerationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.rules[strings.TrimSpace(ruleID)]
	if !ok {
		return entities.ModerationRule{}, domainerrors.ErrRuleNotFound
	}
	return item, nil
}

func (s *Store) UpdateRule(_ context.Context, rule entities.ModerationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(rule.RuleID)
	if _, ok := s.rules[id]; !ok {
		return domainerrors.ErrRuleNotFound
	}
	s.rules[id] = rule
	return nil
}

func (s *Store) DeleteRule(_ context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(ruleID)
	if _, ok := s.rules[id]; !ok {
		return domainerrors.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *Store) ListRules(_ context.Context, enabledOnly bool) ([]entities.ModerationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.ModerationRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if enabledOnly && !rule.Enabled {
			continue
		}
		items = append(items, rule)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) IsModerator(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.nonModerators[strings.TrimSpace(userID)], nil
}

func (s *Store) Publish(_ context.Context, event ports.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Published = append(s.Published, event)
	return nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[strings.TrimSpace(record.Key)] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
