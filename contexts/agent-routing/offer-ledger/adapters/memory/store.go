package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"hearth/contexts/agent-routing/offer-ledger/domain/entities"
	domainerrors "hearth/contexts/agent-routing/offer-ledger/domain/errors"
	"hearth/contexts/agent-routing/offer-ledger/ports"

	"github.com/google/uuid"
)

// Store is the in-memory fake backing tests and local runtime. The single
// mutex stands in for the row lock the postgres adapter takes on the
// submission during the accept transition.
type Store struct {
	mu sync.Mutex

	submissions   map[string]entities.Submission
	offers        map[string]entities.Offer
	conversations map[string]entities.Conversation
	outbox        map[string]outboxRecord
	ineligible    map[string]bool

	CommissionCalls []ports.AcceptedOffer
	Published       []ports.NotificationEvent
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
		submissions:   make(map[string]entities.Submission),
		offers:        make(map[string]entities.Offer),
		conversations: make(map[string]entities.Conversation),
		outbox:        make(map[string]outboxRecord),
		ineligible:    make(map[string]bool),
	}
}

// MarkIneligible makes the directory report the agent as not eligible.
func (s *Store) MarkIneligible(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ineligible[strings.TrimSpace(agentID)] = true
}

func (s *Store) CreateSubmission(_ context.Context, submission entities.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(submission.SubmissionID)
	if id == "" {
		return domainerrors.ErrInvalidSubmissionInput
	}
	if _, exists := s.submissions[id]; exists {
		return domainerrors.ErrInvalidSubmissionInput
	}
	s.submissions[id] = submission
	return nil
}

func (s *Store) GetSubmission(_ context.Context, submissionID string) (entities.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.submissions[strings.TrimSpace(submissionID)]
	if !ok {
		return entities.Submission{}, domainerrors.ErrSubmissionNotFound
	}
	return item, nil
}

func (s *Store) CreateOffer(_ context.Context, offer entities.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(offer.OfferID)
	if id == "" {
		return domainerrors.ErrInvalidOfferInput
	}
	for _, existing := range s.offers {
		if existing.SubmissionID == offer.SubmissionID &&
			existing.AgentID == offer.AgentID &&
			existing.Status != entities.OfferStatusRejected {
			return domainerrors.ErrDuplicateOffer
		}
	}
	s.offers[id] = offer
	return nil
}

func (s *Store) GetOffer(_ context.Context, offerID string) (entities.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.offers[strings.TrimSpace(offerID)]
	if !ok {
		return entities.Offer{}, domainerrors.ErrOfferNotFound
	}
	return item, nil
}

func (s *Store) ListOffersBySubmission(_ context.Context, submissionID string) ([]entities.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.Offer, 0)
	for _, item := range s.offers {
		if item.SubmissionID == strings.TrimSpace(submissionID) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) AcceptOffer(_ context.Context, input ports.AcceptOfferInput) (ports.AcceptOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	submission, ok := s.submissions[strings.TrimSpace(input.SubmissionID)]
	if !ok {
		return ports.AcceptOutcome{}, domainerrors.ErrSubmissionNotFound
	}
	switch submission.Status {
	case entities.SubmissionStatusAssigned:
		return ports.AcceptOutcome{}, domainerrors.ErrSubmissionAlreadyAssigned
	case entities.SubmissionStatusClosed:
		return ports.AcceptOutcome{}, domainerrors.ErrSubmissionClosed
	}

	offer, ok := s.offers[strings.TrimSpace(input.OfferID)]
	if !ok || offer.SubmissionID != submission.SubmissionID {
		return ports.AcceptOutcome{}, domainerrors.ErrOfferNotFound
	}
	if offer.Status != entities.OfferStatusPending {
		return ports.AcceptOutcome{}, domainerrors.ErrOfferAlreadyDecided
	}

	now := input.Now.UTC()
	offer.Status = entities.OfferStatusAccepted
	offer.DecisionReason = strings.TrimSpace(input.Reason)
	offer.DecidedAt = &now
	s.offers[offer.OfferID] = offer

	rejected := make([]entities.Offer, 0)
	for id, sibling := range s.offers {
		if sibling.SubmissionID != submission.SubmissionID || id == offer.OfferID {
			continue
		}
		if sibling.Status != entities.OfferStatusPending {
			continue
		}
		sibling.Status = entities.OfferStatusRejected
		sibling.DecisionReason = "another offer was accepted"
		sibling.DecidedAt = &now
		s.offers[id] = sibling
		rejected = append(rejected, sibling)
	}
	sort.Slice(rejected, func(i, j int) bool {
		return rejected[i].CreatedAt.Before(rejected[j].CreatedAt)
	})

	submission.Status = entities.SubmissionStatusAssigned
	submission.AssignedAgentID = offer.AgentID
	submission.UpdatedAt = now
	s.submissions[submission.SubmissionID] = submission

	conversation := entities.Conversation{
		ConversationID: strings.TrimSpace(input.ConversationID),
		SubmissionID:   submission.SubmissionID,
		OwnerID:        submission.OwnerID,
		AgentID:        offer.AgentID,
		CreatedAt:      now,
	}
	s.conversations[conversation.ConversationID] = conversation

	return ports.AcceptOutcome{
		Offer:          offer,
		RejectedOffers: rejected,
		Conversation:   conversation,
		Submission:     submission,
	}, nil
}

func (s *Store) RejectOffer(_ context.Context, input ports.RejectOfferInput) (entities.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[strings.TrimSpace(input.OfferID)]
	if !ok || offer.SubmissionID != strings.TrimSpace(input.SubmissionID) {
		return entities.Offer{}, domainerrors.ErrOfferNotFound
	}
	if offer.Status != entities.OfferStatusPending {
		return entities.Offer{}, domainerrors.ErrOfferAlreadyDecided
	}

	now := input.Now.UTC()
	offer.Status = entities.OfferStatusRejected
	offer.DecisionReason = strings.TrimSpace(input.Reason)
	offer.DecidedAt = &now
	s.offers[offer.OfferID] = offer
	return offer, nil
}

func (s *Store) GetConversation(conversationID string) (entities.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.conversations[strings.TrimSpace(conversationID)]
	return item, ok
}

func (s *Store) IsEligibleAgent(_ context.Context, agentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ineligible[strings.TrimSpace(agentID)], nil
}

func (s *Store) CreateForAcceptedOffer(_ context.Context, accepted ports.AcceptedOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CommissionCalls = append(s.CommissionCalls, accepted)
	return nil
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
		return domainerrors.ErrInvalidOfferInput
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.Message.Payload, payload) {
			return domainerrors.ErrInvalidOfferInput
		}
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.EntityID,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAtUTC.UTC(),
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
		return domainerrors.ErrOfferNotFound
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
