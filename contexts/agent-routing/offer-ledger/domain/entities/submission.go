package entities

import (
	"strings"
	"time"
)

type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusAssigned SubmissionStatus = "assigned"
	SubmissionStatusClosed   SubmissionStatus = "closed"
)

// Submission is a listing pending agent assignment. Mutated only by the
// offer ledger on acceptance; immutable once closed.
type Submission struct {
	SubmissionID    string
	OwnerID         string
	Title           string
	Details         map[string]any
	ListingPrice    float64
	Status          SubmissionStatus
	AssignedAgentID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s Submission) ValidateCreate() bool {
	return strings.TrimSpace(s.OwnerID) != "" &&
		strings.TrimSpace(s.Title) != "" &&
		s.ListingPrice > 0
}

// Conversation is the owner/agent thread opened when an offer is accepted.
type Conversation struct {
	ConversationID string
	SubmissionID   string
	OwnerID        string
	AgentID        string
	CreatedAt      time.Time
}
