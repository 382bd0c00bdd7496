package entities

import (
	"strings"
	"time"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusFlagged  ReviewStatus = "flagged"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

type Review struct {
	ReviewID    string
	AuthorID    string
	ListingID   string
	Title       string
	Content     string
	Rating      int
	Status      ReviewStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ModeratedAt *time.Time
}

func (r Review) ValidateCreate() bool {
	if strings.TrimSpace(r.AuthorID) == "" || strings.TrimSpace(r.ListingID) == "" {
		return false
	}
	if strings.TrimSpace(r.Content) == "" {
		return false
	}
	if r.Rating < 1 || r.Rating > 5 {
		return false
	}
	return true
}

// IsModeratable reports whether a moderator decision may still be applied.
func (r Review) IsModeratable() bool {
	return r.Status == ReviewStatusPending || r.Status == ReviewStatusFlagged
}

type FlagStatus string

const (
	FlagStatusOpen     FlagStatus = "open"
	FlagStatusResolved FlagStatus = "resolved"
)

type ReviewFlag struct {
	FlagID     string
	ReviewID   string
	ReporterID string
	Reason     string
	Status     FlagStatus
	Resolution string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// ModerationLog is an append-only audit record. Batch summary rows carry an
// empty ReviewID.
type ModerationLog struct {
	LogID       string
	ReviewID    string
	ModeratorID string
	Action      string
	Reason      string
	Notes       string
	CreatedAt   time.Time
}
