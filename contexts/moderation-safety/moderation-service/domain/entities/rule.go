package entities

import (
	"regexp"
	"strings"
	"time"

	domainerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
)

type RuleType string

const (
	RuleTypeKeyword RuleType = "keyword"
	RuleTypePattern RuleType = "pattern"
	RuleTypeAI      RuleType = "ai"
)

// ModerationRule is a configurable check applied to reviews. Rules are
// evaluated in priority order; lower numbers run first.
type ModerationRule struct {
	RuleID      string
	Name        string
	Type        RuleType
	Keywords    []string
	Pattern     string
	AIModel     string
	AIThreshold float64
	Enabled     bool
	Priority    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate enforces the per-type configuration preconditions.
func (r ModerationRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domainerrors.ErrInvalidRuleConfig
	}
	switch r.Type {
	case RuleTypeKeyword:
		if len(nonEmptyKeywords(r.Keywords)) == 0 {
			return domainerrors.ErrInvalidRuleConfig
		}
	case RuleTypePattern:
		if strings.TrimSpace(r.Pattern) == "" {
			return domainerrors.ErrInvalidRuleConfig
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return domainerrors.ErrInvalidRuleConfig
		}
	case RuleTypeAI:
		if strings.TrimSpace(r.AIModel) == "" {
			return domainerrors.ErrInvalidRuleConfig
		}
		if r.AIThreshold <= 0 || r.AIThreshold > 1 {
			return domainerrors.ErrInvalidRuleConfig
		}
	default:
		return domainerrors.ErrInvalidRuleConfig
	}
	return nil
}

func nonEmptyKeywords(keywords []string) []string {
	cleaned := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if strings.TrimSpace(keyword) != "" {
			cleaned = append(cleaned, strings.TrimSpace(keyword))
		}
	}
	return cleaned
}
