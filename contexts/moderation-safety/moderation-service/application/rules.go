package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"hearth/contexts/moderation-safety/moderation-service/domain/entities"
	domainerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
	"hearth/contexts/moderation-safety/moderation-service/ports"
)

const defaultClassifierTimeout = 5 * time.Second

const (
	VerdictAutoApprove = "auto_approve"
	VerdictAutoReject  = "auto_reject"
	VerdictNeedsHuman  = "needs_human"
)

// Verdict is the rule engine's conclusion for one review.
type Verdict struct {
	Outcome   string
	Reason    string
	RuleID    string
	AIChecked bool
	Scores    map[string]float64
}

// RuleEngine evaluates the configured moderation rules against a review. It
// never mutates the review; callers decide what to do with the verdict.
type RuleEngine struct {
	Repo              ports.Repository
	Classifier        ports.ContentClassifier
	ClassifierTimeout time.Duration
	Logger            *slog.Logger
}

// Evaluate runs enabled rules in priority order. The first rule that fires
// decides the verdict. When no rule fires the review auto-approves only if an
// AI check ran and passed, or the check was explicitly skipped.
func (e RuleEngine) Evaluate(ctx context.Context, review entities.Review, skipAI bool) (Verdict, error) {
	rules, err := e.Repo.ListRules(ctx, true)
	if err != nil {
		return Verdict{}, err
	}
	sortRules(rules)

	verdict := Verdict{Outcome: VerdictAutoApprove, Reason: "no rule matched"}
	content := review.Title + " " + review.Content
	ranAI := false

	for _, rule := range rules {
		switch rule.Type {
		case entities.RuleTypeKeyword:
			if keyword, ok := matchKeyword(rule, content); ok {
				return Verdict{
					Outcome: VerdictAutoReject,
					Reason:  fmt.Sprintf("matched keyword %q", keyword),
					RuleID:  rule.RuleID,
				}, nil
			}
		case entities.RuleTypePattern:
			matched, err := matchPattern(rule, content)
			if err != nil {
				ResolveLogger(e.Logger).Warn("stored pattern rule no longer compiles",
					"event", "moderation_rule_pattern_invalid",
					"module", "moderation-safety/moderation-service",
					"layer", "application",
					"rule_id", rule.RuleID,
					"error", err.Error(),
				)
				continue
			}
			if matched {
				return Verdict{
					Outcome: VerdictAutoReject,
					Reason:  "matched content pattern",
					RuleID:  rule.RuleID,
				}, nil
			}
		case entities.RuleTypeAI:
			if skipAI {
				continue
			}
			classification, err := e.classify(ctx, rule.AIModel, content)
			if err != nil {
				return Verdict{}, domainerrors.ErrClassifierUnavailable
			}
			ranAI = true
			if reason, ok := aiRejects(rule, classification); ok {
				return Verdict{
					Outcome:   VerdictAutoReject,
					Reason:    reason,
					RuleID:    rule.RuleID,
					AIChecked: true,
					Scores:    classification.Scores,
				}, nil
			}
			verdict.Scores = classification.Scores
		}
	}

	// Approval without an AI check is only allowed when the check was skipped
	// on purpose. A configuration with no ai rule still routes to a human.
	verdict.AIChecked = ranAI
	if verdict.Outcome == VerdictAutoApprove && !ranAI && !skipAI {
		verdict.Outcome = VerdictNeedsHuman
		verdict.Reason = "no ai check was performed"
	}
	return verdict, nil
}

func (e RuleEngine) classify(ctx context.Context, model string, content string) (ports.Classification, error) {
	if e.Classifier == nil {
		return ports.Classification{}, domainerrors.ErrClassifierUnavailable
	}
	timeout := e.ClassifierTimeout
	if timeout <= 0 {
		timeout = defaultClassifierTimeout
	}
	classifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Classifier.Classify(classifyCtx, model, content)
}

// sortRules orders by priority, then creation time, then ID so evaluation is
// deterministic even for rules created in the same instant.
func sortRules(rules []entities.ModerationRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].RuleID < rules[j].RuleID
	})
}

func matchKeyword(rule entities.ModerationRule, content string) (string, bool) {
	lowered := strings.ToLower(content)
	for _, keyword := range rule.Keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return keyword, true
		}
	}
	return "", false
}

func matchPattern(rule entities.ModerationRule, content string) (bool, error) {
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(content), nil
}

func aiRejects(rule entities.ModerationRule, classification ports.Classification) (string, bool) {
	for _, dimension := range []string{"toxicity", "spam", "fake"} {
		if score, ok := classification.Scores[dimension]; ok && score > rule.AIThreshold {
			return fmt.Sprintf("%s score %.2f exceeds threshold %.2f", dimension, score, rule.AIThreshold), true
		}
	}
	for flag, raised := range classification.Flags {
		if raised {
			return fmt.Sprintf("classifier raised %s flag", flag), true
		}
	}
	return "", false
}
