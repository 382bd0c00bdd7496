package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"hearth/contexts/moderation-safety/moderation-service/adapters/memory"
	"hearth/contexts/moderation-safety/moderation-service/domain/entities"
	domainerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
	"hearth/contexts/moderation-safety/moderation-service/ports"
)

func newEngine(store *memory.Store, classifier *memory.Classifier) RuleEngine {
	return RuleEngine{
		Repo:       store,
		Classifier: classifier,
	}
}

func addRule(t *testing.T, store *memory.Store, rule entities.ModerationRule) {
	t.Helper()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if err := store.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("add rule failed: %v", err)
	}
}

func testReview(content string) entities.Review {
	return entities.Review{
		ReviewID: "r-1",
		AuthorID: "author-1",
		Title:    "Visit report",
		Content:  content,
		Rating:   3,
		Status:   entities.ReviewStatusPending,
	}
}

func TestEvaluateKeywordRejects(t *testing.T) {
	store := memory.NewStore()
	engine := newEngine(store, memory.NewClassifier())
	addRule(t, store, entities.ModerationRule{
		RuleID:   "rule-kw",
		Name:     "banned words",
		Type:     entities.RuleTypeKeyword,
		Keywords: []string{"ScAm"},
		Enabled:  true,
	})

	verdict, err := engine.Evaluate(context.Background(), testReview("total SCAM do not buy"), true)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Outcome != VerdictAutoReject {
		t.Fatalf("expected auto reject, got %s", verdict.Outcome)
	}
	if verdict.RuleID != "rule-kw" {
		t.Fatalf("expected firing rule id, got %q", verdict.RuleID)
	}
}

func TestEvaluatePatternRejects(t *testing.T) {
	store := memory.NewStore()
	engine := newEngine(store, memory.NewClassifier())
	addRule(t, store, entities.ModerationRule{
		RuleID:  "rule-re",
		Name:    "phone numbers",
		Type:    entities.RuleTypePattern,
		Pattern: `\d{3}-\d{4}`,
		Enabled: true,
	})

	verdict, err := engine.Evaluate(context.Background(), testReview("call me at 555-1234"), true)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Outcome != VerdictAutoReject {
		t.Fatalf("expected auto reject, got %s", verdict.Outcome)
	}
}

func TestEvaluateDisabledRulesIgnored(t *testing.T) {
	store := memory.NewStore()
	engine := newEngine(store, memory.NewClassifier())
	addRule(t, store, entities.ModerationRule{
		RuleID:   "rule-kw",
		Name:     "banned words",
		Type:     entities.RuleTypeKeyword,
		Keywords: []string{"scam"},
		Enabled:  false,
	})

	verdict, err := engine.Evaluate(context.Background(), testReview("this is a scam"), true)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Outcome != VerdictAutoApprove {
		t.Fatalf("disabled rule must not fire, got %s", verdict.Outcome)
	}
}

func TestEvaluatePriorityOrderDecidesFiringRule(t *testing.T) {
	store := memory.NewStore()
	engine := newEngine(store, memory.NewClassifier())
	base := time.Now().UTC()
	addRule(t, store, entities.ModerationRule{
		RuleID:    "rule-late",
		Name:      "broad match",
		Type:      entities.RuleTypeKeyword,
		Keywords:  []string{"bad"},
		Enabled:   true,
		Priority:  10,
		CreatedAt: base,
	})
	addRule(t, store, entities.ModerationRule{
		RuleID:    "rule-first",
		Name:      "specific match",
		Type:      entities.RuleTypeKeyword,
		Keywords:  []string{"bad"},
		Enabled:   true,
		Priority:  1,
		CreatedAt: base.Add(time.Second),
	})

	verdict, err := engine.Evaluate(context.Background(), testReview("bad experience"), true)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.RuleID != "rule-first" {
		t.Fatalf("expected lowest priority number to fire first, got %q", verdict.RuleID)
	}
}

func TestEvaluateAIThresholdRejects(t *testing.T) {
	store := memory.NewStore()
	classifier := memory.NewClassifier()
	engine := newEngine(store, classifier)
	addRule(t, store, entities.ModerationRule{
		RuleID:      "rule-ai",
		Name:        "toxicity gate",
		Type:        entities.RuleTypeAI,
		AIModel:     "content-screen-v2",
		AIThreshold: 0.7,
		Enabled:     true,
	})
	classifier.ScoreContent("awful", ports.Classification{
		Scores: map[string]float64{"toxicity": 0.9},
	})

	verdict, err := engine.Evaluate(context.Background(), testReview("awful host"), false)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Outcome != VerdictAutoReject {
		t.Fatalf("expected auto reject, got %s", verdict.Outcome)
	}
	if !verdict.AIChecked {
		t.Fatalf("expected ai checked verdict")
	}
}

func TestEvaluateAIContentFlagRejects(t *testing.T) {
	store := memory.NewStore()
	classifier := memory.NewClassifier()
	engine := newEngine(store, classifier)
	addRule(t, store, entities.ModerationRule{
		RuleID:      "rule-ai",
		Name:        "toxicity gate",
		Type:        entities.RuleTypeAI,
		AIModel:     "content-screen-v2",
		AIThreshold: 0.99,
		Enabled:     true,
	})
	classifier.ScoreContent("pii", ports.Classification{
		Scores: map[string]float64{"toxicity": 0.1},
		Flags:  map[string]bool{"contains_pii": true},
	})

	verdict, err := engine.Evaluate(context.Background(), testReview("pii heavy content"), false)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Outcome != VerdictAutoReject {
		t.Fatalf("content flag must reject regardless of threshold, got %s", verdict.Outcome)
	}
}

func TestEvaluateCleanContentWithAIApproves(t *testing.T) {
	store := memory.NewStore()
	engine := newEngine(store, memory.NewClassifier())
	addRule(t, store, entities.ModerationRule{
		RuleID:      "rule-ai",
		Name:        "toxicity gate",
		Type:        entities.RuleTypeAI,
		AIModel:     "content-screen-v2",
		AIThreshold: 0.7,
		Enabled:     true,
	})

	verdict, err := engine.Evaluate(context.Background(), testReview("lovely place"), false)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Outcome != VerdictAutoApprove {
		t.Fatalf("expected auto approve, got %s", verdict.Outcome)
	}
	if !verdict.AIChecked {
		t.Fatalf("expected ai checked verdict")
	}
}

func TestEvaluateNoAICheckRoutesToHuman(t *testing.T) {
	store := memory.NewStore()
	engine := newEngine(store, memory.NewClassifier())

	// No rules at all: nothing fired but no ai check ran either.
	verdict, err := engine.Evaluate(context.Background(), testReview("lovely place"), false)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Outcome != VerdictNeedsHuman {
		t.Fatalf("expected needs human without ai check, got %s", verdict.Outcome)
	}
}

func TestEvaluateExplicitSkipApproves(t *testing.T) {
	store := memory.NewStore()
	engine := newEngine(store, memory.NewClassifier())
	addRule(t, store, entities.ModerationRule{
		RuleID:      "rule-ai",
		Name:        "toxicity gate",
		Type:        entities.RuleTypeAI,
		AIModel:     "content-screen-v2",
		AIThreshold: 0.7,
		Enabled:     true,
	})

	verdict, err := engine.Evaluate(context.Background(), testReview("lovely place"), true)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Outcome != VerdictAutoApprove {
		t.Fatalf("explicit skip must approve directly, got %s", verdict.Outcome)
	}
	if verdict.AIChecked {
		t.Fatalf("skip must not run the classifier")
	}
}

func TestEvaluateClassifierErrorPropagates(t *testing.T) {
	store := memory.NewStore()
	classifier := memory.NewClassifier()
	engine := newEngine(store, classifier)
	addRule(t, store, entities.ModerationRule{
		RuleID:      "rule-ai",
		Name:        "toxicity gate",
		Type:        entities.RuleTypeAI,
		AIModel:     "content-screen-v2",
		AIThreshold: 0.7,
		Enabled:     true,
	})
	classifier.FailContent("anything", errors.New("upstream 503"))

	_, err := engine.Evaluate(context.Background(), testReview("anything goes"), false)
	if !errors.Is(err, domainerrors.ErrClassifierUnavailable) {
		t.Fatalf("expected classifier unavailable, got %v", err)
	}
}
