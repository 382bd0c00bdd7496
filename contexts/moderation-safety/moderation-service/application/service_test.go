package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"hearth/contexts/moderation-safety/moderation-service/adapters/memory"
	"hearth/contexts/moderation-safety/moderation-service/domain/entities"
	domainerrors "hearth/contexts/moderation-safety/moderation-service/domain/errors"
	"hearth/contexts/moderation-safety/moderation-service/ports"
)

func newService(store *memory.Store, classifier *memory.Classifier) Service {
	return Service{
		Repo: store,
		Rules: RuleEngine{
			Repo:       store,
			Classifier: classifier,
		},
		Moderators:    store,
		Notifications: store,
		Idempotency:   store,
		Clock:         store,
		IDGen:         store,
	}
}

func seedReview(t *testing.T, svc Service, authorID string, content string) entities.Review {
	t.Helper()
	review, err := svc.SubmitReview(context.Background(), ports.SubmitReviewInput{
		AuthorID:  authorID,
		ListingID: "listing-1",
		Title:     "Great stay",
		Content:   content,
		Rating:    4,
	})
	if err != nil {
		t.Fatalf("seed review failed: %v", err)
	}
	return review
}

func TestBulkModeratePartialFailure(t *testing.T) {
	store := memory.NewStore()
	classifier := memory.NewClassifier()
	svc := newService(store, classifier)

	if _, err := svc.CreateRule(context.Background(), ports.CreateRuleInput{
		ModeratorID: "mod-1",
		Name:        "toxicity gate",
		Type:        "ai",
		AIModel:     "content-screen-v2",
		AIThreshold: 0.9,
		Enabled:     true,
	}); err != nil {
		t.Fatalf("seed rule failed: %v", err)
	}

	decisions := make([]ports.BulkDecision, 0, 10)
	for i := 0; i < 10; i++ {
		review := seedReview(t, svc, fmt.Sprintf("author-%d", i), fmt.Sprintf("perfectly fine stay number %d", i))
		decisions = append(decisions, ports.BulkDecision{
			ReviewID: review.ReviewID,
			Action:   ports.BulkActionApprove,
		})
	}
	// One review's content makes the classifier blow up.
	classifier.FailContent("stay number 7", errors.New("classifier timeout"))

	summary, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   decisions,
	})
	if err != nil {
		t.Fatalf("bulk moderate failed: %v", err)
	}
	if summary.Succeeded != 9 || summary.Failed != 1 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, item := range summary.Items {
		if item.Outcome == ports.BulkItemFailed && item.Detail == "" {
			t.Fatalf("failed item must carry a detail")
		}
	}
}

func TestBulkModerateSkipsAlreadyModerated(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	review := seedReview(t, svc, "author-1", "all good")

	first, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionReject, Reason: "spam"}},
	})
	if err != nil {
		t.Fatalf("first bulk failed: %v", err)
	}
	if first.Succeeded != 1 {
		t.Fatalf("expected first decision to succeed: %+v", first)
	}

	second, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionApprove}},
	})
	if err != nil {
		t.Fatalf("second bulk failed: %v", err)
	}
	if second.Skipped != 1 {
		t.Fatalf("expected already-moderated skip: %+v", second)
	}
	if second.Items[0].Detail != "Already moderated" {
		t.Fatalf("unexpected skip detail: %q", second.Items[0].Detail)
	}
}

func TestBulkModerateFailedAICheckSkips(t *testing.T) {
	store := memory.NewStore()
	classifier := memory.NewClassifier()
	svc := newService(store, classifier)

	if _, err := svc.CreateRule(context.Background(), ports.CreateRuleInput{
		ModeratorID: "mod-1",
		Name:        "toxicity gate",
		Type:        "ai",
		AIModel:     "content-screen-v2",
		AIThreshold: 0.8,
		Enabled:     true,
	}); err != nil {
		t.Fatalf("seed rule failed: %v", err)
	}

	review := seedReview(t, svc, "author-1", "this place is a scam honestly")
	classifier.ScoreContent("scam", ports.Classification{
		Scores: map[string]float64{"toxicity": 0.3, "spam": 0.95, "fake": 0.4},
	})

	summary, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionApprove}},
	})
	if err != nil {
		t.Fatalf("bulk failed: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected ai-check skip: %+v", summary)
	}
	item := summary.Items[0]
	if item.Detail != "Failed AI check" {
		t.Fatalf("unexpected detail: %q", item.Detail)
	}
	if item.Scores["spam"] != 0.95 {
		t.Fatalf("expected classifier scores attached, got %+v", item.Scores)
	}

	// The review status is untouched by a failed AI check.
	current, err := svc.GetReview(context.Background(), review.ReviewID)
	if err != nil {
		t.Fatalf("get review failed: %v", err)
	}
	if current.Status != entities.ReviewStatusPending {
		t.Fatalf("expected pending after skip, got %s", current.Status)
	}
}

func TestBulkModerateKeywordRuleBlocksApprove(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())

	if _, err := svc.CreateRule(context.Background(), ports.CreateRuleInput{
		ModeratorID: "mod-1",
		Name:        "banned words",
		Type:        "keyword",
		Keywords:    []string{"scam"},
		Enabled:     true,
	}); err != nil {
		t.Fatalf("seed rule failed: %v", err)
	}
	review := seedReview(t, svc, "author-1", "this listing is a scam")

	summary, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionApprove}},
	})
	if err != nil {
		t.Fatalf("bulk failed: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected keyword rule to block approval: %+v", summary)
	}
	if summary.Items[0].Detail != "Blocked by moderation rule" {
		t.Fatalf("unexpected detail: %q", summary.Items[0].Detail)
	}

	current, err := svc.GetReview(context.Background(), review.ReviewID)
	if err != nil {
		t.Fatalf("get review failed: %v", err)
	}
	if current.Status != entities.ReviewStatusPending {
		t.Fatalf("expected pending after block, got %s", current.Status)
	}
}

func TestBulkModerateSkipAIBypassesClassifier(t *testing.T) {
	store := memory.NewStore()
	classifier := memory.NewClassifier()
	svc := newService(store, classifier)

	if _, err := svc.CreateRule(context.Background(), ports.CreateRuleInput{
		ModeratorID: "mod-1",
		Name:        "toxicity gate",
		Type:        "ai",
		AIModel:     "content-screen-v2",
		AIThreshold: 0.8,
		Enabled:     true,
	}); err != nil {
		t.Fatalf("seed rule failed: %v", err)
	}
	review := seedReview(t, svc, "author-1", "nice place")

	summary, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionApprove}},
		SkipAICheck: true,
	})
	if err != nil {
		t.Fatalf("bulk failed: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected success with skip: %+v", summary)
	}
	if classifier.Calls != 0 {
		t.Fatalf("classifier must not run when skipped, got %d calls", classifier.Calls)
	}
}

func TestBulkModerateRejectNotifiesAuthor(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	review := seedReview(t, svc, "author-1", "bad content")

	if _, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionReject, Reason: "off topic"}},
	}); err != nil {
		t.Fatalf("bulk failed: %v", err)
	}

	if len(store.Published) != 1 {
		t.Fatalf("expected one notification, got %d", len(store.Published))
	}
	event := store.Published[0]
	if event.EventType != "review-rejected" || event.RecipientID != "author-1" {
		t.Fatalf("unexpected notification: %+v", event)
	}
}

func TestBulkModerateWritesBatchSummaryLog(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	review := seedReview(t, svc, "author-1", "ok")

	if _, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionReject, Reason: "spam"}},
	}); err != nil {
		t.Fatalf("bulk failed: %v", err)
	}

	var summaryRows int
	for _, log := range store.Logs() {
		if log.ReviewID == "" && log.Action == "bulk_moderate" {
			summaryRows++
		}
	}
	if summaryRows != 1 {
		t.Fatalf("expected one batch summary log row, got %d", summaryRows)
	}
}

func TestBulkModerateIdempotentReplay(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	review := seedReview(t, svc, "author-1", "fine")

	cmd := ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionReject, Reason: "spam"}},
	}
	first, err := svc.BulkModerate(context.Background(), "batch-key-1", cmd)
	if err != nil {
		t.Fatalf("first bulk failed: %v", err)
	}
	replay, err := svc.BulkModerate(context.Background(), "batch-key-1", cmd)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replay.Succeeded != first.Succeeded || replay.Skipped != 0 {
		t.Fatalf("expected cached summary on replay, got %+v", replay)
	}
}

func TestBulkModerateForbiddenModerator(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	store.DenyModerator("intruder")

	_, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "intruder",
		Decisions:   []ports.BulkDecision{{ReviewID: "r-1", Action: ports.BulkActionApprove}},
	})
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestBulkModerateResolvesOpenFlags(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	review := seedReview(t, svc, "author-1", "questionable")

	if _, err := svc.FlagReview(context.Background(), review.ReviewID, "reporter-1", "sounds fake"); err != nil {
		t.Fatalf("flag failed: %v", err)
	}
	if _, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionReject, Reason: "fake review"}},
	}); err != nil {
		t.Fatalf("bulk failed: %v", err)
	}

	flags := store.FlagsByReview(review.ReviewID)
	if len(flags) != 1 {
		t.Fatalf("expected one flag, got %d", len(flags))
	}
	if flags[0].Status != entities.FlagStatusResolved {
		t.Fatalf("expected resolved flag, got %s", flags[0].Status)
	}
	if flags[0].ResolvedAt == nil {
		t.Fatalf("expected resolved timestamp")
	}
}

func TestFlagReviewDuplicateReporter(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	review := seedReview(t, svc, "author-1", "meh")

	if _, err := svc.FlagReview(context.Background(), review.ReviewID, "reporter-1", "spam"); err != nil {
		t.Fatalf("first flag failed: %v", err)
	}
	_, err := svc.FlagReview(context.Background(), review.ReviewID, "reporter-1", "spam again")
	if !errors.Is(err, domainerrors.ErrAlreadyFlagged) {
		t.Fatalf("expected already flagged, got %v", err)
	}
}

func TestFlagReviewMovesApprovedBackToQueue(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	review := seedReview(t, svc, "author-1", "seems ok")

	if _, err := svc.BulkModerate(context.Background(), "", ports.BulkModerateCommand{
		ModeratorID: "mod-1",
		Decisions:   []ports.BulkDecision{{ReviewID: review.ReviewID, Action: ports.BulkActionApprove}},
		SkipAICheck: true,
	}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if _, err := svc.FlagReview(context.Background(), review.ReviewID, "reporter-1", "actually fake"); err != nil {
		t.Fatalf("flag failed: %v", err)
	}
	current, err := svc.GetReview(context.Background(), review.ReviewID)
	if err != nil {
		t.Fatalf("get review failed: %v", err)
	}
	if current.Status != entities.ReviewStatusFlagged {
		t.Fatalf("expected flagged status, got %s", current.Status)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())

	cases := []struct {
		name  string
		input ports.CreateRuleInput
	}{
		{"keyword without keywords", ports.CreateRuleInput{
			ModeratorID: "mod-1", Name: "kw", Type: "keyword",
		}},
		{"pattern without pattern", ports.CreateRuleInput{
			ModeratorID: "mod-1", Name: "re", Type: "pattern",
		}},
		{"pattern with broken regex", ports.CreateRuleInput{
			ModeratorID: "mod-1", Name: "re", Type: "pattern", Pattern: "([unclosed",
		}},
		{"ai without model", ports.CreateRuleInput{
			ModeratorID: "mod-1", Name: "ai", Type: "ai", AIThreshold: 0.5,
		}},
		{"ai with threshold out of range", ports.CreateRuleInput{
			ModeratorID: "mod-1", Name: "ai", Type: "ai", AIModel: "m", AIThreshold: 1.5,
		}},
		{"unknown type", ports.CreateRuleInput{
			ModeratorID: "mod-1", Name: "x", Type: "fuzzy",
		}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateRule(context.Background(), tc.input); !errors.Is(err, domainerrors.ErrInvalidRuleConfig) {
			t.Fatalf("%s: expected invalid rule config, got %v", tc.name, err)
		}
	}
}

func TestUpdateRuleKeepsConfigValid(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())

	rule, err := svc.CreateRule(context.Background(), ports.CreateRuleInput{
		ModeratorID: "mod-1",
		Name:        "banned words",
		Type:        "keyword",
		Keywords:    []string{"scam"},
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("create rule failed: %v", err)
	}

	_, err = svc.UpdateRule(context.Background(), ports.UpdateRuleInput{
		ModeratorID: "mod-1",
		RuleID:      rule.RuleID,
		Keywords:    []string{"  "},
	})
	if !errors.Is(err, domainerrors.ErrInvalidRuleConfig) {
		t.Fatalf("expected invalid rule config on empty keywords, got %v", err)
	}
}

func TestRuleCRUDForbiddenForNonModerator(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, memory.NewClassifier())
	store.DenyModerator("user-1")

	_, err := svc.CreateRule(context.Background(), ports.CreateRuleInput{
		ModeratorID: "user-1",
		Name:        "kw",
		Type:        "keyword",
		Keywords:    []string{"spam"},
	})
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.DeleteRule(context.Background(), "user-1", "rule-1"); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
}
