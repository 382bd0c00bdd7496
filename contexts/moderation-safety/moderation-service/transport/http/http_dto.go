package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SubmitReviewRequest struct {
	AuthorID  string `json:"author_id"`
	ListingID string `json:"listing_id"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Rating    int    `json:"rating"`
}

type ReviewDTO struct {
	ReviewID    string `json:"review_id"`
	AuthorID    string `json:"author_id"`
	ListingID   string `json:"listing_id"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	Rating      int    `json:"rating"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	ModeratedAt string `json:"moderated_at,omitempty"`
}

type ReviewResponse struct {
	Status string    `json:"status"`
	Data   ReviewDTO `json:"data"`
}

type ReviewListResponse struct {
	Status string      `json:"status"`
	Data   []ReviewDTO `json:"data"`
}

type FlagReviewRequest struct {
	ReporterID string `json:"reporter_id"`
	Reason     string `json:"reason"`
}

type FlagDTO struct {
	FlagID     string `json:"flag_id"`
	ReviewID   string `json:"review_id"`
	ReporterID string `json:"reporter_id"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

type FlagResponse struct {
	Status string  `json:"status"`
	Data   FlagDTO `json:"data"`
}

type BulkDecisionRequest struct {
	ReviewID string `json:"review_id"`
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
	Note     string `json:"note,omitempty"`
}

type BulkModerateRequest struct {
	Decisions   []BulkDecisionRequest `json:"decisions"`
	SkipAICheck bool                  `json:"skip_ai_check,omitempty"`
}

type BulkItemDTO struct {
	ReviewID string             `json:"review_id"`
	Action   string             `json:"action"`
	Outcome  string             `json:"outcome"`
	Detail   string             `json:"detail,omitempty"`
	Scores   map[string]float64 `json:"scores,omitempty"`
}

type BulkSummaryResponse struct {
	Status string `json:"status"`
	Data   struct {
		Succeeded int           `json:"succeeded"`
		Failed    int           `json:"failed"`
		Skipped   int           `json:"skipped"`
		Items     []BulkItemDTO `json:"items"`
	} `json:"data"`
}

type CreateRuleRequest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Keywords    []string `json:"keywords,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	AIModel     string   `json:"ai_model,omitempty"`
	AIThreshold float64  `json:"ai_threshold,omitempty"`
	Enabled     bool     `json:"enabled"`
	Priority    int      `json:"priority"`
}

type UpdateRuleRequest struct {
	Name        *string  `json:"name,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Pattern     *string  `json:"pattern,omitempty"`
	AIModel     *string  `json:"ai_model,omitempty"`
	AIThreshold *float64 `json:"ai_threshold,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
}

type RuleDTO struct {
	RuleID      string   `json:"rule_id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Keywords    []string `json:"keywords,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	AIModel     string   `json:"ai_model,omitempty"`
	AIThreshold float64  `json:"ai_threshold,omitempty"`
	Enabled     bool     `json:"enabled"`
	Priority    int      `json:"priority"`
	CreatedAt   string   `json:"created_at"`
}

type RuleResponse struct {
	Status string  `json:"status"`
	Data   RuleDTO `json:"data"`
}

type RuleListResponse struct {
	Status string    `json:"status"`
	Data   []RuleDTO `json:"data"`
}
