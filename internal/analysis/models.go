package analysis

import "property-intelligence/internal/location"

// Request is one inbound analysis call. UserID defaults to "anonymous".
type Request struct {
	Question       string `json:"question"`
	UserID         string `json:"user_id"`
	IncludeDetails bool   `json:"include_details"`
}

// Result is the pipeline's output contract. It is constructed once per
// request and immutable afterwards; the HTTP layer persists it.
type Result struct {
	Success          bool           `json:"success"`
	FinalAnswer      string         `json:"final_answer"`
	Confidence       float64        `json:"confidence"`
	QuestionType     string         `json:"question_type"`
	LLMProvider      string         `json:"llm_provider"`
	TokenUsage       int            `json:"token_usage"`
	ProcessingTime   float64        `json:"processing_time"`
	LocationDetected location.Scope `json:"location_detected"`
	BudgetExceeded   bool           `json:"budget_exceeded,omitempty"`
	SearchPerformed  bool           `json:"search_performed"`
	RequestID        string         `json:"request_id"`
}

const (
	QuestionTypePreset = "preset"
	QuestionTypeCustom = "custom"
)

// ProviderFallback attributes answers produced by the static narrative
// templates when no LLM is available.
const ProviderFallback = "fallback"

// Confidence heuristics. These are hand-picked constants, not calibrated
// probabilities; the provider APIs expose no real confidence signal.
const (
	confidenceFull     = 0.90
	confidenceDegraded = 0.85
)
