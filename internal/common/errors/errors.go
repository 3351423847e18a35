// Package errors provides standardized error handling for the analysis pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// LLM provider errors
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeLLMCallFailed       ErrorCode = "LLM_CALL_FAILED"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeMalformedDecision   ErrorCode = "MALFORMED_DECISION"

	// Context provider errors
	ErrCodeWebSearchFailed  ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodeWebSearchTimeout ErrorCode = "WEB_SEARCH_TIMEOUT"
	ErrCodeRSSFetchFailed   ErrorCode = "RSS_FETCH_FAILED"

	// Budget / persistence errors
	ErrCodeBudgetExceeded     ErrorCode = "BUDGET_EXCEEDED"
	ErrCodeStoreQueryFailed   ErrorCode = "STORE_QUERY_FAILED"
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_FAILED"

	// HTTP layer errors
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewProviderUnavailableError marks a provider that has no credentials or no
// working model; never retried within the process lifetime.
func NewProviderUnavailableError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderUnavailable,
		Message:   fmt.Sprintf("%s not available", provider),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMCallFailedError wraps a single failed generate call; retryable.
func NewLLMCallFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMCallFailed,
		Message:   fmt.Sprintf("%s call failed", provider),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable timeout error for one LLM call.
func NewLLMTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   fmt.Sprintf("%s call timed out", provider),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedDecisionError records an unparseable decision-step response.
// The pipeline treats it as analyze_directly; this error is logged only.
func NewMalformedDecisionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedDecision,
		Message:   "decision response was not valid JSON",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebSearchFailedError creates a retryable web search error.
func NewWebSearchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebSearchFailed,
		Message:   "web search request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRSSFetchFailedError creates a retryable RSS fetch error.
func NewRSSFetchFailedError(feed string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRSSFetchFailed,
		Message:   "RSS feed fetch failed",
		Details:   fmt.Sprintf("feed: %s, error: %s", feed, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBudgetExceededError creates a non-retryable budget gate rejection.
func NewBudgetExceededError(userID string, used, limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeBudgetExceeded,
		Message:   "session token budget exceeded",
		Details:   fmt.Sprintf("user: %s, used: %d, limit: %d", userID, used, limit),
		Retryable: false,
		Metadata: map[string]interface{}{
			"tokens_used": used,
			"token_limit": limit,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreQueryFailedError creates a retryable persistence error.
func NewStoreQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreQueryFailed,
		Message:   "store query failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionError creates a retryable connection error.
func NewDatabaseConnectionError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnection,
		Message:   "database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError marks a missing resource.
func NewNotFoundError(resource string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
