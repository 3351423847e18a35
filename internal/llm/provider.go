// Package llm holds the provider abstraction over hosted LLM vendors and the
// tolerant parser for the decision-step output.
package llm

import (
	"context"
	"errors"
)

// Provider identity strings as stored in query records.
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

var (
	ErrProviderUnavailable = errors.New("PROVIDER_UNAVAILABLE")
	ErrCallFailed          = errors.New("LLM_CALL_FAILED")
	ErrTimeout             = errors.New("LLM_TIMEOUT")
)

// GenerateResult is the uniform output of one generate call.
type GenerateResult struct {
	Text       string
	TokensUsed int
	Model      string
}

// Provider is the uniform capability exposed to the orchestrator. Bindings
// with no API key report Available() == false and short-circuit Generate
// with ErrProviderUnavailable, never touching the network.
type Provider interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, prompt string, maxTokens int) (*GenerateResult, error)
}

// FirstAvailable returns the first available provider in preference order,
// or nil when none is usable.
func FirstAvailable(providers ...Provider) Provider {
	for _, p := range providers {
		if p != nil && p.Available() {
			return p
		}
	}
	return nil
}
