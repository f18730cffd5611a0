// Package llm provides the text generation capability the recovery
// pipeline consumes. Backends implement Provider; Service adds failure
// classification on top.
package llm

import (
	"context"
	"errors"
)

// Provider defines the interface for text generation backends (Gemini, mock, etc.)
type Provider interface {
	Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error)
	IsAvailable() bool
}

// CompletionOptions configures LLM completion requests
type CompletionOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Format      string  `json:"format"` // "json" or "text"
}

// ErrUpstreamUnavailable is returned when the generation call failed or
// produced no text.
var ErrUpstreamUnavailable = errors.New("text generation unavailable")
