package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FailureRecorder counts failed generation calls.
type FailureRecorder interface {
	RecordUpstreamFailure()
}

// Service classifies provider outcomes for the generation services.
type Service struct {
	provider Provider
	logger   *zap.Logger
	recorder FailureRecorder
	timeout  time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTimeout bounds each provider call. A call that runs out of time is
// an upstream failure, not a cancellation.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// NewService creates a new LLM service with the specified provider.
// recorder may be nil.
func NewService(provider Provider, logger *zap.Logger, recorder FailureRecorder, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		provider: provider,
		logger:   logger.Named("llm"),
		recorder: recorder,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAvailable returns true if the LLM service is available
func (s *Service) IsAvailable() bool {
	return s.provider != nil && s.provider.IsAvailable()
}

// Generate returns the model's text for prompt.
//
// If ctx ends before the response arrives, ctx.Err() is returned unwrapped
// so callers can tell an abandoned request from a failed one. Any other
// failure, including an empty response, wraps ErrUpstreamUnavailable.
func (s *Service) Generate(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.IsAvailable() {
		s.fail("provider not available", nil)
		return "", ErrUpstreamUnavailable
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.provider.Complete(callCtx, prompt, options)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		s.fail("completion failed", err)
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		s.fail("empty completion", nil)
		return "", fmt.Errorf("%w: empty response", ErrUpstreamUnavailable)
	}
	return text, nil
}

func (s *Service) fail(msg string, err error) {
	s.logger.Warn(msg, zap.Error(err))
	if s.recorder != nil {
		s.recorder.RecordUpstreamFailure()
	}
}
