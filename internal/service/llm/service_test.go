package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failureCounter struct{ n int }

func (f *failureCounter) RecordUpstreamFailure() { f.n++ }

func TestGenerate(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(m *MockProvider)
		wantText    string
		wantErr     error
		wantFailure bool
	}{
		{
			name:     "matched marker",
			setup:    func(m *MockProvider) { m.SetResponse("hello", "world") },
			wantText: "world",
		},
		{
			name:        "provider error",
			setup:       func(m *MockProvider) { m.SetError(errors.New("quota exceeded")) },
			wantErr:     ErrUpstreamUnavailable,
			wantFailure: true,
		},
		{
			name:        "empty text",
			setup:       func(m *MockProvider) { m.SetFallback("   ") },
			wantErr:     ErrUpstreamUnavailable,
			wantFailure: true,
		},
		{
			name:        "provider unavailable",
			setup:       func(m *MockProvider) { m.SetAvailable(false) },
			wantErr:     ErrUpstreamUnavailable,
			wantFailure: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockProvider{available: true}
			tt.setup(mock)
			counter := &failureCounter{}
			svc := NewService(mock, zaptest.NewLogger(t), counter)

			text, err := svc.Generate(context.Background(), "say hello", CompletionOptions{})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantText, text)
			}
			assert.Equal(t, tt.wantFailure, counter.n == 1)
		})
	}
}

func TestGenerateCancelledIsNotUpstreamFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	counter := &failureCounter{}
	svc := NewService(NewMockProvider(), nil, counter)

	_, err := svc.Generate(ctx, "Syllabus analysis", CompletionOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Zero(t, counter.n)
}

func TestMockProviderMatchesMarkersInOrder(t *testing.T) {
	m := NewMockProvider()
	m.SetResponse("Slide deck", "custom slides")

	text, err := m.Complete(context.Background(), "Build a Slide deck about Go", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "custom slides", text)
	assert.Equal(t, 1, m.Calls())
	assert.Equal(t, []string{"Build a Slide deck about Go"}, m.Prompts())
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	mock := &MockProvider{available: true}
	mock.SetError(errors.New("boom"))

	config := DefaultBreakerConfig("test")
	config.MinRequests = 2
	config.FailureThreshold = 0.5
	config.Timeout = time.Hour
	b := NewBreakerProvider(mock, config, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_, err := b.Complete(context.Background(), "p", CompletionOptions{})
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.False(t, b.IsAvailable())

	_, err := b.Complete(context.Background(), "p", CompletionOptions{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, mock.Calls(), "open breaker must not reach the provider")
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	mock := &MockProvider{available: true}
	config := DefaultBreakerConfig("test")
	config.MinRequests = 1
	config.FailureThreshold = 0.1
	b := NewBreakerProvider(mock, config, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Complete(ctx, "p", CompletionOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

type slowProvider struct{}

func (slowProvider) Complete(ctx context.Context, _ string, _ CompletionOptions) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowProvider) IsAvailable() bool { return true }

func TestGenerateTimeoutIsUpstreamFailure(t *testing.T) {
	counter := &failureCounter{}
	svc := NewService(slowProvider{}, zaptest.NewLogger(t), counter, WithTimeout(10*time.Millisecond))

	_, err := svc.Generate(context.Background(), "anything", CompletionOptions{})
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 1, counter.n)
}
