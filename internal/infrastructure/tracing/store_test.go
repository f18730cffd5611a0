package tracing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/infrastructure/persistence/memory"
)

type opRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (r *opRecorder) RecordDBOperation(operation string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[operation]++
}

func newTracer(t *testing.T) (trace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("test"), spans
}

func TestTracedStoreRecordsSpans(t *testing.T) {
	ctx := context.Background()
	tracer, spans := newTracer(t)
	rec := &opRecorder{}
	store := TraceStore(memory.NewStore(), tracer, rec)

	uow := store.Begin(ctx)
	require.NoError(t, uow.PutContent(&domain.Content{ID: "c-1", Title: "Loops"}, 0))
	require.NoError(t, uow.Commit(ctx))

	got, err := store.FindContent(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Loops", got.Title)

	_, err = store.FindResource(ctx, "missing")
	require.Error(t, err)

	names := make(map[string]codes.Code)
	for _, s := range spans.Ended() {
		names[s.Name()] = s.Status().Code
	}
	assert.Contains(t, names, "repository.Commit")
	assert.Contains(t, names, "repository.FindContent")
	assert.Equal(t, codes.Unset, names["repository.FindResource"], "not found is not a span error")

	assert.Equal(t, 1, rec.ops["Commit"])
	assert.Equal(t, 1, rec.ops["FindResource"])
}

func TestTracedStoreMarksFailures(t *testing.T) {
	ctx := context.Background()
	tracer, spans := newTracer(t)
	inner := memory.NewStore()
	store := TraceStore(inner, tracer, nil)

	inner.SetError(memory.OpFindContent, errors.New("throttled"))
	_, err := store.FindContent(ctx, "c-1")
	require.Error(t, err)

	var found bool
	for _, s := range spans.Ended() {
		if s.Name() == "repository.FindContent" {
			found = true
			assert.Equal(t, codes.Error, s.Status().Code)
		}
	}
	assert.True(t, found)
}
