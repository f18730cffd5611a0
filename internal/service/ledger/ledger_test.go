package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/infrastructure/persistence/memory"
	"coursecraft-backend/internal/repository"
	appErrors "coursecraft-backend/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingRecorder struct {
	mu        sync.Mutex
	versions  int
	conflicts int
}

func (r *countingRecorder) RecordVersionCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions++
}

func (r *countingRecorder) RecordConflict(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

type eventSink struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (s *eventSink) Publish(_ context.Context, events ...domain.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func str(s string) *string { return &s }

func newLedger(t *testing.T) (*Ledger, *memory.Store, *countingRecorder, *eventSink) {
	t.Helper()
	store := memory.NewStore()
	rec := &countingRecorder{}
	sink := &eventSink{}
	l := New(store, repository.RetryConfig{MaxAttempts: 3}, zaptest.NewLogger(t),
		WithRecorder(rec),
		WithPublisher(sink),
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }),
	)
	return l, store, rec, sink
}

func createContent(t *testing.T, l *Ledger, id string) *domain.Content {
	t.Helper()
	c, err := l.CreateContent(context.Background(), NewContent{ID: id, Title: "Loops", Description: "for and range"})
	require.NoError(t, err)
	return c
}

func TestCreateVersionNumbersAreSequential(t *testing.T) {
	l, _, rec, sink := newLedger(t)
	ctx := context.Background()
	createContent(t, l, "c-1")

	const k = 5
	for i := 1; i <= k; i++ {
		v, err := l.CreateVersion(ctx, "c-1", "editor-1", ContentUpdates{Title: str(fmt.Sprintf("Loops v%d", i))}, nil)
		require.NoError(t, err)
		assert.Equal(t, i, v.Number)

		content, err := l.GetContent(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, i, content.CurrentVersion)
	}

	versions, err := l.ListVersions(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, versions, k)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Number)
		assert.Equal(t, fmt.Sprintf("Loops v%d", i+1), v.Snapshot.Title)
	}
	assert.Equal(t, k, rec.versions)
	assert.Len(t, sink.events, k)
}

func TestCreateVersionSnapshotsResultingFields(t *testing.T) {
	l, _, _, _ := newLedger(t)
	ctx := context.Background()
	createContent(t, l, "c-1")

	v, err := l.CreateVersion(ctx, "c-1", "editor-1", ContentUpdates{Description: str("while loops too")}, []string{"expanded scope", "  "})
	require.NoError(t, err)

	assert.Equal(t, "Loops", v.Snapshot.Title, "untouched field keeps its prior value")
	assert.Equal(t, "while loops too", v.Snapshot.Description)
	assert.Equal(t, []string{"expanded scope"}, v.Changes)
	assert.Equal(t, "editor-1", v.EditorID)
	assert.NotEmpty(t, v.ID)

	content, err := l.GetContent(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "while loops too", content.Description)
}

func TestDerivedChangeNotes(t *testing.T) {
	tests := []struct {
		name    string
		updates ContentUpdates
		want    []string
	}{
		{"title", ContentUpdates{Title: str("New")}, []string{"Updated title"}},
		{"both", ContentUpdates{Title: str("New"), Description: str("Other")}, []string{"Updated title", "Updated description"}},
		{"nothing", ContentUpdates{}, []string{"No field changes"}},
		{"same value", ContentUpdates{Title: str("Loops")}, []string{"No field changes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, _, _ := newLedger(t)
			createContent(t, l, "c-1")
			v, err := l.CreateVersion(context.Background(), "c-1", "e", tt.updates, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Changes)
		})
	}
}

func TestVersionsAreImmutableCopies(t *testing.T) {
	l, _, _, _ := newLedger(t)
	ctx := context.Background()
	createContent(t, l, "c-1")

	v, err := l.CreateVersion(ctx, "c-1", "e", ContentUpdates{Title: str("First")}, []string{"note"})
	require.NoError(t, err)
	v.Snapshot.Title = "tampered"
	v.Changes[0] = "tampered"

	got, err := l.GetVersion(ctx, "c-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Snapshot.Title)
	assert.Equal(t, []string{"note"}, got.Changes)

	listed, err := l.ListVersions(ctx, "c-1")
	require.NoError(t, err)
	listed[0].Snapshot.Title = "tampered again"

	got, err = l.GetVersion(ctx, "c-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Snapshot.Title)
}

func TestGetVersionNotFound(t *testing.T) {
	l, _, _, _ := newLedger(t)
	ctx := context.Background()
	createContent(t, l, "c-1")
	_, err := l.CreateVersion(ctx, "c-1", "e", ContentUpdates{}, nil)
	require.NoError(t, err)

	for _, n := range []int{0, 2, -1} {
		_, err := l.GetVersion(ctx, "c-1", n)
		assert.True(t, appErrors.IsNotFound(err), "version %d", n)
	}
	_, err = l.GetVersion(ctx, "missing", 1)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestListVersionsEmptyBeforeFirstEdit(t *testing.T) {
	l, _, _, _ := newLedger(t)
	createContent(t, l, "c-1")

	versions, err := l.ListVersions(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Empty(t, versions)

	_, err = l.ListVersions(context.Background(), "missing")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestCompareVersions(t *testing.T) {
	l, _, _, _ := newLedger(t)
	ctx := context.Background()
	createContent(t, l, "c-1")
	_, err := l.CreateVersion(ctx, "c-1", "e", ContentUpdates{Title: str("A")}, nil)
	require.NoError(t, err)
	_, err = l.CreateVersion(ctx, "c-1", "e", ContentUpdates{Title: str("B")}, nil)
	require.NoError(t, err)

	diff, err := l.CompareVersions(ctx, "c-1", 1, 2)
	require.NoError(t, err)
	require.Len(t, diff.Changes, 1)
	assert.Equal(t, domain.FieldChange{Field: "title", From: "A", To: "B"}, diff.Changes[0])

	same, err := l.CompareVersions(ctx, "c-1", 2, 2)
	require.NoError(t, err)
	assert.Empty(t, same.Changes)

	_, err = l.CompareVersions(ctx, "c-1", 1, 9)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestCreateVersionFailureAppendsNothing(t *testing.T) {
	l, store, rec, _ := newLedger(t)
	ctx := context.Background()
	createContent(t, l, "c-1")

	store.SetError(memory.OpPutContent, errors.New("write failed"))
	_, err := l.CreateVersion(ctx, "c-1", "e", ContentUpdates{Title: str("X")}, nil)
	require.Error(t, err)
	store.ClearErrors()

	versions, err := l.ListVersions(ctx, "c-1")
	require.NoError(t, err)
	assert.Empty(t, versions)
	content, err := l.GetContent(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Loops", content.Title)
	assert.Zero(t, content.CurrentVersion)
	assert.Zero(t, rec.versions)
}

func TestCreateVersionExhaustedRetries(t *testing.T) {
	l, store, rec, _ := newLedger(t)
	createContent(t, l, "c-1")

	store.SetError(memory.OpCommit, repository.NewConflict(repository.ContentRecord, "c-1", "moved on"))
	_, err := l.CreateVersion(context.Background(), "c-1", "e", ContentUpdates{}, nil)
	assert.True(t, appErrors.IsTransient(err))
	assert.Equal(t, 2, rec.conflicts)
}

func TestUnreachableStoreIsUpstreamUnavailable(t *testing.T) {
	l, store, _, _ := newLedger(t)
	createContent(t, l, "c-1")

	store.SetError(memory.OpFindContent, fmt.Errorf("get item: %w: %w", repository.ErrUnavailable, errors.New("timeout")))
	_, err := l.GetContent(context.Background(), "c-1")
	require.Error(t, err)

	assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeUnavailable))
	assert.Equal(t, http.StatusBadGateway, appErrors.HTTPStatusOf(err))
	assert.False(t, appErrors.IsNotFound(err))
}

func TestCreateVersionValidation(t *testing.T) {
	l, _, _, _ := newLedger(t)
	createContent(t, l, "c-1")
	ctx := context.Background()

	_, err := l.CreateVersion(ctx, "c-1", "", ContentUpdates{}, nil)
	assert.True(t, appErrors.IsValidation(err))
	_, err = l.CreateVersion(ctx, "c-1", "e", ContentUpdates{Title: str(" ")}, nil)
	assert.True(t, appErrors.IsValidation(err))
	_, err = l.CreateVersion(ctx, "missing", "e", ContentUpdates{}, nil)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestConcurrentEditsProduceGapFreeLedger(t *testing.T) {
	l, _, _, _ := newLedger(t)
	ctx := context.Background()
	createContent(t, l, "c-1")

	const editors = 10
	var wg sync.WaitGroup
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.CreateVersion(ctx, "c-1", fmt.Sprintf("editor-%d", i), ContentUpdates{Title: str(fmt.Sprintf("T%d", i))}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	versions, err := l.ListVersions(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, versions, editors)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Number)
	}
	content, err := l.GetContent(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, editors, content.CurrentVersion)
	assert.Equal(t, versions[editors-1].Snapshot.Title, content.Title)
}

func TestCreateContentDuplicate(t *testing.T) {
	l, _, _, _ := newLedger(t)
	createContent(t, l, "c-1")

	_, err := l.CreateContent(context.Background(), NewContent{ID: "c-1", Title: "again"})
	assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeConflict))
}
