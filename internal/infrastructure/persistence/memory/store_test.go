package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/repository"
)

func seed(t *testing.T, s *Store) (*domain.Resource, *domain.Content) {
	t.Helper()
	ctx := context.Background()
	r := &domain.Resource{ID: "r-1", Title: "Go Tour"}
	c := &domain.Content{ID: "c-1", Title: "Loops"}

	uow := s.Begin(ctx)
	require.NoError(t, uow.PutResource(r, 0))
	require.NoError(t, uow.PutContent(c, 0))
	require.NoError(t, uow.Commit(ctx))
	return r, c
}

func TestCommitCreatesAndBumpsRevisions(t *testing.T) {
	s := NewStore()
	r, c := seed(t, s)

	assert.Equal(t, int64(1), r.Revision)
	assert.Equal(t, int64(1), c.Revision)

	got, err := s.FindResource(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "Go Tour", got.Title)
	assert.Equal(t, int64(1), got.Revision)
	assert.Equal(t, 1, s.Commits())
}

func TestReadsReturnCopies(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	c, err := s.FindContent(ctx, "c-1")
	require.NoError(t, err)
	c.Title = "mutated"
	c.ResourceIDs = append(c.ResourceIDs, "r-x")

	again, err := s.FindContent(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Loops", again.Title)
	assert.Empty(t, again.ResourceIDs)
}

func TestStaleRevisionConflictsAndWritesNothing(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	r, _ := s.FindResource(ctx, "r-1")
	c, _ := s.FindContent(ctx, "c-1")

	// a concurrent writer moves the content forward
	other := s.Begin(ctx)
	c2 := c.Clone()
	c2.Title = "Loops v2"
	require.NoError(t, other.PutContent(c2, c2.Revision))
	require.NoError(t, other.Commit(ctx))

	uow := s.Begin(ctx)
	r.ContentID = "c-1"
	require.NoError(t, uow.PutResource(r, r.Revision))
	c.ResourceIDs = []string{"r-1"}
	require.NoError(t, uow.PutContent(c, c.Revision))

	err := uow.Commit(ctx)
	require.True(t, repository.IsConflict(err))

	stored, _ := s.FindResource(ctx, "r-1")
	assert.Empty(t, stored.ContentID, "resource write must not survive a conflicting commit")
	assert.Equal(t, int64(1), stored.Revision)
}

func TestVersionsAppendInOrder(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		uow := s.Begin(ctx)
		require.NoError(t, uow.PutVersion(&domain.Version{ID: "v", ContentID: "c-1", Number: n}))
		require.NoError(t, uow.Commit(ctx))
	}

	dup := s.Begin(ctx)
	require.NoError(t, dup.PutVersion(&domain.Version{ContentID: "c-1", Number: 2}))
	assert.True(t, repository.IsConflict(dup.Commit(ctx)))

	versions, err := s.ListVersions(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Number)
	}

	v, err := s.FindVersion(ctx, "c-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Number)

	_, err = s.FindVersion(ctx, "c-1", 9)
	assert.True(t, repository.IsNotFound(err))
}

func TestFailureInjection(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	injected := errors.New("disk on fire")

	s.SetError(OpPutContent, injected)
	uow := s.Begin(ctx)
	r, _ := s.FindResource(ctx, "r-1")
	r.ContentID = "c-1"
	require.NoError(t, uow.PutResource(r, r.Revision))
	err := uow.PutContent(&domain.Content{ID: "c-1"}, 1)
	assert.ErrorIs(t, err, injected)
	uow.Rollback()

	stored, _ := s.FindResource(ctx, "r-1")
	assert.Empty(t, stored.ContentID)

	s.ClearErrors()
	s.SetError(OpFindResource, injected)
	_, err = s.FindResource(ctx, "r-1")
	assert.ErrorIs(t, err, injected)
}

func TestClosedUnitOfWork(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	uow := s.Begin(ctx)
	require.NoError(t, uow.Commit(ctx))
	assert.ErrorIs(t, uow.Commit(ctx), repository.ErrUnitOfWorkClosed)
	assert.ErrorIs(t, uow.PutResource(&domain.Resource{ID: "x"}, 0), repository.ErrUnitOfWorkClosed)

	rolledBack := s.Begin(ctx)
	rolledBack.Rollback()
	assert.ErrorIs(t, rolledBack.Commit(ctx), repository.ErrUnitOfWorkClosed)
}

func TestFindMissing(t *testing.T) {
	s := NewStore()
	_, err := s.FindResource(context.Background(), "nope")
	assert.True(t, repository.IsNotFound(err))
	_, err = s.FindContent(context.Background(), "nope")
	assert.True(t, repository.IsNotFound(err))
}
