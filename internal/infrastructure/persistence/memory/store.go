// Package memory provides an in-process implementation of the repository
// Store. Commits are all-or-nothing under a single store lock. Failures can
// be injected per operation for testing error paths.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/repository"
)

// Operation names accepted by SetError.
const (
	OpFindResource = "FindResource"
	OpFindContent  = "FindContent"
	OpFindVersion  = "FindVersion"
	OpListVersions = "ListVersions"
	OpPutResource  = "PutResource"
	OpPutContent   = "PutContent"
	OpPutVersion   = "PutVersion"
	OpCommit       = "Commit"
)

// Store is an in-memory repository.Store.
type Store struct {
	mu sync.RWMutex

	resources map[string]*domain.Resource
	contents  map[string]*domain.Content
	versions  map[string][]*domain.Version // contentID -> ordered by number

	commits int

	// For testing error scenarios
	shouldFailOn map[string]error
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		resources:    make(map[string]*domain.Resource),
		contents:     make(map[string]*domain.Content),
		versions:     make(map[string][]*domain.Version),
		shouldFailOn: make(map[string]error),
	}
}

// SetError makes every later call of op fail with err.
func (s *Store) SetError(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn[op] = err
}

// ClearErrors removes all configured errors.
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn = make(map[string]error)
}

// Commits returns the number of successful commits.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *Store) checkError(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shouldFailOn[op]
}

func (s *Store) FindResource(ctx context.Context, id string) (*domain.Resource, error) {
	if err := s.checkError(OpFindResource); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resources[id]
	if !ok {
		return nil, repository.NewNotFound(repository.ResourceRecord, id)
	}
	return r.Clone(), nil
}

func (s *Store) FindContent(ctx context.Context, id string) (*domain.Content, error) {
	if err := s.checkError(OpFindContent); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contents[id]
	if !ok {
		return nil, repository.NewNotFound(repository.ContentRecord, id)
	}
	return c.Clone(), nil
}

func (s *Store) FindVersion(ctx context.Context, contentID string, number int) (*domain.Version, error) {
	if err := s.checkError(OpFindVersion); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger := s.versions[contentID]
	i := sort.Search(len(ledger), func(i int) bool { return ledger[i].Number >= number })
	if i == len(ledger) || ledger[i].Number != number {
		return nil, repository.NewNotFound(repository.VersionRecord, fmt.Sprintf("%s#%d", contentID, number))
	}
	return ledger[i].Clone(), nil
}

func (s *Store) ListVersions(ctx context.Context, contentID string) ([]*domain.Version, error) {
	if err := s.checkError(OpListVersions); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger := s.versions[contentID]
	out := make([]*domain.Version, 0, len(ledger))
	for _, v := range ledger {
		out = append(out, v.Clone())
	}
	return out, nil
}

// Begin starts a unit of work. Nothing is visible until Commit.
func (s *Store) Begin(ctx context.Context) repository.UnitOfWork {
	return &unitOfWork{
		store:     s,
		resources: make(map[string]stagedResource),
		contents:  make(map[string]stagedContent),
	}
}

type stagedResource struct {
	record   *domain.Resource
	target   *domain.Resource
	expected int64
}

type stagedContent struct {
	record   *domain.Content
	target   *domain.Content
	expected int64
}

type unitOfWork struct {
	store     *Store
	resources map[string]stagedResource
	contents  map[string]stagedContent
	versions  []*domain.Version
	closed    bool
}

func (u *unitOfWork) PutResource(r *domain.Resource, expectedRevision int64) error {
	if u.closed {
		return repository.ErrUnitOfWorkClosed
	}
	if err := u.store.checkError(OpPutResource); err != nil {
		return err
	}
	u.resources[r.ID] = stagedResource{record: r.Clone(), target: r, expected: expectedRevision}
	return nil
}

func (u *unitOfWork) PutContent(c *domain.Content, expectedRevision int64) error {
	if u.closed {
		return repository.ErrUnitOfWorkClosed
	}
	if err := u.store.checkError(OpPutContent); err != nil {
		return err
	}
	u.contents[c.ID] = stagedContent{record: c.Clone(), target: c, expected: expectedRevision}
	return nil
}

func (u *unitOfWork) PutVersion(v *domain.Version) error {
	if u.closed {
		return repository.ErrUnitOfWorkClosed
	}
	if err := u.store.checkError(OpPutVersion); err != nil {
		return err
	}
	u.versions = append(u.versions, v.Clone())
	return nil
}

// Commit validates every staged record against the current revisions and
// applies all of them, or none.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.closed {
		return repository.ErrUnitOfWorkClosed
	}
	u.closed = true
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.store.checkError(OpCommit); err != nil {
		return err
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range u.resources {
		if current := revisionOfResource(s.resources[id]); current != st.expected {
			return repository.NewConflict(repository.ResourceRecord, id,
				fmt.Sprintf("expected revision %d, found %d", st.expected, current))
		}
	}
	for id, st := range u.contents {
		if current := revisionOfContent(s.contents[id]); current != st.expected {
			return repository.NewConflict(repository.ContentRecord, id,
				fmt.Sprintf("expected revision %d, found %d", st.expected, current))
		}
	}
	pending := make(map[string]int)
	for _, v := range u.versions {
		last := pending[v.ContentID]
		if ledger := s.versions[v.ContentID]; last == 0 && len(ledger) > 0 {
			last = ledger[len(ledger)-1].Number
		}
		if v.Number <= last {
			return repository.NewConflict(repository.VersionRecord, fmt.Sprintf("%s#%d", v.ContentID, v.Number),
				"version number already taken")
		}
		pending[v.ContentID] = v.Number
	}

	for id, st := range u.resources {
		st.record.Revision = st.expected + 1
		s.resources[id] = st.record
		st.target.Revision = st.record.Revision
	}
	for id, st := range u.contents {
		st.record.Revision = st.expected + 1
		s.contents[id] = st.record
		st.target.Revision = st.record.Revision
	}
	for _, v := range u.versions {
		s.versions[v.ContentID] = append(s.versions[v.ContentID], v)
	}
	s.commits++
	return nil
}

// Rollback discards staged writes. It is safe to call after Commit.
func (u *unitOfWork) Rollback() {
	u.closed = true
	u.resources = nil
	u.contents = nil
	u.versions = nil
}

func revisionOfResource(r *domain.Resource) int64 {
	if r == nil {
		return 0
	}
	return r.Revision
}

func revisionOfContent(c *domain.Content) int64 {
	if c == nil {
		return 0
	}
	return c.Revision
}
