package repository

import (
	"context"

	"coursecraft-backend/internal/domain"
)

// Record type names used in errors and traces.
const (
	ResourceRecord = "resource"
	ContentRecord  = "content"
	VersionRecord  = "version"
)

// Store provides lookups by identifier and transactional writes.
//
// Reads return copies; mutating a returned record never changes the store.
// All writes go through a UnitOfWork so that related records change together.
type Store interface {
	FindResource(ctx context.Context, id string) (*domain.Resource, error)
	FindContent(ctx context.Context, id string) (*domain.Content, error)
	FindVersion(ctx context.Context, contentID string, number int) (*domain.Version, error)
	// ListVersions returns the ledger of a content record ordered by number.
	ListVersions(ctx context.Context, contentID string) ([]*domain.Version, error)

	Begin(ctx context.Context) UnitOfWork
}

// UnitOfWork stages writes and applies them atomically on Commit.
//
// Put calls record the revision the caller read the record at. Commit
// fails with ErrConflict, writing nothing, if any record has moved on since
// or if a staged version number already exists. On success every staged
// record's Revision is expectedRevision+1.
//
// Example:
//
//	uow := store.Begin(ctx)
//	defer uow.Rollback() // no-op after Commit
//	if err := uow.PutResource(res, res.Revision); err != nil { return err }
//	if err := uow.PutContent(content, content.Revision); err != nil { return err }
//	return uow.Commit(ctx)
type UnitOfWork interface {
	PutResource(r *domain.Resource, expectedRevision int64) error
	PutContent(c *domain.Content, expectedRevision int64) error
	// PutVersion stages an append. Versions are never overwritten.
	PutVersion(v *domain.Version) error

	Commit(ctx context.Context) error
	Rollback()
}
