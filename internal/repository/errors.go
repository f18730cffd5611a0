package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound represents a record not found error in the repository layer.
type ErrNotFound struct {
	Resource string // The type of record (e.g., "resource", "content", "version")
	ID       string // The identifier that was not found
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
}

// IsNotFound checks if an error is a repository not found error.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// ErrConflict is returned by Commit when a staged record no longer has the
// revision it was read at. Nothing from the unit of work was written.
type ErrConflict struct {
	Resource string // The type of record that conflicted
	ID       string // The identifier that caused the conflict
	Reason   string // The reason for the conflict
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("conflict with %s '%s': %s", e.Resource, e.ID, e.Reason)
}

// IsConflict checks if an error is a repository conflict error.
func IsConflict(err error) bool {
	var c ErrConflict
	return errors.As(err, &c)
}

// ErrUnavailable marks a failure to reach the storage backend itself.
var ErrUnavailable = errors.New("store unavailable")

// IsUnavailable checks if an error came from an unreachable store.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// ErrUnitOfWorkClosed is returned when a committed or rolled back unit of
// work is used again.
var ErrUnitOfWorkClosed = errors.New("unit of work is already closed")

func NewNotFound(resource, id string) ErrNotFound {
	return ErrNotFound{Resource: resource, ID: id}
}

func NewConflict(resource, id, reason string) ErrConflict {
	return ErrConflict{Resource: resource, ID: id, Reason: reason}
}
