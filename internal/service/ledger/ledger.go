// Package ledger records the edit history of content records. Every
// accepted edit appends an immutable version and moves the content's
// current fields and version pointer in the same transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/infrastructure/concurrency"
	"coursecraft-backend/internal/repository"
	appErrors "coursecraft-backend/pkg/errors"
)

// Recorder receives ledger metrics.
type Recorder interface {
	RecordVersionCreated()
	RecordConflict(operation string)
}

// ContentUpdates holds the fields an edit changes. Nil fields keep their
// current value.
type ContentUpdates struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// NewContent describes a content record to create.
type NewContent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// VersionDiff is the field-level difference between two versions.
type VersionDiff struct {
	ContentID string               `json:"contentId"`
	From      int                  `json:"from"`
	To        int                  `json:"to"`
	Changes   []domain.FieldChange `json:"changes"`
}

// Ledger is the version ledger service.
type Ledger struct {
	store     repository.Store
	locks     *concurrency.KeyedMutex
	retry     repository.RetryConfig
	publisher domain.EventPublisher
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithPublisher(p domain.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(l *Ledger) { l.recorder = r }
}

// WithLocks shares a KeyedMutex with the link manager so both serialize
// on the same content keys.
func WithLocks(locks *concurrency.KeyedMutex) Option {
	return func(l *Ledger) { l.locks = locks }
}

// New creates a Ledger.
func New(store repository.Store, retry repository.RetryConfig, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:  store,
		locks:  concurrency.NewKeyedMutex(),
		retry:  retry,
		logger: logger.Named("ledger"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateContent stores a new content record with an empty ledger.
func (l *Ledger) CreateContent(ctx context.Context, in NewContent) (*domain.Content, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, appErrors.NewValidationError("title is required")
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := l.now()
	content := &domain.Content{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		ResourceIDs: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	unlock := l.locks.Lock(concurrency.ContentKey(id))
	defer unlock()

	uow := l.store.Begin(ctx)
	defer uow.Rollback()
	if err := uow.PutContent(content, 0); err != nil {
		return nil, appErrors.NewInternalError("failed to stage content", err)
	}
	if err := uow.Commit(ctx); err != nil {
		if repository.IsConflict(err) {
			return nil, appErrors.NewConflictError(fmt.Sprintf("content '%s' already exists", id)).WithCause(err)
		}
		return nil, l.translate("create content", err)
	}
	return content, nil
}

// GetContent returns a content record by id.
func (l *Ledger) GetContent(ctx context.Context, contentID string) (*domain.Content, error) {
	content, err := l.store.FindContent(ctx, contentID)
	if err != nil {
		return nil, l.translate("get content", err)
	}
	return content, nil
}

// CreateVersion applies updates to the content and appends a snapshot of
// the result as the next version. Empty notes are derived from the fields
// that changed.
func (l *Ledger) CreateVersion(ctx context.Context, contentID, editorID string, updates ContentUpdates, notes []string) (*domain.Version, error) {
	if contentID == "" {
		return nil, appErrors.NewValidationError("contentId is required")
	}
	if strings.TrimSpace(editorID) == "" {
		return nil, appErrors.NewValidationError("editorId is required")
	}
	if updates.Title != nil && strings.TrimSpace(*updates.Title) == "" {
		return nil, appErrors.NewValidationError("title must not be empty")
	}
	notes = compactNotes(notes)

	unlock := l.locks.Lock(concurrency.ContentKey(contentID))
	defer unlock()

	var created *domain.Version
	err := repository.RetryOnConflict(ctx, l.retryConfig(contentID), func(ctx context.Context, attempt int) error {
		content, err := l.store.FindContent(ctx, contentID)
		if err != nil {
			return err
		}

		before := content.Snapshot()
		if updates.Title != nil {
			content.Title = *updates.Title
		}
		if updates.Description != nil {
			content.Description = *updates.Description
		}
		after := content.Snapshot()

		changes := notes
		if len(changes) == 0 {
			changes = deriveNotes(before.Diff(after))
		}

		now := l.now()
		version := &domain.Version{
			ID:        uuid.NewString(),
			ContentID: contentID,
			Number:    content.CurrentVersion + 1,
			Snapshot:  after,
			Changes:   changes,
			EditorID:  editorID,
			CreatedAt: now,
		}

		expected := content.Revision
		content.CurrentVersion = version.Number
		content.UpdatedAt = now

		uow := l.store.Begin(ctx)
		defer uow.Rollback()
		if err := uow.PutVersion(version); err != nil {
			return err
		}
		if err := uow.PutContent(content, expected); err != nil {
			return err
		}
		if err := uow.Commit(ctx); err != nil {
			return err
		}
		created = version
		return nil
	})
	if err != nil {
		return nil, l.translate("create version", err)
	}

	l.logger.Debug("version created",
		zap.String("content_id", contentID),
		zap.Int("number", created.Number),
		zap.String("editor_id", editorID),
	)
	if l.recorder != nil {
		l.recorder.RecordVersionCreated()
	}
	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, domain.NewContentVersionCreatedEvent(created)); err != nil {
			l.logger.Warn("failed to publish event", zap.String("content_id", contentID), zap.Error(err))
		}
	}
	return created.Clone(), nil
}

// GetVersion returns version number of the content.
func (l *Ledger) GetVersion(ctx context.Context, contentID string, number int) (*domain.Version, error) {
	if number < 1 {
		return nil, appErrors.NewNotFoundError(repository.VersionRecord, fmt.Sprintf("%s#%d", contentID, number))
	}
	v, err := l.store.FindVersion(ctx, contentID, number)
	if err != nil {
		return nil, l.translate("get version", err)
	}
	return v, nil
}

// ListVersions returns the full ledger ordered by version number.
func (l *Ledger) ListVersions(ctx context.Context, contentID string) ([]*domain.Version, error) {
	if _, err := l.store.FindContent(ctx, contentID); err != nil {
		return nil, l.translate("list versions", err)
	}
	versions, err := l.store.ListVersions(ctx, contentID)
	if err != nil {
		return nil, l.translate("list versions", err)
	}
	return versions, nil
}

// CompareVersions returns how version to differs from version from.
func (l *Ledger) CompareVersions(ctx context.Context, contentID string, from, to int) (*VersionDiff, error) {
	a, err := l.GetVersion(ctx, contentID, from)
	if err != nil {
		return nil, err
	}
	b, err := l.GetVersion(ctx, contentID, to)
	if err != nil {
		return nil, err
	}
	changes := a.Snapshot.Diff(b.Snapshot)
	if changes == nil {
		changes = []domain.FieldChange{}
	}
	return &VersionDiff{ContentID: contentID, From: from, To: to, Changes: changes}, nil
}

func compactNotes(notes []string) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func deriveNotes(changes []domain.FieldChange) []string {
	if len(changes) == 0 {
		return []string{"No field changes"}
	}
	notes := make([]string, 0, len(changes))
	for _, c := range changes {
		notes = append(notes, "Updated "+c.Field)
	}
	return notes
}

func (l *Ledger) retryConfig(contentID string) repository.RetryConfig {
	cfg := l.retry
	cfg.OnRetry = func(attempt int, err error) {
		l.logger.Warn("transaction conflict, retrying",
			zap.String("operation", "create_version"),
			zap.String("content_id", contentID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if l.recorder != nil {
			l.recorder.RecordConflict("create_version")
		}
	}
	return cfg
}

func (l *Ledger) translate(op string, err error) error {
	var nf repository.ErrNotFound
	if errors.As(err, &nf) {
		l.logger.Debug("record not found", zap.String("operation", op), zap.String("record", nf.Resource), zap.String("id", nf.ID))
		return appErrors.NewNotFoundError(nf.Resource, nf.ID).WithCause(err)
	}
	var exhausted *repository.ExhaustedError
	if errors.As(err, &exhausted) {
		return appErrors.NewTransientFailure(op, exhausted.Attempts, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if repository.IsUnavailable(err) {
		return appErrors.NewUnavailableError("storage", err).WithCode("STORE_UNAVAILABLE")
	}
	return appErrors.NewInternalError("failed to "+op, err)
}
