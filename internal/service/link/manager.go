// Package link keeps resources and the content they support mutually
// consistent. A resource's back-reference and the content's resource list
// only ever change together, inside one unit of work.
package link

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/infrastructure/concurrency"
	"coursecraft-backend/internal/repository"
	appErrors "coursecraft-backend/pkg/errors"
)

// ConflictRecorder counts transactions retried after a conflict.
type ConflictRecorder interface {
	RecordConflict(operation string)
}

// Manager is the link transaction manager.
type Manager struct {
	store     repository.Store
	locks     *concurrency.KeyedMutex
	retry     repository.RetryConfig
	publisher domain.EventPublisher
	recorder  ConflictRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPublisher sets where link events are sent.
func WithPublisher(p domain.EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithConflictRecorder sets the conflict metrics sink.
func WithConflictRecorder(r ConflictRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithLocks shares a KeyedMutex with other services touching the same records.
func WithLocks(locks *concurrency.KeyedMutex) Option {
	return func(m *Manager) { m.locks = locks }
}

// NewManager creates a Manager.
func NewManager(store repository.Store, retry repository.RetryConfig, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:  store,
		locks:  concurrency.NewKeyedMutex(),
		retry:  retry,
		logger: logger.Named("link"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewResource describes a resource to register.
type NewResource struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// RegisterResource stores a new, unlinked resource. An empty ID is generated.
func (m *Manager) RegisterResource(ctx context.Context, in NewResource) (*domain.Resource, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, appErrors.NewValidationError("title is required")
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := m.now()
	res := &domain.Resource{
		ID:        id,
		Title:     in.Title,
		URL:       in.URL,
		Type:      in.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}

	unlock := m.locks.Lock(concurrency.ResourceKey(id))
	defer unlock()

	uow := m.store.Begin(ctx)
	defer uow.Rollback()
	if err := uow.PutResource(res, 0); err != nil {
		return nil, appErrors.NewInternalError("failed to stage resource", err)
	}
	if err := uow.Commit(ctx); err != nil {
		if repository.IsConflict(err) {
			return nil, appErrors.NewConflictError("resource '" + id + "' already exists").WithCause(err)
		}
		return nil, m.translate("register", err)
	}
	return res, nil
}

// GetResource returns a resource by id.
func (m *Manager) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	res, err := m.store.FindResource(ctx, id)
	if err != nil {
		return nil, m.translate("get", err)
	}
	return res, nil
}

// Link attaches a resource to a content record: the resource gets the
// back-reference and classification, the content gets the resource id.
// Both change in one transaction or not at all. Linking an already linked
// pair with the same classification changes nothing. A resource linked
// elsewhere is moved, leaving its previous content's list in the same
// transaction.
func (m *Manager) Link(ctx context.Context, resourceID, contentID, linkType string) (*domain.Resource, error) {
	if resourceID == "" || contentID == "" {
		return nil, appErrors.NewValidationError("resourceId and contentId are required")
	}
	lt, err := domain.ParseLinkType(linkType)
	if err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}

	unlock := m.locks.LockAll(concurrency.ResourceKey(resourceID), concurrency.ContentKey(contentID))
	defer unlock()

	var (
		linked   *domain.Resource
		previous string
		changed  bool
	)
	err = repository.RetryOnConflict(ctx, m.retryConfig("link", resourceID, contentID), func(ctx context.Context, attempt int) error {
		res, err := m.store.FindResource(ctx, resourceID)
		if err != nil {
			return err
		}
		content, err := m.store.FindContent(ctx, contentID)
		if err != nil {
			return err
		}

		if res.ContentID == contentID && res.LinkType == lt && content.HasResource(res.ID) {
			linked, changed = res, false
			return nil
		}

		now := m.now()
		uow := m.store.Begin(ctx)
		defer uow.Rollback()

		previous = ""
		if res.ContentID != "" && res.ContentID != contentID {
			previous = res.ContentID
			if err := m.detachFromPrevious(ctx, uow, res.ID, previous, now); err != nil {
				return err
			}
		}

		expected := res.Revision
		res.ContentID = contentID
		res.LinkType = lt
		res.UpdatedAt = now
		if err := uow.PutResource(res, expected); err != nil {
			return err
		}

		if content.AddResource(res.ID) {
			content.UpdatedAt = now
			if err := uow.PutContent(content, content.Revision); err != nil {
				return err
			}
		}

		if err := uow.Commit(ctx); err != nil {
			return err
		}
		linked, changed = res, true
		return nil
	})
	if err != nil {
		return nil, m.translate("link", err)
	}

	if changed {
		m.logger.Debug("resource linked",
			zap.String("resource_id", resourceID),
			zap.String("content_id", contentID),
			zap.String("link_type", string(lt)),
			zap.String("previous_content_id", previous),
		)
		m.publish(ctx, domain.NewResourceLinkedEvent(resourceID, contentID, previous, lt, linked.UpdatedAt))
	}
	return linked, nil
}

// detachFromPrevious stages removal of resourceID from the content it is
// being moved away from. A previous content that no longer exists is skipped.
func (m *Manager) detachFromPrevious(ctx context.Context, uow repository.UnitOfWork, resourceID, previousID string, now time.Time) error {
	prev, err := m.store.FindContent(ctx, previousID)
	if repository.IsNotFound(err) {
		m.logger.Warn("resource pointed at missing content",
			zap.String("resource_id", resourceID),
			zap.String("content_id", previousID),
		)
		return nil
	}
	if err != nil {
		return err
	}
	if !prev.RemoveResource(resourceID) {
		return nil
	}
	prev.UpdatedAt = now
	return uow.PutContent(prev, prev.Revision)
}

// Unlink breaks the link between a resource and a content record. Unlinking
// a pair that is not linked is a no-op.
func (m *Manager) Unlink(ctx context.Context, resourceID, contentID string) (*domain.Resource, error) {
	if resourceID == "" || contentID == "" {
		return nil, appErrors.NewValidationError("resourceId and contentId are required")
	}

	unlock := m.locks.LockAll(concurrency.ResourceKey(resourceID), concurrency.ContentKey(contentID))
	defer unlock()

	var (
		result  *domain.Resource
		changed bool
	)
	err := repository.RetryOnConflict(ctx, m.retryConfig("unlink", resourceID, contentID), func(ctx context.Context, attempt int) error {
		res, err := m.store.FindResource(ctx, resourceID)
		if err != nil {
			return err
		}
		content, err := m.store.FindContent(ctx, contentID)
		if err != nil {
			return err
		}

		pointsAt := res.ContentID == contentID
		listed := content.HasResource(res.ID)
		if !pointsAt && !listed {
			result, changed = res, false
			return nil
		}

		now := m.now()
		uow := m.store.Begin(ctx)
		defer uow.Rollback()

		if pointsAt {
			expected := res.Revision
			res.ContentID = ""
			res.LinkType = ""
			res.UpdatedAt = now
			if err := uow.PutResource(res, expected); err != nil {
				return err
			}
		}
		if content.RemoveResource(res.ID) {
			content.UpdatedAt = now
			if err := uow.PutContent(content, content.Revision); err != nil {
				return err
			}
		}

		if err := uow.Commit(ctx); err != nil {
			return err
		}
		result, changed = res, true
		return nil
	})
	if err != nil {
		return nil, m.translate("unlink", err)
	}

	if changed {
		m.logger.Debug("resource unlinked",
			zap.String("resource_id", resourceID),
			zap.String("content_id", contentID),
		)
		m.publish(ctx, domain.NewResourceUnlinkedEvent(resourceID, contentID, result.UpdatedAt))
	}
	return result, nil
}

func (m *Manager) retryConfig(op, resourceID, contentID string) repository.RetryConfig {
	cfg := m.retry
	cfg.OnRetry = func(attempt int, err error) {
		m.logger.Warn("transaction conflict, retrying",
			zap.String("operation", op),
			zap.String("resource_id", resourceID),
			zap.String("content_id", contentID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if m.recorder != nil {
			m.recorder.RecordConflict(op)
		}
	}
	return cfg
}

func (m *Manager) publish(ctx context.Context, event domain.DomainEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_id", event.AggregateID()),
			zap.Error(err),
		)
	}
}

// translate maps repository errors onto the application taxonomy.
func (m *Manager) translate(op string, err error) error {
	var nf repository.ErrNotFound
	if errors.As(err, &nf) {
		m.logger.Debug("record not found", zap.String("operation", op), zap.String("record", nf.Resource), zap.String("id", nf.ID))
		return appErrors.NewNotFoundError(nf.Resource, nf.ID).WithCause(err)
	}
	var exhausted *repository.ExhaustedError
	if errors.As(err, &exhausted) {
		return appErrors.NewTransientFailure(op, exhausted.Attempts, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if appErrors.IsAppError(err) {
		return err
	}
	if repository.IsUnavailable(err) {
		return appErrors.NewUnavailableError("storage", err).WithCode("STORE_UNAVAILABLE")
	}
	return appErrors.NewInternalError("failed to "+op+" resource", err)
}
