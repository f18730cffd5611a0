package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/repository"
)

// OperationRecorder receives the outcome of every store call.
type OperationRecorder interface {
	RecordDBOperation(operation string, err error, duration time.Duration)
}

// TraceStore wraps a store with a span per call. recorder may be nil.
func TraceStore(inner repository.Store, tracer trace.Tracer, recorder OperationRecorder) repository.Store {
	return &tracedStore{inner: inner, tracer: tracer, recorder: recorder}
}

type tracedStore struct {
	inner    repository.Store
	tracer   trace.Tracer
	recorder OperationRecorder
}

func (s *tracedStore) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "repository."+op, trace.WithAttributes(attrs...))
	started := time.Now()
	return ctx, func(err error) {
		// NotFound is an answer, not a failure of the store.
		if err != nil && !repository.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.recorder != nil {
			s.recorder.RecordDBOperation(op, err, time.Since(started))
		}
	}
}

func (s *tracedStore) FindResource(ctx context.Context, id string) (*domain.Resource, error) {
	ctx, end := s.start(ctx, "FindResource", attribute.String("resource.id", id))
	r, err := s.inner.FindResource(ctx, id)
	end(err)
	return r, err
}

func (s *tracedStore) FindContent(ctx context.Context, id string) (*domain.Content, error) {
	ctx, end := s.start(ctx, "FindContent", attribute.String("content.id", id))
	c, err := s.inner.FindContent(ctx, id)
	end(err)
	return c, err
}

func (s *tracedStore) FindVersion(ctx context.Context, contentID string, number int) (*domain.Version, error) {
	ctx, end := s.start(ctx, "FindVersion",
		attribute.String("content.id", contentID),
		attribute.Int("version.number", number),
	)
	v, err := s.inner.FindVersion(ctx, contentID, number)
	end(err)
	return v, err
}

func (s *tracedStore) ListVersions(ctx context.Context, contentID string) ([]*domain.Version, error) {
	ctx, end := s.start(ctx, "ListVersions", attribute.String("content.id", contentID))
	vs, err := s.inner.ListVersions(ctx, contentID)
	end(err)
	return vs, err
}

func (s *tracedStore) Begin(ctx context.Context) repository.UnitOfWork {
	return &tracedUnitOfWork{UnitOfWork: s.inner.Begin(ctx), store: s}
}

type tracedUnitOfWork struct {
	repository.UnitOfWork
	store  *tracedStore
	staged int
}

func (u *tracedUnitOfWork) PutResource(r *domain.Resource, expectedRevision int64) error {
	err := u.UnitOfWork.PutResource(r, expectedRevision)
	if err == nil {
		u.staged++
	}
	return err
}

func (u *tracedUnitOfWork) PutContent(c *domain.Content, expectedRevision int64) error {
	err := u.UnitOfWork.PutContent(c, expectedRevision)
	if err == nil {
		u.staged++
	}
	return err
}

func (u *tracedUnitOfWork) PutVersion(v *domain.Version) error {
	err := u.UnitOfWork.PutVersion(v)
	if err == nil {
		u.staged++
	}
	return err
}

func (u *tracedUnitOfWork) Commit(ctx context.Context) error {
	ctx, end := u.store.start(ctx, "Commit", attribute.Int("uow.writes", u.staged))
	err := u.UnitOfWork.Commit(ctx)
	if err != nil && repository.IsConflict(err) {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("uow.conflict", true))
	}
	end(err)
	return err
}
