// Package generation implements the features that call the text model:
// syllabus analysis, lecture content, slide outlines and resource search.
// Every model response goes through the recovery pipeline, so callers
// always receive a typed object; only cancellation and bad input are errors.
package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/infrastructure/cache"
	"coursecraft-backend/internal/recovery"
	"coursecraft-backend/internal/service/llm"
	appErrors "coursecraft-backend/pkg/errors"
)

const defaultSlideCount = 8

// Generator is the text generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt string, options llm.CompletionOptions) (string, error)
}

// ResultCache stores recovered resource lists by request fingerprint.
type ResultCache interface {
	Lookup(ctx context.Context, fingerprint string, opts cache.ReadOptions) ([]domain.RecoveredObject, bool)
	Put(ctx context.Context, fingerprint string, objects []domain.RecoveredObject) error
}

// ContentRequest asks for lecture material on a topic.
type ContentRequest struct {
	Topic     string   `json:"topic"`
	Subtopics []string `json:"subtopics"`
	Audience  string   `json:"audience"`
}

// SlideRequest asks for a slide outline.
type SlideRequest struct {
	Topic      string `json:"topic"`
	Content    string `json:"content"`
	SlideCount int    `json:"slideCount"`
}

// ResourceQuery describes a resource search. RequireRealIDs skips cached
// results even when they are still fresh.
type ResourceQuery struct {
	TopicIDs       []string `json:"topicIds"`
	Query          string   `json:"query"`
	ResultType     string   `json:"resultType"`
	Limit          int      `json:"limit"`
	RequireRealIDs bool     `json:"requireRealIds"`
}

// ResourceSearchResult is the outcome of SearchResources.
type ResourceSearchResult struct {
	Objects []domain.RecoveredObject `json:"objects"`
	Cached  bool                     `json:"cached"`
}

// Service runs model calls through the recovery pipeline.
type Service struct {
	generator Generator
	pipeline  *recovery.Pipeline
	cache     ResultCache
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	flights singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source stamped on model responses.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// NewService creates a generation service.
func NewService(generator Generator, pipeline *recovery.Pipeline, resultCache ResultCache, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		generator: generator,
		pipeline:  pipeline,
		cache:     resultCache,
		logger:    logger.Named("generation"),
		tracer:    otel.Tracer("coursecraft-backend/generation"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeSyllabus extracts topics, duration, objectives and prerequisites.
func (s *Service) AnalyzeSyllabus(ctx context.Context, syllabus string) (domain.RecoveredObject, error) {
	if strings.TrimSpace(syllabus) == "" {
		return domain.RecoveredObject{}, appErrors.NewValidationError("syllabus text is required")
	}
	ctx, span := s.tracer.Start(ctx, "generation.AnalyzeSyllabus")
	defer span.End()

	obj, _, err := s.generate(ctx, buildSyllabusPrompt(syllabus), domain.KindSyllabusAnalysis, llm.CompletionOptions{
		Temperature: 0.2,
		MaxTokens:   2048,
		Format:      "json",
	})
	return obj, err
}

// GenerateContent writes lecture material for a topic.
func (s *Service) GenerateContent(ctx context.Context, req ContentRequest) (domain.RecoveredObject, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return domain.RecoveredObject{}, appErrors.NewValidationError("topic is required")
	}
	ctx, span := s.tracer.Start(ctx, "generation.GenerateContent",
		trace.WithAttributes(attribute.String("topic", req.Topic)))
	defer span.End()

	obj, _, err := s.generate(ctx, buildContentPrompt(req), domain.KindContentDraft, llm.CompletionOptions{
		Temperature: 0.7,
		MaxTokens:   4096,
		Format:      "json",
	})
	return obj, err
}

// GenerateSlides outlines a slide deck.
func (s *Service) GenerateSlides(ctx context.Context, req SlideRequest) (domain.RecoveredObject, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return domain.RecoveredObject{}, appErrors.NewValidationError("topic is required")
	}
	if req.SlideCount < 0 {
		return domain.RecoveredObject{}, appErrors.NewValidationError("slideCount must not be negative")
	}
	ctx, span := s.tracer.Start(ctx, "generation.GenerateSlides",
		trace.WithAttributes(attribute.String("topic", req.Topic)))
	defer span.End()

	obj, _, err := s.generate(ctx, buildSlidesPrompt(req), domain.KindSlideOutline, llm.CompletionOptions{
		Temperature: 0.5,
		MaxTokens:   2048,
		Format:      "json",
	})
	return obj, err
}

// Recover runs the pipeline on text the caller already holds.
func (s *Service) Recover(text string, kind domain.Kind) domain.RecoveredObject {
	return s.pipeline.Recover(text, kind)
}

// SearchResources suggests resources for the query, serving fresh cached
// results when possible. Identical concurrent searches share one set of
// model calls. Results are cached only when every model call returned.
func (s *Service) SearchResources(ctx context.Context, q ResourceQuery) (*ResourceSearchResult, error) {
	if strings.TrimSpace(q.Query) == "" && len(nonBlank(q.TopicIDs)) == 0 {
		return nil, appErrors.NewValidationError("query or topicIds is required")
	}
	if q.Limit < 0 {
		return nil, appErrors.NewValidationError("limit must not be negative")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "generation.SearchResources",
		trace.WithAttributes(
			attribute.Int("topics", len(q.TopicIDs)),
			attribute.Bool("require_real_ids", q.RequireRealIDs),
		))
	defer span.End()

	fp := cache.Fingerprint(q.TopicIDs, q.Query, q.ResultType, q.Limit)
	if objects, ok := s.cache.Lookup(ctx, fp, cache.ReadOptions{RequireRealIDs: q.RequireRealIDs}); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return &ResourceSearchResult{Objects: objects, Cached: true}, nil
	}

	for {
		ch := s.flights.DoChan(fp, func() (interface{}, error) {
			return s.searchUncached(ctx, fp, q)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				// The flight belonged to a caller that gave up; ours is still live.
				if isContextError(res.Err) && ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			objects := res.Val.([]domain.RecoveredObject)
			if res.Shared {
				objects = cloneObjects(objects)
			}
			return &ResourceSearchResult{Objects: objects}, nil
		}
	}
}

func (s *Service) searchUncached(ctx context.Context, fp string, q ResourceQuery) ([]domain.RecoveredObject, error) {
	topics := nonBlank(q.TopicIDs)
	if len(topics) == 0 {
		topics = []string{""}
	}

	objects := make([]domain.RecoveredObject, len(topics))
	complete := make([]bool, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	for i, topicID := range topics {
		i, topicID := i, topicID
		g.Go(func() error {
			obj, ok, err := s.generate(gctx, buildResourcePrompt(topicID, q), domain.KindResourceList, llm.CompletionOptions{
				Temperature: 0.4,
				MaxTokens:   1024,
				Format:      "json",
			})
			if err != nil {
				return err
			}
			objects[i] = s.finishResources(obj, q.Limit)
			complete[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, ok := range complete {
		if !ok {
			s.logger.Debug("resource search not cached: model call failed", zap.String("fingerprint", fp))
			return objects, nil
		}
	}
	if err := s.cache.Put(ctx, fp, objects); err != nil {
		s.logger.Warn("failed to cache resource search", zap.String("fingerprint", fp), zap.Error(err))
	}
	return objects, nil
}

// generate calls the model and recovers its answer as kind. complete is
// false when the model failed and the result came from empty input. The
// only error is the context's.
func (s *Service) generate(ctx context.Context, prompt string, kind domain.Kind, opts llm.CompletionOptions) (obj domain.RecoveredObject, complete bool, err error) {
	text, err := s.generator.Generate(ctx, prompt, opts)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.RecoveredObject{}, false, ctxErr
	}
	if err != nil {
		if isContextError(err) {
			return domain.RecoveredObject{}, false, err
		}
		s.logger.Warn("generation failed, reconstructing from empty response",
			zap.String("kind", string(kind)), zap.Error(err))
		return s.pipeline.Recover("", kind), false, nil
	}

	obj = s.pipeline.RecoverResponse(domain.RawModelResponse{
		Prompt:     prompt,
		Text:       text,
		ReceivedAt: s.now(),
	}, kind)
	return obj, true, nil
}

// finishResources truncates to limit and gives every suggestion an id.
func (s *Service) finishResources(obj domain.RecoveredObject, limit int) domain.RecoveredObject {
	list, ok := obj.ResourceList()
	if !ok {
		return obj
	}
	if limit > 0 && len(list.Resources) > limit {
		list.Resources = list.Resources[:limit]
	}
	for i := range list.Resources {
		if list.Resources[i].ID == "" {
			list.Resources[i].ID = uuid.NewString()
		}
	}
	return obj
}

func cloneObjects(objects []domain.RecoveredObject) []domain.RecoveredObject {
	out := make([]domain.RecoveredObject, len(objects))
	for i, obj := range objects {
		out[i] = obj
		if list, ok := obj.ResourceList(); ok {
			out[i].Payload = &domain.ResourceList{
				Resources: append([]domain.ResourceSuggestion(nil), list.Resources...),
			}
		}
	}
	return out
}

func nonBlank(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
