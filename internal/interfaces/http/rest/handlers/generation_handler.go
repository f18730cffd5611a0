package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/service/generation"
	appErrors "coursecraft-backend/pkg/errors"
)

// GenerationService is the subset of generation.Service the handlers use.
type GenerationService interface {
	AnalyzeSyllabus(ctx context.Context, syllabus string) (domain.RecoveredObject, error)
	GenerateContent(ctx context.Context, req generation.ContentRequest) (domain.RecoveredObject, error)
	GenerateSlides(ctx context.Context, req generation.SlideRequest) (domain.RecoveredObject, error)
	Recover(text string, kind domain.Kind) domain.RecoveredObject
	SearchResources(ctx context.Context, q generation.ResourceQuery) (*generation.ResourceSearchResult, error)
}

// GenerationHandler handles recovery and generation requests.
type GenerationHandler struct {
	service      GenerationService
	logger       *zap.Logger
	errorHandler *appErrors.ErrorHandler
}

// NewGenerationHandler creates a new generation handler
func NewGenerationHandler(service GenerationService, logger *zap.Logger, errorHandler *appErrors.ErrorHandler) *GenerationHandler {
	return &GenerationHandler{service: service, logger: logger, errorHandler: errorHandler}
}

// RecoverRequest carries raw model text to recover as kind.
type RecoverRequest struct {
	Kind string `json:"kind" validate:"required"`
	Text string `json:"text"`
}

// Recover handles POST /recover. Empty text is allowed and yields the
// kind's default object.
func (h *GenerationHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		h.errorHandler.Handle(w, r, appErrors.NewValidationError(err.Error()))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, h.service.Recover(req.Text, kind))
}

// AnalyzeSyllabusRequest carries the syllabus text to analyze.
type AnalyzeSyllabusRequest struct {
	Text string `json:"text" validate:"required"`
}

// AnalyzeSyllabus handles POST /syllabus/analyze
func (h *GenerationHandler) AnalyzeSyllabus(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeSyllabusRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	obj, err := h.service.AnalyzeSyllabus(r.Context(), req.Text)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, obj)
}

// GenerateContentRequest asks for lecture content on a topic.
type GenerateContentRequest struct {
	Topic     string   `json:"topic" validate:"required"`
	Subtopics []string `json:"subtopics"`
	Audience  string   `json:"audience"`
}

// GenerateContent handles POST /content/generate
func (h *GenerationHandler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	var req GenerateContentRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	obj, err := h.service.GenerateContent(r.Context(), generation.ContentRequest{
		Topic:     req.Topic,
		Subtopics: req.Subtopics,
		Audience:  req.Audience,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, obj)
}

// GenerateSlidesRequest asks for a slide outline.
type GenerateSlidesRequest struct {
	Topic      string `json:"topic" validate:"required"`
	Content    string `json:"content"`
	SlideCount int    `json:"slideCount" validate:"gte=0,lte=50"`
}

// GenerateSlides handles POST /slides/generate
func (h *GenerationHandler) GenerateSlides(w http.ResponseWriter, r *http.Request) {
	var req GenerateSlidesRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	obj, err := h.service.GenerateSlides(r.Context(), generation.SlideRequest{
		Topic:      req.Topic,
		Content:    req.Content,
		SlideCount: req.SlideCount,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, obj)
}

// SearchResourcesRequest is the body of a resource search.
type SearchResourcesRequest struct {
	TopicIDs       []string `json:"topicIds" validate:"max=20"`
	Query          string   `json:"query"`
	ResultType     string   `json:"resultType"`
	Limit          int      `json:"limit" validate:"gte=0,lte=100"`
	RequireRealIDs bool     `json:"requireRealIds"`
}

// SearchResources handles POST /resources/search
func (h *GenerationHandler) SearchResources(w http.ResponseWriter, r *http.Request) {
	var req SearchResourcesRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	result, err := h.service.SearchResources(r.Context(), generation.ResourceQuery{
		TopicIDs:       req.TopicIDs,
		Query:          req.Query,
		ResultType:     req.ResultType,
		Limit:          req.Limit,
		RequireRealIDs: req.RequireRealIDs,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if result.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}
