// Package rest exposes the course services over HTTP with chi.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"coursecraft-backend/internal/interfaces/http/rest/handlers"
	"coursecraft-backend/internal/interfaces/http/rest/middleware"
	"coursecraft-backend/pkg/errors"
)

// Router creates and configures the HTTP router
type Router struct {
	generation handlers.GenerationService
	links      handlers.LinkService
	ledger     handlers.LedgerService

	logger         *zap.Logger
	errorHandler   *errors.ErrorHandler
	allowedOrigins []string
	metrics        http.Handler
	recorder       middleware.RequestRecorder
	tracer         trace.Tracer
}

// Option configures a Router.
type Option func(*Router)

// WithMetrics serves handler at /metrics and records every request with recorder.
func WithMetrics(handler http.Handler, recorder middleware.RequestRecorder) Option {
	return func(rt *Router) {
		rt.metrics = handler
		rt.recorder = recorder
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(rt *Router) { rt.tracer = tracer }
}

func WithAllowedOrigins(origins []string) Option {
	return func(rt *Router) { rt.allowedOrigins = origins }
}

// NewRouter creates a new router instance
func NewRouter(
	generation handlers.GenerationService,
	links handlers.LinkService,
	ledger handlers.LedgerService,
	logger *zap.Logger,
	errorHandler *errors.ErrorHandler,
	opts ...Option,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Router{
		generation:     generation,
		links:          links,
		ledger:         ledger,
		logger:         logger,
		errorHandler:   errorHandler,
		allowedOrigins: []string{"http://localhost:3000"},
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.recorder != nil {
		router.Use(middleware.Metrics(rt.recorder))
	}
	if rt.tracer != nil {
		router.Use(middleware.Tracing(rt.tracer))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID", "X-Cache", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", handlers.NewHealthHandler(rt.logger).Health)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics)
	}

	generationHandler := handlers.NewGenerationHandler(rt.generation, rt.logger, rt.errorHandler)
	resourceHandler := handlers.NewResourceHandler(rt.links, rt.logger, rt.errorHandler)
	contentHandler := handlers.NewContentHandler(rt.ledger, rt.logger, rt.errorHandler)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/recover", generationHandler.Recover)
		r.Post("/syllabus/analyze", generationHandler.AnalyzeSyllabus)
		r.Post("/content/generate", generationHandler.GenerateContent)
		r.Post("/slides/generate", generationHandler.GenerateSlides)

		r.Route("/resources", func(r chi.Router) {
			r.Post("/", resourceHandler.CreateResource)
			r.Post("/search", generationHandler.SearchResources)
			r.Get("/{resourceID}", resourceHandler.GetResource)
			r.Post("/{resourceID}/link", resourceHandler.Link)
			r.Delete("/{resourceID}/link/{contentID}", resourceHandler.Unlink)
		})

		r.Route("/contents", func(r chi.Router) {
			r.Post("/", contentHandler.CreateContent)
			r.Get("/{contentID}", contentHandler.GetContent)
			r.Post("/{contentID}/versions", contentHandler.CreateVersion)
			r.Get("/{contentID}/versions", contentHandler.ListVersions)
			r.Get("/{contentID}/versions/compare", contentHandler.CompareVersions)
			r.Get("/{contentID}/versions/{number}", contentHandler.GetVersion)
		})
	})

	return router
}
