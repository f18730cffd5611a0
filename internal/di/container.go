// Package di wires the application's dependencies with google/wire.
package di

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coursecraft-backend/internal/config"
	"coursecraft-backend/internal/infrastructure/cache"
	"coursecraft-backend/internal/infrastructure/observability"
	"coursecraft-backend/internal/infrastructure/tracing"
	"coursecraft-backend/internal/recovery"
	"coursecraft-backend/internal/repository"
	"coursecraft-backend/internal/service/generation"
	"coursecraft-backend/internal/service/ledger"
	"coursecraft-backend/internal/service/link"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Collector
	Tracing    *tracing.TracerProvider
	Store      repository.Store
	Cache      *cache.FingerprintCache
	Pipeline   *recovery.Pipeline
	Generation *generation.Service
	Links      *link.Manager
	Ledger     *ledger.Ledger
	Router     *chi.Mux
}
