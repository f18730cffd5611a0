// Package cache stores recent recovery results keyed by a request
// fingerprint. Entries expire after a TTL, checked lazily on read, and the
// number of entries is bounded with oldest-created-first eviction.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/infrastructure/concurrency"
)

// Lookup results reported to the Recorder.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultExpired = "expired"
	ResultBypass  = "bypass"
)

// Entry is one cached result set.
type Entry struct {
	Fingerprint string                   `json:"fingerprint"`
	Objects     []domain.RecoveredObject `json:"objects"`
	CreatedAt   time.Time                `json:"createdAt"`
}

// EntryStore persists entries. Implementations keep entries ordered by
// creation so the oldest can be evicted.
type EntryStore interface {
	Get(ctx context.Context, fingerprint string) (*Entry, bool, error)
	// Put replaces any entry under the same fingerprint, then evicts the
	// oldest-created entries until at most maxEntries remain.
	Put(ctx context.Context, entry *Entry, maxEntries int) (evicted int, err error)
	Delete(ctx context.Context, fingerprint string) error
	Len(ctx context.Context) (int, error)
}

// Recorder receives cache statistics.
type Recorder interface {
	RecordCacheRequest(result string)
	RecordCacheEvictions(n int)
}

// ReadOptions tunes a single lookup.
type ReadOptions struct {
	// RequireRealIDs forces a miss: cached results may carry placeholder
	// identifiers produced for a less strict request.
	RequireRealIDs bool
}

// FingerprintCache is safe for concurrent use. Operations on the same
// fingerprint are serialized; different fingerprints proceed in parallel.
type FingerprintCache struct {
	store      EntryStore
	ttl        time.Duration
	maxEntries int
	locks      *concurrency.KeyedMutex
	now        func() time.Time
	recorder   Recorder
	logger     *zap.Logger
}

// Option configures a FingerprintCache.
type Option func(*FingerprintCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *FingerprintCache) { c.now = now }
}

// WithRecorder reports hits, misses and evictions.
func WithRecorder(r Recorder) Option {
	return func(c *FingerprintCache) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *FingerprintCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a FingerprintCache over store.
func New(store EntryStore, ttl time.Duration, maxEntries int, opts ...Option) *FingerprintCache {
	c := &FingerprintCache{
		store:      store,
		ttl:        ttl,
		maxEntries: maxEntries,
		locks:      concurrency.NewKeyedMutex(),
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the objects cached under fingerprint, or false when absent
// or expired. Store errors are logged and treated as a miss.
func (c *FingerprintCache) Get(ctx context.Context, fingerprint string) ([]domain.RecoveredObject, bool) {
	return c.Lookup(ctx, fingerprint, ReadOptions{})
}

// Lookup is Get with per-request read options.
func (c *FingerprintCache) Lookup(ctx context.Context, fingerprint string, opts ReadOptions) ([]domain.RecoveredObject, bool) {
	if opts.RequireRealIDs {
		c.record(ResultBypass)
		c.logger.Debug("cache bypassed", zap.String("fingerprint", fingerprint))
		return nil, false
	}

	unlock := c.locks.Lock(fingerprint)
	defer unlock()

	entry, ok, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		c.record(ResultMiss)
		return nil, false
	}
	if !ok {
		c.record(ResultMiss)
		c.logger.Debug("cache miss", zap.String("fingerprint", fingerprint))
		return nil, false
	}

	if c.expired(entry) {
		if err := c.store.Delete(ctx, fingerprint); err != nil {
			c.logger.Warn("failed to purge expired cache entry", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		c.record(ResultExpired)
		c.logger.Debug("cache entry expired", zap.String("fingerprint", fingerprint),
			zap.Duration("age", c.now().Sub(entry.CreatedAt)))
		return nil, false
	}

	c.record(ResultHit)
	c.logger.Debug("cache hit", zap.String("fingerprint", fingerprint), zap.Int("objects", len(entry.Objects)))
	return entry.Objects, true
}

// Put stores objects under fingerprint, replacing any previous entry and
// evicting the oldest entries beyond the configured bound.
func (c *FingerprintCache) Put(ctx context.Context, fingerprint string, objects []domain.RecoveredObject) error {
	unlock := c.locks.Lock(fingerprint)
	defer unlock()

	entry := &Entry{
		Fingerprint: fingerprint,
		Objects:     objects,
		CreatedAt:   c.now(),
	}
	evicted, err := c.store.Put(ctx, entry, c.maxEntries)
	if err != nil {
		return err
	}
	if evicted > 0 {
		c.logger.Debug("cache entries evicted", zap.Int("count", evicted))
		if c.recorder != nil {
			c.recorder.RecordCacheEvictions(evicted)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *FingerprintCache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}

func (c *FingerprintCache) expired(e *Entry) bool {
	return !c.now().Before(e.CreatedAt.Add(c.ttl))
}

func (c *FingerprintCache) record(result string) {
	if c.recorder != nil {
		c.recorder.RecordCacheRequest(result)
	}
}

func encodeEntry(e *Entry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
