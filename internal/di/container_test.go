package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecraft-backend/internal/config"
	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/service/ledger"
	"coursecraft-backend/internal/service/link"
)

func TestInitializeContainerWithDefaults(t *testing.T) {
	cfg := config.Default()
	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	rec := httptest.NewRecorder()
	container.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	container.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContainerSharesStoreBetweenServices(t *testing.T) {
	container, cleanup, err := InitializeContainer(context.Background(), config.Default())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	ctx := context.Background()

	_, err = container.Ledger.CreateContent(ctx, ledger.NewContent{ID: "c-1", Title: "Loops"})
	require.NoError(t, err)
	_, err = container.Links.RegisterResource(ctx, link.NewResource{ID: "r-1", Title: "Tour"})
	require.NoError(t, err)

	res, err := container.Links.Link(ctx, "r-1", "c-1", string(domain.LinkPrimary))
	require.NoError(t, err)
	assert.Equal(t, "c-1", res.ContentID)

	content, err := container.Ledger.GetContent(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1"}, content.ResourceIDs)
}

func TestInitializeContainerWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Cache.Backend = config.BackendRedis
	cfg.Cache.RedisAddr = mr.Addr()

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	require.NoError(t, container.Cache.Put(context.Background(), "fp", []domain.RecoveredObject{}))
	n, err := container.Cache.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInitializeContainerFailsOnUnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = config.BackendRedis
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)
}
