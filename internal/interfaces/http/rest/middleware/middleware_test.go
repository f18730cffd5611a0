package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordedRequest struct {
	method, route, status string
}

type fakeRecorder struct {
	requests []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, route, status string, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, route, status})
}

func newTestRouter(logger *zap.Logger, recorder RequestRecorder) http.Handler {
	r := chi.NewRouter()
	r.Use(Logger(logger))
	r.Use(Metrics(recorder))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	return r
}

func TestLoggerLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := newTestRouter(zap.New(core), &fakeRecorder{})

	tests := []struct {
		path  string
		level zapcore.Level
	}{
		{"/health", zapcore.DebugLevel},
		{"/items/1", zapcore.InfoLevel},
		{"/missing", zapcore.WarnLevel},
		{"/boom", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
			entries := logs.TakeAll()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, tt.path, entries[0].ContextMap()["path"])
		})
	}
}

func TestMetricsGroupsByRoutePattern(t *testing.T) {
	recorder := &fakeRecorder{}
	router := newTestRouter(zap.NewNop(), recorder)

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, recorder.requests, 3)
	assert.Equal(t, recordedRequest{"GET", "/items/{id}", "200"}, recorder.requests[0])
	assert.Equal(t, recordedRequest{"GET", "/items/{id}", "200"}, recorder.requests[1])
	assert.Equal(t, "404", recorder.requests[2].status)
}
