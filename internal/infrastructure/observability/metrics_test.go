package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecraft-backend/internal/domain"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("coursecraft")
	b := NewCollector("coursecraft")

	a.RecordRecovery(domain.KindTopic, domain.TierRepaired)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Recoveries.WithLabelValues("topic", "repaired")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Recoveries.WithLabelValues("topic", "repaired")))
}

func TestRecorders(t *testing.T) {
	c := NewCollector("coursecraft")

	c.RecordCacheRequest("hit")
	c.RecordCacheRequest("hit")
	c.RecordCacheEvictions(3)
	c.RecordConflict("link")
	c.RecordVersionCreated()
	c.RecordUpstreamFailure()
	c.RecordDBOperation("FindContent", errors.New("x"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.CacheEvictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TransactionConflicts.WithLabelValues("link")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.VersionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.UpstreamFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DBOperations.WithLabelValues("FindContent", "error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("coursecraft")
	c.RecordRecovery(domain.KindContentDraft, domain.TierHeuristic)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coursecraft_recovery_total{kind="content_draft",tier="heuristic"} 1`)
}
