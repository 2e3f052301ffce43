package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngest(1, 0, 1, 0, time.Millisecond, nil)
		m.ObserveSearch("contains", 1, false, false, time.Millisecond, nil)
		m.SetIndexSize(1, 1)
	})
}

func TestObserveIngest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveIngest(10, 2, 7, 1, time.Millisecond, nil)
	m.ObserveIngest(5, 0, 3, 0, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 10.0, testutil.ToFloat64(m.RecordsIngestedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsDeletedTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.WordsCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WordsRemovedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestBatchesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestBatchesTotal.WithLabelValues("error")))
}

func TestObserveSearch(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSearch("startsWith", 3, false, false, time.Millisecond, nil)
	m.ObserveSearch("startsWith", 3, true, false, time.Millisecond, nil)
	m.ObserveSearch("contains", 0, false, true, time.Millisecond, nil)
	m.ObserveSearch("contains", 0, false, false, time.Millisecond, nil)
	m.ObserveSearch("contains", 0, false, false, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CacheMissesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("startsWith", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("contains", "below_floor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("contains", "zero_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("contains", "error")))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetIndexSize(42, 7)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "sift_indexed_records 42"), body)
	assert.True(t, strings.Contains(body, "sift_indexed_words 7"), body)
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
