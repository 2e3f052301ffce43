// Package metrics defines the Prometheus collectors used by the ingestion
// pipeline and the searcher, and exposes an HTTP handler for scraping.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for sift.
type Metrics struct {
	RecordsIngestedTotal prometheus.Counter
	RecordsDeletedTotal  prometheus.Counter
	IngestBatchesTotal   *prometheus.CounterVec
	IngestDuration       prometheus.Histogram
	WordsCreatedTotal    prometheus.Counter
	WordsRemovedTotal    prometheus.Counter
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexedRecords       prometheus.Gauge
	IndexedWords         prometheus.Gauge
}

// New creates all collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them through Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sift_records_ingested_total",
				Help: "Total records written by the ingestion pipeline.",
			},
		),
		RecordsDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sift_records_deleted_total",
				Help: "Total records removed by the ingestion pipeline.",
			},
		),
		IngestBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sift_ingest_batches_total",
				Help: "Total ingestion batches by status (ok, error).",
			},
			[]string{"status"},
		),
		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sift_ingest_duration_seconds",
				Help:    "Ingestion batch latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		WordsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sift_words_created_total",
				Help: "Total distinct words added to the word index.",
			},
		),
		WordsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sift_words_removed_total",
				Help: "Total words dropped from the word index after losing their last posting.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sift_search_queries_total",
				Help: "Total search queries by mode and result type (hit, zero_result, below_floor, error).",
			},
			[]string{"mode", "result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sift_search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"mode", "cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sift_search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"mode"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sift_cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sift_cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		IndexedRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sift_indexed_records",
				Help: "Number of records in the store at the last stats refresh.",
			},
		),
		IndexedWords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sift_indexed_words",
				Help: "Number of distinct words in the index at the last stats refresh.",
			},
		),
	}

	reg.MustRegister(
		m.RecordsIngestedTotal,
		m.RecordsDeletedTotal,
		m.IngestBatchesTotal,
		m.IngestDuration,
		m.WordsCreatedTotal,
		m.WordsRemovedTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexedRecords,
		m.IndexedWords,
	)

	return m
}

// ObserveIngest records one ingestion or deletion batch.
func (m *Metrics) ObserveIngest(written, deleted, wordsCreated, wordsRemoved int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.IngestDuration.Observe(took.Seconds())
	if err != nil {
		m.IngestBatchesTotal.WithLabelValues("error").Inc()
		return
	}
	m.IngestBatchesTotal.WithLabelValues("ok").Inc()
	m.RecordsIngestedTotal.Add(float64(written))
	m.RecordsDeletedTotal.Add(float64(deleted))
	m.WordsCreatedTotal.Add(float64(wordsCreated))
	m.WordsRemovedTotal.Add(float64(wordsRemoved))
}

// ObserveSearch records one search query.
func (m *Metrics) ObserveSearch(mode string, results int, cached bool, belowFloor bool, took time.Duration, err error) {
	if m == nil {
		return
	}
	cacheStatus := "miss"
	if cached {
		cacheStatus = "hit"
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
	m.SearchLatency.WithLabelValues(mode, cacheStatus).Observe(took.Seconds())

	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case belowFloor:
		resultType = "below_floor"
	case results == 0:
		resultType = "zero_result"
	}
	m.SearchQueriesTotal.WithLabelValues(mode, resultType).Inc()
	if err == nil {
		m.SearchResultsCount.WithLabelValues(mode).Observe(float64(results))
	}
}

// SetIndexSize records the current record and word counts.
func (m *Metrics) SetIndexSize(records, words int64) {
	if m == nil {
		return
	}
	m.IndexedRecords.Set(float64(records))
	m.IndexedWords.Set(float64(words))
}

// Handler returns the Prometheus scrape HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
