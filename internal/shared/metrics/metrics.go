package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	cacheHitsTotal        atomic.Uint64
	cacheMissesTotal      atomic.Uint64
	analyzerCallsTotal    atomic.Uint64
	analyzerFailuresTotal atomic.Uint64
	resultsPersistedTotal atomic.Uint64
	batchesAnalyzedTotal  atomic.Uint64

	batchDuration    = newHistogram([]float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	analyzerDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// AddCacheHits adds n to the cache hit counter.
func AddCacheHits(n int) {
	if n > 0 {
		cacheHitsTotal.Add(uint64(n))
	}
}

// AddCacheMisses adds n to the cache miss counter.
func AddCacheMisses(n int) {
	if n > 0 {
		cacheMissesTotal.Add(uint64(n))
	}
}

// IncAnalyzerCall increments the external analyzer call counter.
func IncAnalyzerCall() {
	analyzerCallsTotal.Add(1)
}

// IncAnalyzerFailure increments the external analyzer failure counter.
func IncAnalyzerFailure() {
	analyzerFailuresTotal.Add(1)
}

// AddResultsPersisted adds n to the persisted results counter.
func AddResultsPersisted(n int) {
	if n > 0 {
		resultsPersistedTotal.Add(uint64(n))
	}
}

// IncBatchAnalyzed increments the completed batch counter.
func IncBatchAnalyzed() {
	batchesAnalyzedTotal.Add(1)
}

// ObserveBatchDurationMs records an end-to-end batch duration in milliseconds.
func ObserveBatchDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	batchDuration.Observe(value)
}

// ObserveAnalyzerDurationMs records an analyzer call duration in milliseconds.
func ObserveAnalyzerDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analyzerDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_cache_hits_total", "Total cache hits during batch resolution", cacheHitsTotal.Load())
	writeCounter(&buf, "analysis_cache_misses_total", "Total cache misses during batch resolution", cacheMissesTotal.Load())
	writeCounter(&buf, "analyzer_calls_total", "Total external analyzer calls", analyzerCallsTotal.Load())
	writeCounter(&buf, "analyzer_failures_total", "Total external analyzer failures", analyzerFailuresTotal.Load())
	writeCounter(&buf, "analysis_results_persisted_total", "Total analysis records persisted", resultsPersistedTotal.Load())
	writeCounter(&buf, "batches_analyzed_total", "Total batches analyzed", batchesAnalyzedTotal.Load())
	writeHistogram(&buf, "batch_duration_ms", "End-to-end batch duration in milliseconds", batchDuration.Snapshot())
	writeHistogram(&buf, "analyzer_duration_ms", "External analyzer call duration in milliseconds", analyzerDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
