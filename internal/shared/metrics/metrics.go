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
	sessionsStartedTotal  atomic.Uint64
	sessionsFinishedTotal atomic.Uint64
	sessionsFailedTotal   atomic.Uint64
	refundsIssuedTotal    atomic.Uint64

	researchCacheHitTotal  atomic.Uint64
	researchCacheMissTotal atomic.Uint64

	modelCallsSucceededTotal atomic.Uint64
	modelCallsFailedTotal    atomic.Uint64

	sessionDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncSessionStarted increments the started counter.
func IncSessionStarted() {
	sessionsStartedTotal.Add(1)
}

// IncSessionFinished increments the finished counter.
func IncSessionFinished() {
	sessionsFinishedTotal.Add(1)
}

// IncSessionFailed increments the failed counter.
func IncSessionFailed() {
	sessionsFailedTotal.Add(1)
}

// IncRefundIssued increments the refund counter.
func IncRefundIssued() {
	refundsIssuedTotal.Add(1)
}

// IncResearchCacheHit increments the cache hit counter.
func IncResearchCacheHit() {
	researchCacheHitTotal.Add(1)
}

// IncResearchCacheMiss increments the cache miss counter.
func IncResearchCacheMiss() {
	researchCacheMissTotal.Add(1)
}

// IncModelCallSucceeded increments the per-model success counter.
func IncModelCallSucceeded() {
	modelCallsSucceededTotal.Add(1)
}

// IncModelCallFailed increments the per-model failure counter.
func IncModelCallFailed() {
	modelCallsFailedTotal.Add(1)
}

// ObserveSessionDurationMs records a full session duration in milliseconds.
func ObserveSessionDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	sessionDuration.Observe(value)
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
	writeCounter(&buf, "prediction_sessions_started_total", "Total prediction sessions started", sessionsStartedTotal.Load())
	writeCounter(&buf, "prediction_sessions_finished_total", "Total prediction sessions finished", sessionsFinishedTotal.Load())
	writeCounter(&buf, "prediction_sessions_failed_total", "Total prediction sessions failed", sessionsFailedTotal.Load())
	writeCounter(&buf, "credit_refunds_issued_total", "Total compensating credit refunds issued", refundsIssuedTotal.Load())
	writeCounter(&buf, "research_cache_hit_total", "Total research cache hits", researchCacheHitTotal.Load())
	writeCounter(&buf, "research_cache_miss_total", "Total research cache misses", researchCacheMissTotal.Load())
	writeCounter(&buf, "model_calls_succeeded_total", "Total model generation calls succeeded", modelCallsSucceededTotal.Load())
	writeCounter(&buf, "model_calls_failed_total", "Total model generation calls failed", modelCallsFailedTotal.Load())
	writeHistogram(&buf, "prediction_session_duration_ms", "Prediction session duration in milliseconds", sessionDuration.Snapshot())
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
