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
	resumeSavesTotal        atomic.Uint64
	resumeSaveFailuresTotal atomic.Uint64
	remoteAppliedTotal      atomic.Uint64
	remoteDiscardedTotal    atomic.Uint64
	resyncTotal             atomic.Uint64
	rateLimitedTotal        atomic.Uint64
	sessionsOpen            atomic.Int64

	saveDuration = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000})
)

// IncSaves increments the successful save counter.
func IncSaves() {
	resumeSavesTotal.Add(1)
}

// IncSaveFailures increments the failed save counter.
func IncSaveFailures() {
	resumeSaveFailuresTotal.Add(1)
}

// IncRemoteApplied counts realtime events that replaced a working document.
func IncRemoteApplied() {
	remoteAppliedTotal.Add(1)
}

// IncRemoteDiscarded counts realtime events older than the working document.
func IncRemoteDiscarded() {
	remoteDiscardedTotal.Add(1)
}

// IncResyncs counts store reloads triggered by a transport reconnect.
func IncResyncs() {
	resyncTotal.Add(1)
}

// IncRateLimited counts requests rejected by the rate limiter.
func IncRateLimited() {
	rateLimitedTotal.Add(1)
}

// SessionOpened increments the open editor sessions gauge.
func SessionOpened() {
	sessionsOpen.Add(1)
}

// SessionClosed decrements the open editor sessions gauge.
func SessionClosed() {
	sessionsOpen.Add(-1)
}

// ObserveSaveDurationMs records a save duration in milliseconds.
func ObserveSaveDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	saveDuration.Observe(value)
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
	writeCounter(&buf, "resume_saves_total", "Total resume saves written to the store", resumeSavesTotal.Load())
	writeCounter(&buf, "resume_save_failures_total", "Total resume saves that failed", resumeSaveFailuresTotal.Load())
	writeCounter(&buf, "remote_events_applied_total", "Realtime events that replaced the working document", remoteAppliedTotal.Load())
	writeCounter(&buf, "remote_events_discarded_total", "Realtime events discarded as stale", remoteDiscardedTotal.Load())
	writeCounter(&buf, "resume_resyncs_total", "Store reloads after a realtime reconnect", resyncTotal.Load())
	writeCounter(&buf, "http_rate_limited_total", "Requests rejected by the rate limiter", rateLimitedTotal.Load())
	writeGauge(&buf, "editor_sessions_open", "Editor sessions currently open", sessionsOpen.Load())
	writeHistogram(&buf, "resume_save_duration_ms", "Resume save duration in milliseconds", saveDuration.Snapshot())
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

// Observe places value in the first bucket whose bound it does not exceed.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
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

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
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
