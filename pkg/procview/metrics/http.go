package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPMetrics tracks request statistics of the dashboard API.
type HTTPMetrics struct {
	requestCount      int64 // total requests
	errorCount        int64 // responses >= 400
	totalResponseTime int64 // nanoseconds
	maxResponseTime   int64 // nanoseconds
	pendingRequests   int64
	startTime         time.Time

	mu            sync.Mutex
	responseTimes []int64 // ring of recent samples
	next          int
	maxSamples    int
	routes        map[string]int64
}

func NewHTTPMetrics(maxSamples int) *HTTPMetrics {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &HTTPMetrics{
		responseTimes: make([]int64, 0, maxSamples),
		maxSamples:    maxSamples,
		startTime:     time.Now(),
		routes:        make(map[string]int64),
	}
}

// HTTPStats is a point-in-time view of HTTPMetrics.
type HTTPStats struct {
	RequestCount    int64            `json:"request_count"`
	ErrorCount      int64            `json:"error_count"`
	ErrorRate       float64          `json:"error_rate"`        // percent
	RequestRate     float64          `json:"request_rate"`      // per second
	AvgResponseTime int64            `json:"avg_response_time"` // nanoseconds
	P95ResponseTime int64            `json:"p95_response_time"` // nanoseconds
	MaxResponseTime int64            `json:"max_response_time"` // nanoseconds
	PendingRequests int64            `json:"pending_requests"`
	Routes          map[string]int64 `json:"routes"`
	Timestamp       time.Time        `json:"timestamp"`
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.status = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(data []byte) (int, error) {
	if !rw.written {
		rw.status = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(data)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack passes through to the underlying writer for websocket upgrades.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	rw.written = true
	return h.Hijack()
}

// Middleware records every request handled by next under route.
func (h *HTTPMetrics) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&h.pendingRequests, 1)
		defer atomic.AddInt64(&h.pendingRequests, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		d := time.Since(start).Nanoseconds()
		atomic.AddInt64(&h.requestCount, 1)
		atomic.AddInt64(&h.totalResponseTime, d)
		for {
			cur := atomic.LoadInt64(&h.maxResponseTime)
			if d <= cur || atomic.CompareAndSwapInt64(&h.maxResponseTime, cur, d) {
				break
			}
		}
		if rec.status >= 400 {
			atomic.AddInt64(&h.errorCount, 1)
		}

		h.mu.Lock()
		if len(h.responseTimes) < h.maxSamples {
			h.responseTimes = append(h.responseTimes, d)
		} else {
			h.responseTimes[h.next] = d
			h.next = (h.next + 1) % h.maxSamples
		}
		h.routes[route]++
		h.mu.Unlock()
	})
}

func (h *HTTPMetrics) GetStats() HTTPStats {
	requests := atomic.LoadInt64(&h.requestCount)
	errs := atomic.LoadInt64(&h.errorCount)

	stats := HTTPStats{
		RequestCount:    requests,
		ErrorCount:      errs,
		MaxResponseTime: atomic.LoadInt64(&h.maxResponseTime),
		PendingRequests: atomic.LoadInt64(&h.pendingRequests),
		Timestamp:       time.Now(),
	}

	h.mu.Lock()
	samples := make([]int64, len(h.responseTimes))
	copy(samples, h.responseTimes)
	stats.Routes = make(map[string]int64, len(h.routes))
	for k, v := range h.routes {
		stats.Routes[k] = v
	}
	start := h.startTime
	h.mu.Unlock()

	if requests > 0 {
		stats.ErrorRate = float64(errs) / float64(requests) * 100
		stats.AvgResponseTime = atomic.LoadInt64(&h.totalResponseTime) / requests
		if up := time.Since(start); up > 0 {
			stats.RequestRate = float64(requests) / up.Seconds()
		}
	}
	if len(samples) > 0 {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		stats.P95ResponseTime = samples[(len(samples)*95+99)/100-1]
	}
	return stats
}

// Reset clears all counters.
func (h *HTTPMetrics) Reset() {
	atomic.StoreInt64(&h.requestCount, 0)
	atomic.StoreInt64(&h.errorCount, 0)
	atomic.StoreInt64(&h.totalResponseTime, 0)
	atomic.StoreInt64(&h.maxResponseTime, 0)

	h.mu.Lock()
	h.responseTimes = h.responseTimes[:0]
	h.next = 0
	h.routes = make(map[string]int64)
	h.startTime = time.Now()
	h.mu.Unlock()
}
