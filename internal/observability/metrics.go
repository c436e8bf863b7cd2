package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	errorCount        map[string]int64
	emissionCount     int64
	ordersObserved    int64
	recomputeTotal    time.Duration
	cacheWriteFailure int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEmission tracks one processed order stream emission and its
// recompute duration.
func (m *Metrics) RecordEmission(orders int, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emissionCount++
	m.ordersObserved += int64(orders)
	m.recomputeTotal += duration
}

// RecordCacheWriteFailure counts rollup persistence failures; these are
// logged and dropped, never surfaced.
func (m *Metrics) RecordCacheWriteFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheWriteFailure++
}

// EmissionStats returns the emission counters for health reporting.
func (m *Metrics) EmissionStats() (emissions, orders, cacheFailures int64) {
	if m == nil {
		return 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emissionCount, m.ordersObserved, m.cacheWriteFailure
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
