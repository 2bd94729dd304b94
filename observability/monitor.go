// Package observability provides low-overhead per-route performance
// monitoring: request counts, latency, error rate, and a periodic
// bottleneck scan. Grounded on the teacher's core/observability/monitor.go.
package observability

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor tracks per-route request counts, latency, and error rate,
// and periodically scans for bottlenecks.
type Monitor struct {
	enabled  atomic.Bool
	handlers sync.Map // name -> *HandlerMetrics

	global struct {
		totalRequests atomic.Uint64
		totalDuration atomic.Uint64
	}

	bottlenecks  []Bottleneck
	bottleneckMu sync.RWMutex

	stop chan struct{}
}

// HandlerMetrics accumulates counters for one named route.
type HandlerMetrics struct {
	Name          string
	Count         atomic.Uint64
	Errors        atomic.Uint64
	TotalDuration atomic.Uint64
	MinDuration   atomic.Uint64
	MaxDuration   atomic.Uint64
}

// Bottleneck is one detected performance issue.
type Bottleneck struct {
	Type       string
	Location   string
	Severity   int
	Impact     float64
	DetectedAt time.Time
	Details    string
}

// NewMonitor creates an enabled Monitor and starts its background
// bottleneck scanner.
func NewMonitor() *Monitor {
	m := &Monitor{stop: make(chan struct{})}
	m.enabled.Store(true)
	go m.scanBottlenecks()
	return m
}

// Close stops the background scanner.
func (m *Monitor) Close() { close(m.stop) }

// RecordRequest records one completed request against name.
func (m *Monitor) RecordRequest(name string, duration time.Duration, isError bool) {
	if !m.enabled.Load() {
		return
	}

	val, _ := m.handlers.LoadOrStore(name, &HandlerMetrics{Name: name})
	metrics := val.(*HandlerMetrics)

	metrics.Count.Add(1)
	if isError {
		metrics.Errors.Add(1)
	}

	durationNs := uint64(duration.Nanoseconds())
	metrics.TotalDuration.Add(durationNs)
	updateMinMax(metrics, durationNs)

	m.global.totalRequests.Add(1)
	m.global.totalDuration.Add(durationNs)
}

func updateMinMax(m *HandlerMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if min != 0 && d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

// StartTrace returns a timestamp suitable for passing to EndTrace.
func (m *Monitor) StartTrace() int64 {
	if !m.enabled.Load() {
		return 0
	}
	return time.Now().UnixNano()
}

// EndTrace records the request named name given a StartTrace result.
func (m *Monitor) EndTrace(name string, startTime int64, isError bool) {
	if startTime == 0 {
		return
	}
	m.RecordRequest(name, time.Duration(time.Now().UnixNano()-startTime), isError)
}

func (m *Monitor) scanBottlenecks() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if !m.enabled.Load() {
				continue
			}
			found := m.detectBottlenecks()
			m.bottleneckMu.Lock()
			m.bottlenecks = found
			m.bottleneckMu.Unlock()
		}
	}
}

func (m *Monitor) detectBottlenecks() []Bottleneck {
	bottlenecks := make([]Bottleneck, 0)

	m.handlers.Range(func(_, value any) bool {
		hm := value.(*HandlerMetrics)
		count := hm.Count.Load()
		if count == 0 {
			return true
		}

		avgDuration := time.Duration(hm.TotalDuration.Load() / count)
		if avgDuration > 100*time.Millisecond {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "latency",
				Location:   hm.Name,
				Severity:   8,
				Impact:     100.0,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("high latency (%v avg)", avgDuration),
			})
		}

		if errors := hm.Errors.Load(); errors > 0 && float64(errors)/float64(count) > 0.05 {
			rate := float64(errors) / float64(count) * 100
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "errors",
				Location:   hm.Name,
				Severity:   10,
				Impact:     rate,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("%.1f%% error rate", rate),
			})
		}

		return true
	})

	return bottlenecks
}

// GetBottlenecks returns the most recently detected bottlenecks.
func (m *Monitor) GetBottlenecks() []Bottleneck {
	m.bottleneckMu.RLock()
	defer m.bottleneckMu.RUnlock()
	return append([]Bottleneck{}, m.bottlenecks...)
}

// Enable turns monitoring on.
func (m *Monitor) Enable() { m.enabled.Store(true) }

// Disable turns monitoring off; RecordRequest becomes a no-op.
func (m *Monitor) Disable() { m.enabled.Store(false) }

// Stats reports a snapshot of global counters and per-handler metrics
// for diagnostics.
func (m *Monitor) Stats() map[string]any {
	handlers := make(map[string]any)
	m.handlers.Range(func(_, value any) bool {
		hm := value.(*HandlerMetrics)
		count := hm.Count.Load()
		var avg time.Duration
		if count > 0 {
			avg = time.Duration(hm.TotalDuration.Load() / count)
		}
		handlers[hm.Name] = map[string]any{
			"count":        count,
			"errors":       hm.Errors.Load(),
			"avg_duration": avg.String(),
			"min_duration": time.Duration(hm.MinDuration.Load()).String(),
			"max_duration": time.Duration(hm.MaxDuration.Load()).String(),
		}
		return true
	})

	return map[string]any{
		"total_requests": m.global.totalRequests.Load(),
		"handlers":       handlers,
		"bottlenecks":    m.GetBottlenecks(),
	}
}
