package pools

import (
	"runtime"
	"runtime/debug"
	"time"
)

// GCConfig holds garbage-collector tuning parameters for the raw
// listener, which allocates enough request/response scratch space that
// default GOGC can become a measurable tail-latency source under load.
type GCConfig struct {
	GOGC           int
	MemoryLimit    int64
	MinRetainExtra int64
}

// DefaultGCConfig returns settings biased toward fewer, larger GC
// pauses rather than frequent small ones.
func DefaultGCConfig() GCConfig {
	return GCConfig{
		GOGC:           200,
		MemoryLimit:    0,
		MinRetainExtra: 50 << 20,
	}
}

// ApplyGCConfig applies cfg to the running process.
func ApplyGCConfig(cfg GCConfig) {
	if cfg.GOGC > 0 {
		debug.SetGCPercent(cfg.GOGC)
	}
	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}
	if cfg.MinRetainExtra > 0 {
		runtime.GC()
		_ = make([]byte, cfg.MinRetainExtra)
	}
}

// GCStats reports a snapshot of garbage-collector behavior.
type GCStats struct {
	NumGC        uint32
	PauseTotal   time.Duration
	LastPause    time.Duration
	AvgPause     time.Duration
	AllocBytes   uint64
	TotalAlloc   uint64
	Sys          uint64
	NumGoroutine int
}

// GetGCStats returns current garbage-collector statistics.
func GetGCStats() GCStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := GCStats{
		NumGC:        ms.NumGC,
		AllocBytes:   ms.Alloc,
		TotalAlloc:   ms.TotalAlloc,
		Sys:          ms.Sys,
		NumGoroutine: runtime.NumGoroutine(),
	}

	if ms.NumGC > 0 {
		stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])

		var totalPause uint64
		numPauses := ms.NumGC
		if numPauses > 256 {
			numPauses = 256
		}
		for i := uint32(0); i < numPauses; i++ {
			totalPause += ms.PauseNs[i]
		}
		stats.PauseTotal = time.Duration(totalPause)
		if numPauses > 0 {
			stats.AvgPause = time.Duration(totalPause / uint64(numPauses))
		}
	}

	return stats
}

// OptimizeForHighThroughput biases GC toward very infrequent pauses.
func OptimizeForHighThroughput() {
	ApplyGCConfig(GCConfig{GOGC: 300, MinRetainExtra: 100 << 20})
}

// OptimizeForLowLatency biases GC toward moderate, more frequent pauses.
func OptimizeForLowLatency() {
	ApplyGCConfig(GCConfig{GOGC: 150, MinRetainExtra: 30 << 20})
}
