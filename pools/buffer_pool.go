// Package pools holds the allocation-reuse primitives server/rawloop
// needs to parse and write HTTP/1.1 frames without routing every
// request through the allocator: a tiered byte-buffer pool and a
// work-stealing pool for handlers that block.
package pools

import (
	"sync"
	"sync/atomic"
)

// Buffer pool size tiers, chosen to cover a small JSON reply, a
// typical API response, and an outlier without pooling everything at
// the largest tier.
const (
	SmallBufferSize  = 2 * 1024
	MediumBufferSize = 8 * 1024
	LargeBufferSize  = 32 * 1024
)

// BufferPool manages read/write buffers for the raw listener across
// three size tiers.
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool

	smallHits  atomic.Uint64
	mediumHits atomic.Uint64
	largeHits  atomic.Uint64
	totalGets  atomic.Uint64
}

// NewBufferPool creates an empty tiered buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, SmallBufferSize)
				return &buf
			},
		},
		medium: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, MediumBufferSize)
				return &buf
			},
		},
		large: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, LargeBufferSize)
				return &buf
			},
		},
	}
}

// Get acquires a buffer sized for estimatedSize.
func (bp *BufferPool) Get(estimatedSize int) *[]byte {
	bp.totalGets.Add(1)

	switch {
	case estimatedSize <= SmallBufferSize:
		bp.smallHits.Add(1)
		return bp.small.Get().(*[]byte)
	case estimatedSize <= MediumBufferSize:
		bp.mediumHits.Add(1)
		return bp.medium.Get().(*[]byte)
	default:
		bp.largeHits.Add(1)
		return bp.large.Get().(*[]byte)
	}
}

// Put returns buf to the tier matching its capacity. Buffers larger
// than LargeBufferSize are dropped rather than pooled.
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	*buf = (*buf)[:0]

	switch c := cap(*buf); {
	case c <= SmallBufferSize:
		bp.small.Put(buf)
	case c <= MediumBufferSize:
		bp.medium.Put(buf)
	case c <= LargeBufferSize:
		bp.large.Put(buf)
	}
}

// Stats reports pool hit counts by tier.
func (bp *BufferPool) Stats() BufferStats {
	total := bp.totalGets.Load()
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(bp.smallHits.Load()+bp.mediumHits.Load()+bp.largeHits.Load()) / float64(total)
	}
	return BufferStats{
		SmallHits:  bp.smallHits.Load(),
		MediumHits: bp.mediumHits.Load(),
		LargeHits:  bp.largeHits.Load(),
		TotalGets:  total,
		HitRate:    hitRate,
	}
}

// BufferStats reports buffer pool hit counts.
type BufferStats struct {
	SmallHits  uint64
	MediumHits uint64
	LargeHits  uint64
	TotalGets  uint64
	HitRate    float64
}
