// Package bufpool provides pooled byte slices for the chunked read/write
// paths, avoiding per-chunk allocations on the hot path between the Task
// Runner and the Async Reader/Writer.
//
// Buckets are sized around the SRT payload MTU (~1316 bytes) and the
// default read-aggregation buffer (64KB): 2KB covers a single MTU chunk
// plus framing slack, 8KB and 32KB cover small aggregated reads, and 64KB
// matches constants.DefaultReadBufferSize.
package bufpool

import "sync"

const (
	size2k  = 2 * 1024
	size8k  = 8 * 1024
	size32k = 32 * 1024
	size64k = 64 * 1024
)

var globalPool = struct {
	pool2k  sync.Pool
	pool8k  sync.Pool
	pool32k sync.Pool
	pool64k sync.Pool
}{
	pool2k:  sync.Pool{New: func() any { b := make([]byte, size2k); return &b }},
	pool8k:  sync.Pool{New: func() any { b := make([]byte, size8k); return &b }},
	pool32k: sync.Pool{New: func() any { b := make([]byte, size32k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

// Get returns a pooled buffer of at least the requested size, sliced down
// to exactly size. Caller must call Put when done.
func Get(size uint32) []byte {
	switch {
	case size <= size2k:
		return (*globalPool.pool2k.Get().(*[]byte))[:size]
	case size <= size8k:
		return (*globalPool.pool8k.Get().(*[]byte))[:size]
	case size <= size32k:
		return (*globalPool.pool32k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer to the pool. Buffers whose capacity doesn't match a
// standard bucket (e.g. oversized reads) are simply dropped.
func Put(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size2k:
		globalPool.pool2k.Put(&buf)
	case size8k:
		globalPool.pool8k.Put(&buf)
	case size32k:
		globalPool.pool32k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	}
}
