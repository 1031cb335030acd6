// Package bufpool provides size-bucketed byte-slice pooling so the
// inbound buffer's payload growth doesn't allocate on every partial
// read. Bucket sizes are tuned for MQTT payloads rather than block I/O.
//
// Uses the *[]byte indirection to avoid the extra allocation sync.Pool
// would otherwise incur boxing a []byte into the any it stores.
package bufpool

import "sync"

// Bucket sizes, in bytes.
const (
	Size2K   = 2 * 1024
	Size8K   = 8 * 1024
	Size32K  = 32 * 1024
	Size128K = 128 * 1024
)

var pool = struct {
	p2k   sync.Pool
	p8k   sync.Pool
	p32k  sync.Pool
	p128k sync.Pool
}{
	p2k:   sync.Pool{New: func() any { b := make([]byte, Size2K); return &b }},
	p8k:   sync.Pool{New: func() any { b := make([]byte, Size8K); return &b }},
	p32k:  sync.Pool{New: func() any { b := make([]byte, Size32K); return &b }},
	p128k: sync.Pool{New: func() any { b := make([]byte, Size128K); return &b }},
}

// Get returns a buffer of at least size bytes. Buffers larger than
// Size128K are allocated directly and never pooled. Callers must call
// Put when done with a pooled buffer (Put is a no-op for non-pooled
// sizes).
func Get(size int) []byte {
	switch {
	case size <= Size2K:
		return (*pool.p2k.Get().(*[]byte))[:size]
	case size <= Size8K:
		return (*pool.p8k.Get().(*[]byte))[:size]
	case size <= Size32K:
		return (*pool.p32k.Get().(*[]byte))[:size]
	case size <= Size128K:
		return (*pool.p128k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns buf to the pool matching its capacity. Buffers whose
// capacity doesn't exactly match a bucket size (including the
// above-Size128K fallback) are simply dropped for GC.
func Put(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case Size2K:
		pool.p2k.Put(&buf)
	case Size8K:
		pool.p8k.Put(&buf)
	case Size32K:
		pool.p32k.Put(&buf)
	case Size128K:
		pool.p128k.Put(&buf)
	}
}
