// Package constants holds the fixed limits that govern the buffering
// core. They mirror the hard-coded limits of the original C
// implementation rather than being independently chosen.
package constants

// CallStackTrace limits.
const (
	// MaxStackDepth is the number of stack frames recorded per thread.
	MaxStackDepth = 50

	// MaxFunctionNameLength is the longest function name recorded; longer
	// names are truncated.
	MaxFunctionNameLength = 30

	// MaxThreads bounds the number of distinct OS threads the tracer can
	// track. Slots are never recycled once assigned.
	MaxThreads = 255
)

// InboundBuffer / OutboundBuffer limits.
const (
	// DefaultInboundBufferSize is the payload buffer size requested for
	// each newly allocated default queue (the pool may hand back more
	// capacity).
	DefaultInboundBufferSize = 1000

	// FixedHeaderSize is the maximum size of an MQTT fixed header: one
	// type/flags byte plus up to four remaining-length continuation
	// bytes.
	FixedHeaderSize = 5

	// MaxScatterSegments bounds the number of iovec-style segments a
	// single pending write may hold.
	MaxScatterSegments = 4
)

// NoSocket is the sentinel descriptor value meaning "no socket", used by
// the default-queue promotion logic to detect an unused scratch queue.
const NoSocket = -1
