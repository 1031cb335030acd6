// Package outbound implements the pending-write queue that lets a short
// scatter/gather write resume at the correct offset and tail segments
// on the next writable event.
//
// Buffer is not itself mutex-protected, for the same reason as
// internal/inbound: the caller's socket-table lock must already be
// held across every operation.
package outbound

import (
	"fmt"

	"github.com/mqttbuf/mqttbuf/internal/bufpool"
	"github.com/mqttbuf/mqttbuf/internal/constants"
	"github.com/mqttbuf/mqttbuf/internal/interfaces"
	"github.com/mqttbuf/mqttbuf/internal/list"
)

// Segment is one scatter/gather piece of a pending write. Owned
// replaces the original C frees[] parallel array: a segment is either
// a borrow the caller still owns, or data the Buffer must release on
// completion.
type Segment struct {
	Data  []byte
	Owned bool
}

// Write is one PendingWrite: a frame whose write to the kernel
// returned fewer bytes than requested.
type Write struct {
	Socket     int
	Segments   []Segment
	Total      int
	Sent       int
	TLSContext any // opaque TLS session handle, nil when TLS is disabled
}

// Buffer is the OutboundBuffer: a list of pending writes keyed by
// socket.
type Buffer struct {
	writes *list.List[*Write]
	log    interfaces.Logger
	obs    interfaces.Observer
}

// New returns an empty OutboundBuffer.
func New(log interfaces.Logger, obs interfaces.Observer) *Buffer {
	return &Buffer{writes: list.New[*Write](), log: log, obs: obs}
}

func (b *Buffer) fatal(op string, socket int, msg string) {
	if b.log != nil {
		b.log.Fatal(msg, "op", op, "socket", socket)
	}
	panic(fmt.Sprintf("mqttbuf: outbound: %s: %s (socket=%d)", op, msg, socket))
}

// PendingWrite records that sent of a total-byte frame have been
// written, persisting the full segment vector and ownership flags.
func (b *Buffer) PendingWrite(socket int, segments []Segment, total, sent int, tlsContext any) error {
	if len(segments) > constants.MaxScatterSegments {
		b.fatal("pending_write", socket, "scatter segment count exceeds maximum")
	}
	w := &Write{
		Socket:     socket,
		Segments:   append([]Segment(nil), segments...),
		Total:      total,
		Sent:       sent,
		TLSContext: tlsContext,
	}
	b.writes.Append(w)
	if b.obs != nil {
		b.obs.ObserveWrite(uint64(sent), true)
	}
	return nil
}

// GetWrite returns the pending write for socket, or nil if none is
// outstanding.
func (b *Buffer) GetWrite(socket int) *Write {
	e := b.writes.FindItem(func(w *Write) bool { return w.Socket == socket })
	if e == nil {
		return nil
	}
	return e.Value
}

// UpdateWrite replaces segments 2 and 3 of a 4-segment pending write
// with freshly supplied topic/payload bytes, for QoS-0 resubmission
// where the header (segments 0 and 1) survives unchanged. It has no
// effect when the pending write does not have exactly 4 segments.
// Owned segments being replaced are released first, the same as any
// other segment discarded before completion.
func (b *Buffer) UpdateWrite(socket int, topic, payload []byte) *Write {
	w := b.GetWrite(socket)
	if w == nil || len(w.Segments) != 4 {
		return w
	}
	releaseSegment(w.Segments[2])
	releaseSegment(w.Segments[3])
	w.Segments[2] = Segment{Data: topic, Owned: false}
	w.Segments[3] = Segment{Data: payload, Owned: false}
	return w
}

// releaseBuf returns an Owned segment's buffer to the pool it came
// from. A package-level var rather than a direct bufpool.Put call so
// tests can substitute a spy and assert the release path actually ran.
var releaseBuf = bufpool.Put

// releaseSegment returns an Owned segment's buffer to bufpool. Segments
// the caller still owns (Owned: false) are left alone; the Buffer never
// held a claim on them.
func releaseSegment(seg Segment) {
	if seg.Owned {
		releaseBuf(seg.Data)
	}
}

// releaseWrite releases every Owned segment of w, per spec's "segments
// marked frees=true... must be released on completion or cancellation".
func releaseWrite(w *Write) {
	for _, seg := range w.Segments {
		releaseSegment(seg)
	}
}

// WriteComplete removes and releases the pending write for socket,
// returning whether one was present.
func (b *Buffer) WriteComplete(socket int) bool {
	e := b.writes.FindItem(func(w *Write) bool { return w.Socket == socket })
	if e == nil {
		return false
	}
	releaseWrite(e.Value)
	b.writes.Detach(e)
	return true
}

// Clear discards every outstanding pending write, releasing their
// Owned segments, matching SocketBuffer_terminate()'s clearing of the
// write list on shutdown.
func (b *Buffer) Clear() {
	b.writes.Each(func(w *Write) { releaseWrite(w) })
	b.writes = list.New[*Write]()
}

// Len returns the number of outstanding pending writes, for tests.
func (b *Buffer) Len() int {
	return b.writes.Len()
}
