// Package inbound implements the read-progress cache that lets an
// interrupted byte-stream read look, to the protocol parser, like one
// continuous read.
//
// Buffer is not itself mutex-protected: per the concurrency model, the
// caller's own socket-table lock must be held across every operation.
// Finer-grained locking here would complicate default-queue promotion
// for no benefit, since the transport already serializes per socket.
package inbound

import (
	"fmt"

	"github.com/mqttbuf/mqttbuf/internal/bufpool"
	"github.com/mqttbuf/mqttbuf/internal/constants"
	"github.com/mqttbuf/mqttbuf/internal/interfaces"
	"github.com/mqttbuf/mqttbuf/internal/list"
)

// Status is the result of GetQueuedChar.
type Status int

const (
	// StatusComplete means a cached header byte was delivered.
	StatusComplete Status = iota
	// StatusInterrupted means no cached byte exists; the caller must
	// perform a fresh kernel read of one byte.
	StatusInterrupted
	// StatusSocketError means the fixed-header cursor overflowed.
	StatusSocketError
)

// socketQueue is the per-socket (or default) read-progress record.
type socketQueue struct {
	socket      int
	fixedHeader [constants.FixedHeaderSize]byte
	index       int
	headerLen   int
	buf         []byte
	pooled      bool
	dataLen     int
}

func newSocketQueue(socket int) *socketQueue {
	return &socketQueue{
		socket: socket,
		buf:    bufpool.Get(constants.DefaultInboundBufferSize),
		pooled: true,
	}
}

func (q *socketQueue) release() {
	if q.pooled && q.buf != nil {
		bufpool.Put(q.buf)
	}
	q.buf = nil
	q.pooled = false
}

func (q *socketQueue) reset() {
	q.index = 0
	q.headerLen = 0
	q.dataLen = 0
}

// Buffer is the InboundBuffer: one reusable default queue plus a list
// of queues promoted from it by an interrupted read.
type Buffer struct {
	def     *socketQueue
	queues  *list.List[*socketQueue]
	log     interfaces.Logger
	obs     interfaces.Observer
}

// New allocates the default queue with its seed capacity and an empty
// per-socket queue list.
func New(log interfaces.Logger, obs interfaces.Observer) *Buffer {
	return &Buffer{
		def:    newSocketQueue(constants.NoSocket),
		queues: list.New[*socketQueue](),
		log:    log,
		obs:    obs,
	}
}

// Terminate releases every per-socket queue's payload buffer, the
// list, and the default queue.
func (b *Buffer) Terminate() {
	b.queues.Each(func(q *socketQueue) { q.release() })
	b.queues = list.New[*socketQueue]()
	b.def.release()
	b.def = nil
}

func (b *Buffer) findQueue(socket int) *list.Element[*socketQueue] {
	return b.queues.FindItem(func(q *socketQueue) bool { return q.socket == socket })
}

func (b *Buffer) fatal(op string, socket int, msg string) {
	if b.log != nil {
		b.log.Fatal(msg, "op", op, "socket", socket)
	}
	panic(fmt.Sprintf("mqttbuf: inbound: %s: %s (socket=%d)", op, msg, socket))
}

// GetQueuedData returns a destination buffer of at least bytesWanted
// capacity for the caller's next read, and the number of bytes already
// accumulated from prior interrupted reads. The returned slice is
// stable until the next Complete/Cleanup for this socket; the caller
// must read directly into it rather than copying afterward.
func (b *Buffer) GetQueuedData(socket int, bytesWanted int) (buf []byte, already int) {
	q := b.def
	if e := b.findQueue(socket); e != nil {
		q = e.Value
	}

	if bytesWanted > cap(q.buf) {
		grown := bufpool.Get(bytesWanted)
		if q.dataLen > 0 {
			copy(grown, q.buf[:q.dataLen])
		}
		q.release()
		q.buf = grown
		q.pooled = true
	} else if bytesWanted > len(q.buf) {
		q.buf = q.buf[:cap(q.buf)]
	}
	if len(q.buf) < bytesWanted {
		q.buf = q.buf[:bytesWanted]
	}

	return q.buf, q.dataLen
}

// GetQueuedChar is the fast path for the fixed-header, byte-at-a-time
// parser.
func (b *Buffer) GetQueuedChar(socket int) (status Status, c byte) {
	q := b.def
	if e := b.findQueue(socket); e != nil {
		q = e.Value
	} else if q.socket != socket {
		return StatusInterrupted, 0
	}
	if q.index > constants.FixedHeaderSize-1 {
		// A 5-byte MQTT fixed header with no terminating byte is a
		// malformed remote frame, not a local contract violation.
		return StatusSocketError, 0
	}
	if q.index < q.headerLen {
		c = q.fixedHeader[q.index]
		q.index++
		return StatusComplete, c
	}
	return StatusInterrupted, 0
}

// QueueChar appends one fixed-header byte, claiming the default queue
// on first use for a socket that has no promoted queue yet.
func (b *Buffer) QueueChar(socket int, c byte) {
	q := b.def
	if e := b.findQueue(socket); e != nil {
		q = e.Value
	} else if q.socket != constants.NoSocket && q.socket != socket {
		b.fatal("queue_char", socket, "attempt to reuse socket queue")
	} else {
		q.socket = socket
	}

	if q.headerLen > constants.FixedHeaderSize-1 {
		b.fatal("queue_char", socket, "fixed header index overflow")
	}
	q.fixedHeader[q.headerLen] = c
	q.headerLen++
}

// Interrupted records that a kernel read for socket returned short,
// preserving the header prefix and partial payload across event-loop
// iterations.
func (b *Buffer) Interrupted(socket int, bytesReadSoFar int) {
	if e := b.findQueue(socket); e != nil {
		q := e.Value
		q.index = 0
		q.dataLen = bytesReadSoFar
		if b.obs != nil {
			b.obs.ObserveReadInterrupted()
		}
		return
	}

	promoted := b.def
	promoted.socket = socket
	promoted.index = 0
	promoted.dataLen = bytesReadSoFar
	b.queues.Append(promoted)
	b.def = newSocketQueue(constants.NoSocket)

	if b.obs != nil {
		b.obs.ObserveQueuePromoted()
		b.obs.ObserveReadInterrupted()
	}
}

// Complete returns the full payload buffer once a packet has been
// fully read, releasing any promoted per-socket queue back into the
// default slot. Either way the default queue is left unclaimed.
func (b *Buffer) Complete(socket int) []byte {
	if e := b.findQueue(socket); e != nil {
		promoted := e.Value
		b.queues.Detach(e)

		b.def.release()
		b.def = promoted
		b.def.socket = constants.NoSocket
		b.def.reset()
		return b.def.buf
	}

	buf := b.def.buf
	b.def.socket = constants.NoSocket
	b.def.reset()
	return buf
}

// Cleanup releases any per-socket queue for socket and, if the default
// queue is claimed by it, resets that too.
func (b *Buffer) Cleanup(socket int) {
	if e := b.findQueue(socket); e != nil {
		e.Value.release()
		b.queues.Detach(e)
	}
	if b.def.socket == socket {
		b.def.reset()
		b.def.socket = constants.NoSocket
	}
}

// QueueCount returns the number of promoted per-socket queues, for
// tests asserting the at-most-one-queue-per-socket invariant.
func (b *Buffer) QueueCount() int {
	return b.queues.Len()
}
