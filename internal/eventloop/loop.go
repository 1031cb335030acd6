// Package eventloop is a reference single-OS-thread I/O loop that
// drives the buffering core over real sockets. It is explicitly
// outside the core's own scope — the core never performs I/O or
// scheduling itself — but something has to call GetQueuedData,
// Interrupted, and Complete in response to real readiness events, and
// this is the teacher's answer to that problem generalized from
// io_uring completions to epoll readiness.
package eventloop

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/mqttbuf/mqttbuf"
	"github.com/mqttbuf/mqttbuf/internal/inbound"
	"github.com/mqttbuf/mqttbuf/internal/interfaces"
	"github.com/mqttbuf/mqttbuf/internal/wire"
)

// FrameHandler is invoked once a full MQTT frame (fixed header +
// remaining-length payload) has been reassembled for a connection.
type FrameHandler func(fd int, frame []byte)

// Loop is one single-threaded epoll reactor driving one Core's
// InboundBuffer/OutboundBuffer across however many registered
// connections.
type Loop struct {
	epfd int
	core *mqttbuf.Core
	log  interfaces.Logger
	obs  interfaces.Observer

	mu    sync.Mutex
	conns map[int]*conn

	onFrame FrameHandler
}

// New creates a Loop backed by a fresh epoll instance. core supplies
// the InboundBuffer/OutboundBuffer the loop reads and writes through; onFrame is called synchronously from the loop's own thread
// whenever a connection's payload completes.
func New(core *mqttbuf.Core, onFrame FrameHandler) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("mqttbuf: eventloop: epoll_create1: %w", err)
	}
	return &Loop{
		epfd:    epfd,
		core:    core,
		conns:   make(map[int]*conn),
		onFrame: onFrame,
	}, nil
}

// Register adds fd to the loop, starting it in the read-header state.
// fd must already be non-blocking.
func (l *Loop) Register(fd int) error {
	l.mu.Lock()
	l.conns[fd] = &conn{fd: fd, state: connStateReadHeader}
	l.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		l.mu.Lock()
		delete(l.conns, fd)
		l.mu.Unlock()
		return fmt.Errorf("mqttbuf: eventloop: epoll_ctl add fd=%d: %w", fd, err)
	}
	return nil
}

// Deregister removes fd from the loop and discards its buffering
// state.
func (l *Loop) Deregister(fd int) {
	l.mu.Lock()
	delete(l.conns, fd)
	l.mu.Unlock()

	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	l.core.Cleanup(fd)
}

// Run pins the calling goroutine to its OS thread and services epoll
// readiness events until ctx is canceled, mirroring the teacher's
// runtime.LockOSThread-pinned ioLoop.
func (l *Loop) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if l.log != nil {
		l.log.Info("event loop starting", "thread_pinned", true)
	}

	events := make([]unix.EpollEvent, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := unix.EpollWait(l.epfd, events, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("mqttbuf: eventloop: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			l.mu.Lock()
			c, ok := l.conns[fd]
			l.mu.Unlock()
			if !ok {
				continue
			}

			if events[i].Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				l.Deregister(fd)
				continue
			}
			if events[i].Events&unix.EPOLLIN != 0 {
				l.processReadable(c)
			}
			if events[i].Events&unix.EPOLLOUT != 0 {
				l.processWritable(c)
			}
		}
	}
}

// Close releases the epoll instance. It does not close any registered
// connection fd.
func (l *Loop) Close() error {
	return unix.Close(l.epfd)
}

// WithLogger attaches a logger used for loop lifecycle messages (not
// per-event tracing, which would be too noisy).
func (l *Loop) WithLogger(log interfaces.Logger) *Loop {
	l.log = log
	return l
}

// WithObserver attaches a metrics observer.
func (l *Loop) WithObserver(obs interfaces.Observer) *Loop {
	l.obs = obs
	return l
}

// processReadable drives one connection's inbound state machine as
// far as the currently available bytes allow: first the fixed header,
// byte at a time via GetQueuedChar/QueueChar, then the remaining-length
// payload via GetQueuedData/Interrupted/Complete. It never performs a
// vectored read, per the core's own scope.
func (l *Loop) processReadable(c *conn) {
	sock := &rawSocket{fd: c.fd}
	in := l.core.Inbound()

	if c.state == connStateReadHeader {
		remainingLength, ok := l.readHeader(c, sock, in)
		if !ok {
			return
		}
		c.payloadLen = remainingLength
		c.state = connStateReadPayload
	}

	if c.state == connStateReadPayload {
		payload, ok := l.readPayload(c, sock, in)
		if !ok {
			return
		}
		frame := append(append([]byte(nil), c.header...), payload...)
		c.header = nil
		c.state = connStateReadHeader
		if l.onFrame != nil {
			l.onFrame(c.fd, frame)
		}
	}
}

// readHeader accumulates fixed-header bytes one at a time until the
// remaining-length varint terminates, returning the decoded payload
// length. It returns ok=false when the socket has no more bytes ready
// right now (the event loop will resume on the next EPOLLIN), or when
// the header is malformed (GetQueuedChar reports StatusSocketError or
// the remaining-length varint is too long), in which case the
// connection has already been deregistered.
func (l *Loop) readHeader(c *conn, sock *rawSocket, in *inbound.Buffer) (int, bool) {
	for {
		status, ch := in.GetQueuedChar(c.fd)
		switch status {
		case inbound.StatusSocketError:
			l.Deregister(c.fd)
			return 0, false
		case inbound.StatusComplete:
			c.header = append(c.header, ch)
		case inbound.StatusInterrupted:
			one := make([]byte, 1)
			n, err := sock.Read(one)
			if l.obs != nil {
				l.obs.ObserveRead(uint64(n), err == nil && n > 0)
			}
			if n == 0 || err != nil {
				return 0, false
			}
			in.QueueChar(c.fd, one[0])
			continue
		}

		if len(c.header) >= 2 {
			remainingLength, _, done, err := wire.DecodeRemainingLength(c.header[1:])
			if err != nil {
				l.Deregister(c.fd)
				return 0, false
			}
			if done {
				return remainingLength, true
			}
		}
	}
}

// readPayload resumes a possibly-interrupted payload read, returning
// the completed payload once c.payloadLen bytes have arrived.
func (l *Loop) readPayload(c *conn, sock *rawSocket, in *inbound.Buffer) ([]byte, bool) {
	if c.payloadLen == 0 {
		return in.Complete(c.fd)[:0], true
	}

	buf, have := in.GetQueuedData(c.fd, c.payloadLen)
	for have < c.payloadLen {
		n, err := sock.Read(buf[have:c.payloadLen])
		if l.obs != nil {
			l.obs.ObserveRead(uint64(n), err == nil && n > 0)
		}
		if n == 0 || err != nil {
			if have > 0 {
				in.Interrupted(c.fd, have)
			}
			return nil, false
		}
		have += n
	}

	full := in.Complete(c.fd)
	return full[:c.payloadLen], true
}

// processWritable flushes as much of the pending write for c.fd as the
// socket will currently accept.
func (l *Loop) processWritable(c *conn) {
	out := l.core.Outbound()
	w := out.GetWrite(c.fd)
	if w == nil {
		_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, c.fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(c.fd)})
		return
	}

	sock := &rawSocket{fd: c.fd}
	remaining := make([][]byte, 0, len(w.Segments))
	skip := w.Sent
	for _, seg := range w.Segments {
		if skip >= len(seg.Data) {
			skip -= len(seg.Data)
			continue
		}
		remaining = append(remaining, seg.Data[skip:])
		skip = 0
	}

	n, err := sock.Writev(remaining)
	if l.obs != nil {
		l.obs.ObserveWrite(uint64(n), err == nil)
	}
	if err != nil {
		l.Deregister(c.fd)
		return
	}

	w.Sent += n
	if w.Sent >= w.Total {
		out.WriteComplete(c.fd)
		_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, c.fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(c.fd)})
	}
}
