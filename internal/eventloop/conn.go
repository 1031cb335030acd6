package eventloop

import "golang.org/x/sys/unix"

// connState tracks what a connection is waiting for next, replacing
// the teacher's per-tag TagState (in-flight fetch / owned /
// in-flight commit) with the three phases a socket's read/write cycle
// actually passes through here.
type connState int

const (
	connStateReadHeader connState = iota
	connStateReadPayload
	connStateFlushWrite
)

// rawSocket adapts a raw, non-blocking file descriptor to
// interfaces.Socket using golang.org/x/sys/unix directly, so the event
// loop never needs to go through net.Conn's blocking-mode-only fd
// export.
type rawSocket struct {
	fd int
}

func (s *rawSocket) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (s *rawSocket) Write(p []byte) (int, error) {
	return unix.Write(s.fd, p)
}

func (s *rawSocket) Writev(bufs [][]byte) (int, error) {
	iovs := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if len(b) > 0 {
			iovs = append(iovs, b)
		}
	}
	if len(iovs) == 0 {
		return 0, nil
	}
	return unix.Writev(s.fd, iovs)
}

// conn is one registered connection's event-loop bookkeeping.
type conn struct {
	fd    int
	state connState

	// header accumulates fixed-header bytes (type/flags byte plus the
	// remaining-length varint) while state is connStateReadHeader.
	header []byte
	// payloadLen is the decoded remaining-length value once the header
	// has been fully parsed.
	payloadLen int
}
