// Package transport adapts real and in-memory byte streams to the
// interfaces.Socket contract the buffering core reads and writes
// through.
package transport

import (
	"net"

	"github.com/mqttbuf/mqttbuf/internal/interfaces"
)

// NetSocket adapts a net.Conn to interfaces.Socket, giving the
// buffering core a real, partial-transfer-capable transport.
type NetSocket struct {
	conn net.Conn
}

// NewNetSocket wraps conn.
func NewNetSocket(conn net.Conn) *NetSocket {
	return &NetSocket{conn: conn}
}

// Read delegates to the wrapped connection, which may itself return a
// short read without error.
func (s *NetSocket) Read(p []byte) (int, error) {
	return s.conn.Read(p)
}

// Write delegates to the wrapped connection.
func (s *NetSocket) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// Writev writes bufs through net.Buffers, which uses a single vectored
// write when the connection supports one (net.TCPConn and net.UnixConn
// do); it otherwise falls back to sequential writes, stopping at the
// first failed write so the caller can resume correctly.
func (s *NetSocket) Writev(bufs [][]byte) (int, error) {
	buffers := make(net.Buffers, len(bufs))
	for i, b := range bufs {
		buffers[i] = b
	}
	n64, err := buffers.WriteTo(s.conn)
	return int(n64), err
}

// Conn returns the wrapped net.Conn, for callers that need to close or
// configure deadlines on it directly.
func (s *NetSocket) Conn() net.Conn {
	return s.conn
}

var _ interfaces.Socket = (*NetSocket)(nil)
