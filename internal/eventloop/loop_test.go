package eventloop

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/mqttbuf/mqttbuf"
	"github.com/mqttbuf/mqttbuf/internal/wire"
)

// nonblockingPipe returns a connected pipe pair with the read end set
// non-blocking, the way a real accepted socket would be configured
// before Register.
func nonblockingPipe(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(int(r.Fd()), true))
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestLoopReassemblesFrameAcrossShortPipeWrites(t *testing.T) {
	core, err := mqttbuf.NewCore()
	require.NoError(t, err)

	var mu sync.Mutex
	var frames [][]byte
	l, err := New(core, func(fd int, frame []byte) {
		mu.Lock()
		frames = append(frames, append([]byte(nil), frame...))
		mu.Unlock()
	})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	r, w := nonblockingPipe(t)
	require.NoError(t, l.Register(int(r.Fd())))

	remainingLength, err := wire.EncodeRemainingLength(5)
	require.NoError(t, err)
	full := append([]byte{0x30}, remainingLength...)
	full = append(full, []byte("hello")...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Dribble the frame in one byte at a time so the loop must resume
	// both header and payload reads across repeated EPOLLIN events.
	for _, b := range full {
		_, werr := w.Write([]byte{b})
		require.NoError(t, werr)
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, full, frames[0])
}

func TestLoopDeregisterClearsCoreState(t *testing.T) {
	core, err := mqttbuf.NewCore()
	require.NoError(t, err)

	l, err := New(core, nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	r, w := nonblockingPipe(t)
	fd := int(r.Fd())
	require.NoError(t, l.Register(fd))

	_, werr := w.Write([]byte{0x30})
	require.NoError(t, werr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	l.Deregister(fd)

	l.mu.Lock()
	_, stillPresent := l.conns[fd]
	l.mu.Unlock()
	assert.False(t, stillPresent)

	cancel()
	<-done
}
