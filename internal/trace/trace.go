// Package trace implements a per-thread, bounded call-stack trace
// facility, used to reconstruct "what was this thread doing" when a
// contract violation is detected deep inside the buffering core.
//
// One Tracer tracks up to MaxThreads distinct OS threads, identified
// via unix.Gettid() — meaningful here because the reference event loop
// pins its I/O loop to a single OS thread with runtime.LockOSThread(),
// the same way a goroutine identity would not be.
package trace

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/mqttbuf/mqttbuf/internal/constants"
)

// entry is one recorded stack frame.
type entry struct {
	name string
	line int
}

type threadStack struct {
	tid     int
	depth   int
	maxseen int
	frames  [constants.MaxStackDepth]entry
}

// Tracer owns the per-thread call stacks. The zero value is not usable;
// construct with New.
type Tracer struct {
	mu      sync.Mutex
	threads []*threadStack // len <= constants.MaxThreads, never shrinks
}

// New returns an empty Tracer.
func New() *Tracer {
	return &Tracer{}
}

func truncateName(name string) string {
	if len(name) > constants.MaxFunctionNameLength {
		return name[:constants.MaxFunctionNameLength]
	}
	return name
}

// findOrCreate returns the calling thread's stack, allocating a new
// slot if this thread hasn't been seen and the tracer has room. Must be
// called with mu held.
func (t *Tracer) findOrCreate(tid int, create bool) *threadStack {
	for _, ts := range t.threads {
		if ts.tid == tid {
			return ts
		}
	}
	if !create || len(t.threads) >= constants.MaxThreads {
		return nil
	}
	ts := &threadStack{tid: tid}
	t.threads = append(t.threads, ts)
	return ts
}

// Entry records entering a function. Reaching MaxStackDepth frames is
// reported as overflowed, a contract violation on which Enter panics
// for the caller. Entry itself still records the frame that reaches the
// limit, so a subsequent PrintStack/Get shows that call; entries past
// the limit only raise the depth.
func (t *Tracer) Entry(name string, line int) (depth int, overflowed bool) {
	tid := unix.Gettid()
	name = truncateName(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.findOrCreate(tid, true)
	if ts == nil {
		return 0, false
	}
	if ts.depth < constants.MaxStackDepth {
		ts.frames[ts.depth] = entry{name: name, line: line}
	}
	ts.depth++
	if ts.depth > ts.maxseen {
		ts.maxseen = ts.depth
	}
	return ts.depth, ts.depth >= constants.MaxStackDepth
}

// Exit records leaving a function previously entered with Entry. It
// reports a depth underflow (exit with no matching entry) or a name
// mismatch (entry/exit calls paired against different functions) so the
// caller can treat both as contract violations.
func (t *Tracer) Exit(name string) (underflow, mismatch bool) {
	tid := unix.Gettid()
	name = truncateName(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.findOrCreate(tid, false)
	if ts == nil {
		return true, false
	}
	ts.depth--
	if ts.depth < 0 {
		ts.depth = 0
		return true, false
	}
	if ts.depth < constants.MaxStackDepth && ts.frames[ts.depth].name != name {
		return false, true
	}
	return false, false
}

// Depth returns the calling thread's current stack depth.
func (t *Tracer) Depth() int {
	tid := unix.Gettid()
	t.mu.Lock()
	defer t.mu.Unlock()
	ts := t.findOrCreate(tid, false)
	if ts == nil {
		return 0
	}
	return ts.depth
}

// PrintStack returns a human-readable trace of every tracked thread's
// current call stack, most-recent frame first.
func (t *Tracer) PrintStack() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	for _, ts := range t.threads {
		fmt.Fprintf(&b, "=========== Start of stack trace for thread %d ==========\n", ts.tid)
		for i := ts.depth - 1; i >= 0; i-- {
			if i == ts.depth-1 {
				fmt.Fprintf(&b, "%s (%d)\n", ts.frames[i].name, ts.frames[i].line)
			} else {
				fmt.Fprintf(&b, "   at %s (%d)\n", ts.frames[i].name, ts.frames[i].line)
			}
		}
		fmt.Fprintf(&b, "=========== End of stack trace for thread %d ==========\n\n", ts.tid)
	}
	return b.String()
}

// Get returns the current call stack for the given thread ID, most
// recent frame first, or "" if the thread is unknown.
func (t *Tracer) Get(tid int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.findOrCreate(tid, false)
	if ts == nil {
		return ""
	}
	var b strings.Builder
	for i := ts.depth - 1; i >= 0; i-- {
		if i == ts.depth-1 {
			fmt.Fprintf(&b, "%s (%d)", ts.frames[i].name, ts.frames[i].line)
		} else {
			fmt.Fprintf(&b, "\n   at %s (%d)", ts.frames[i].name, ts.frames[i].line)
		}
	}
	return b.String()
}

// Guard is entered at function entry and Closed at function exit, so
// callers never hand-pair Entry/Exit calls. Enter panics if Entry
// reports an overflow, and Close panics if Exit reports an
// underflow/mismatch — all three are programmer contract violations,
// never runtime data errors.
type Guard struct {
	t    *Tracer
	name string
}

// Enter starts a guarded trace scope for name at line.
func (t *Tracer) Enter(name string, line int) *Guard {
	_, overflowed := t.Entry(name, line)
	if overflowed {
		panic(fmt.Sprintf("mqttbuf: trace: max stack depth exceeded entering %s", name))
	}
	return &Guard{t: t, name: name}
}

// Close exits the guarded scope.
func (g *Guard) Close() {
	underflow, mismatch := g.t.Exit(g.name)
	if underflow {
		panic(fmt.Sprintf("mqttbuf: trace: stack underflow exiting %s", g.name))
	}
	if mismatch {
		panic(fmt.Sprintf("mqttbuf: trace: stack mismatch exiting %s", g.name))
	}
}
