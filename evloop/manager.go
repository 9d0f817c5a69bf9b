// License: Apache-2.0
//
// Package evloop implements the connection manager and its single-threaded
// readiness loop: the dispatcher, the per-connection buffering and flag
// state machine, and the cross-thread wake-up channel.
package evloop

import (
	"sync"
	"time"

	"github.com/loopwire/evcore/iobuf"
	"github.com/loopwire/evcore/reactor"
	"golang.org/x/sys/unix"
)

// Manager is the process-visible container of spec.md §3: it owns the
// connection list, the wake-up channel, a monotonic tick, and the
// readiness-loop entry point. Exactly one goroutine may call Poll or any
// connection mutator on a given Manager (spec.md §5); Broadcast,
// SetIdleTimeout and SetReadChunkSize are the exceptions.
type Manager struct {
	UserData any

	poller reactor.Poller
	conns  map[int]*Connection // fd -> connection, including the wake fd
	head   *Connection
	tail   *Connection

	tick int64 // seconds, advanced at the top of each Poll

	wake *wakeChannel

	closed bool

	// tunablesMu guards scratch and idleTimeout, the two knobs
	// SetReadChunkSize/SetIdleTimeout let a caller change from any
	// goroutine (e.g. a control.ConfigStore reload listener firing on its
	// own goroutine) while Poll is concurrently running on the poll thread.
	tunablesMu  sync.Mutex
	scratch     []byte        // reused recv(2)/recvfrom(2) buffer, sized by SetReadChunkSize
	idleTimeout time.Duration // 0 disables idle enforcement; see SetIdleTimeout
}

// defaultReadChunk is the scratch size used for each recv(2)/recvfrom(2)
// call before SetReadChunkSize overrides it.
const defaultReadChunk = 32 * 1024

// NewManager creates a Manager with its reactor and wake-up channel ready.
func NewManager(userData any) (*Manager, error) {
	p, err := reactor.New()
	if err != nil {
		return nil, wrapErr(SocketSetupError, err)
	}
	m := &Manager{
		UserData: userData,
		poller:   p,
		conns:    make(map[int]*Connection),
		scratch:  make([]byte, defaultReadChunk),
	}
	wc, err := newWakeChannel(m)
	if err != nil {
		p.Close()
		return nil, wrapErr(SocketSetupError, err)
	}
	m.wake = wc
	return m, nil
}

// SetReadChunkSize resizes the scratch buffer used for each recv(2)/
// recvfrom(2) call. Safe to call from any goroutine, concurrently with
// Poll; the new buffer takes effect starting with the next read.
func (m *Manager) SetReadChunkSize(n int) {
	if n <= 0 {
		return
	}
	m.tunablesMu.Lock()
	m.scratch = make([]byte, n)
	m.tunablesMu.Unlock()
}

// SetIdleTimeout configures Poll to close any connection that has performed
// no I/O for at least d. Zero (the default) disables idle enforcement. Safe
// to call from any goroutine, concurrently with Poll.
func (m *Manager) SetIdleTimeout(d time.Duration) {
	m.tunablesMu.Lock()
	m.idleTimeout = d
	m.tunablesMu.Unlock()
}

// readChunkBuf returns the current scratch buffer under tunablesMu,
// snapshotting the slice header so the caller can use it without holding
// the lock across the subsequent read(2)/recvfrom(2) call.
func (m *Manager) readChunkBuf() []byte {
	m.tunablesMu.Lock()
	b := m.scratch
	m.tunablesMu.Unlock()
	return b
}

// idleTimeoutSnapshot returns the currently configured idle timeout under
// tunablesMu.
func (m *Manager) idleTimeoutSnapshot() time.Duration {
	m.tunablesMu.Lock()
	d := m.idleTimeout
	m.tunablesMu.Unlock()
	return d
}

// Close closes and frees every linked connection, then releases the
// reactor and wake-up channel. A connection never outlives its manager.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	for c := m.head; c != nil; {
		next := c.next
		m.destroy(c, false)
		c = next
	}
	m.wake.close()
	return m.poller.Close()
}

// link appends c to the manager's connection list and registers its fd
// with the reactor.
func (m *Manager) link(c *Connection, interest reactor.Interest) error {
	c.mgr = m
	if m.tail == nil {
		m.head, m.tail = c, c
	} else {
		m.tail.next = c
		c.prev = m.tail
		m.tail = c
	}
	m.conns[c.fd] = c
	if err := m.poller.Add(c.fd, interest, uintptr(c.fd)); err != nil {
		return err
	}
	return nil
}

// unlink removes c from the manager's connection list without touching the
// reactor or the fd (callers do that separately since some paths, like a
// UDP pseudo-connection sharing a listener fd, must not unregister the fd).
func (m *Manager) unlink(c *Connection) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		m.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		m.tail = c.prev
	}
	c.prev, c.next = nil, nil
	delete(m.conns, c.fd)
}

// destroy delivers Close (unless silent), unregisters the fd, closes the
// socket (unless shared, as for a UDP pseudo-connection), and unlinks c.
func (m *Manager) destroy(c *Connection, deliverClose bool) {
	if deliverClose && c.Handler != nil {
		c.Handler(c, Close, nil)
	}
	m.poller.Remove(c.fd)
	if !c.sharesFd {
		unix.Close(c.fd)
	}
	m.unlink(c)
}

// Each calls fn for every live connection, in list order, excluding the
// internal wake-channel connection. Safe to call fn that sets flags; not
// safe to call fn that unlinks c itself (use flags + CloseImmediately).
func (m *Manager) Each(fn func(c *Connection)) {
	for c := m.head; c != nil; c = c.next {
		if c == m.wake.conn {
			continue
		}
		fn(c)
	}
}

// Tick returns the current manager tick (seconds since Unix epoch, sampled
// at the top of each Poll call; it never decreases).
func (m *Manager) Tick() int64 { return m.tick }

func (m *Manager) newConnection(fd int, flags Flags, handler EventHandler, userData any) *Connection {
	return &Connection{
		fd:       fd,
		mgr:      m,
		Recv:     iobuf.New(0),
		Send:     iobuf.New(0),
		flags:    flags,
		LastIO:   time.Now(),
		Handler:  handler,
		UserData: userData,
	}
}
