package evloop

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/loopwire/evcore/reactor"
	"golang.org/x/sys/unix"
)

// BroadcastFunc is the callback a cross-thread Broadcast call fans out to
// every live connection, mirroring spec.md §4.4's
// "callback(connection, EVENT_POLL, data)" contract.
type BroadcastFunc func(conn *Connection, data any)

type broadcastRecord struct {
	fn   BroadcastFunc
	data any
}

// wakeChannel is the manager's self-pipe: a connected socket pair whose
// writable end (write) is safe to use from any thread, and whose readable
// end is wired into the manager's ordinary connection list so the
// dispatcher services it like any other socket.
//
// The fixed-size control record spec.md §4.4 describes (callback pointer,
// data pointer, length) has no faithful Go analogue — Go callbacks aren't
// addresses a socket can carry — so the record itself is queued in-process
// on a mutex-guarded FIFO (github.com/eapache/queue, present in the
// teacher's go.mod but previously unused) and the socket carries only a
// one-byte wake sentinel per call.
type wakeChannel struct {
	mu    sync.Mutex
	queue *queue.Queue

	write int // writable from any thread
	conn  *Connection
}

func newWakeChannel(m *Manager) (*wakeChannel, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errorfSocketpair(err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}

	wc := &wakeChannel{queue: queue.New(), write: fds[1]}
	conn := m.newConnection(fds[0], 0, nil, nil)
	conn.Handler = wc.onReadable
	wc.conn = conn
	if err := m.link(conn, reactor.Readable); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	return wc, nil
}

// onReadable drains the wake socket and then the queued broadcast records,
// invoking each against every live connection (excluding the wake
// connection itself).
func (wc *wakeChannel) onReadable(conn *Connection, ev Event, _ any) {
	if ev != Recv {
		return
	}
	var scratch [256]byte
	for {
		n, err := unix.Read(conn.fd, scratch[:])
		if n <= 0 || err != nil {
			break
		}
	}
	conn.Recv.Reset()

	m := conn.mgr
	for {
		wc.mu.Lock()
		if wc.queue.Length() == 0 {
			wc.mu.Unlock()
			break
		}
		rec := wc.queue.Remove().(broadcastRecord)
		wc.mu.Unlock()
		m.Each(func(c *Connection) {
			rec.fn(c, rec.data)
		})
	}
}

func (wc *wakeChannel) close() {
	unix.Close(wc.write)
}

// Broadcast is safe to call from any thread (spec.md §4.4, §5); apart from
// it, only SetIdleTimeout and SetReadChunkSize are. It queues fn/data for delivery to every live
// connection after the manager's next Poll observes the wake-up, then
// writes a one-byte sentinel to the self-pipe. Per spec.md §9's resolved
// open question, a full control pipe blocks the sender rather than
// dropping the record.
func (m *Manager) Broadcast(fn BroadcastFunc, data any) error {
	m.wake.mu.Lock()
	m.wake.queue.Add(broadcastRecord{fn: fn, data: data})
	m.wake.mu.Unlock()

	_, err := unix.Write(m.wake.write, []byte{0})
	if err != nil {
		return wrapErr(RuntimeIoError, err)
	}
	return nil
}

func errorfSocketpair(err error) error {
	return wrapErr(SocketSetupError, err)
}
