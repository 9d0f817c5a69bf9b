// License: Apache-2.0
//
// Package reactor implements the OS-level readiness multiplexer the
// dispatcher drives: register a file descriptor with a read/write interest
// set, block once for any of them to become ready, and report back which.
package reactor

// Interest is a bitset of readiness a caller wants notified for.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// Ready mirrors Interest but reports what actually fired, plus an error bit
// for sockets that hit EPOLLERR/EPOLLHUP.
type Ready struct {
	Fd       int
	UserData uintptr
	Readable bool
	Writable bool
	Error    bool
}

// Poller is the minimal cross-platform readiness-wait contract. evloop owns
// exactly one Poller per Manager.
type Poller interface {
	// Add registers fd with the given interest and an opaque user tag
	// (evloop stores the connection's fd there).
	Add(fd int, interest Interest, userData uintptr) error
	// Modify changes fd's interest set.
	Modify(fd int, interest Interest) error
	// Remove stops watching fd. Safe to call even if fd was never added.
	Remove(fd int) error
	// Wait blocks up to timeoutMs (negative = forever, 0 = non-blocking)
	// and appends ready events into out, returning the slice used.
	Wait(out []Ready, timeoutMs int) ([]Ready, error)
	// Close releases the underlying OS resource.
	Close() error
}
