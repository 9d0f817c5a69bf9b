package evloop

import (
	"fmt"
	"time"

	"github.com/loopwire/evcore/iobuf"
	"github.com/loopwire/evcore/netaddr"
)

// Endpoint aliases netaddr.Endpoint so evloop callers rarely need to import
// netaddr directly.
type Endpoint = netaddr.Endpoint

// ProtocolHandler is the composable inner layer that consumes a
// connection's recv buffer and synthesizes higher-level events (HTTP/WS).
// It may suppress the raw Recv delivery for the bytes it consumes.
type ProtocolHandler interface {
	// OnRecv is called after the dispatcher appends n bytes to conn's recv
	// buffer. It returns true if it handled (and should suppress) the raw
	// Recv event for this call.
	OnRecv(conn *Connection, n int) (suppressRaw bool)
}

// Connection is the opaque per-socket handle of spec.md §3: socket, owning
// manager back-reference, buffers, flags, handler, and optional protocol
// layer / TLS session.
type Connection struct {
	fd int

	mgr *Manager
	// intrusive doubly linked list, owned by mgr
	prev, next *Connection

	Recv *iobuf.Buffer
	Send *iobuf.Buffer

	flags Flags

	LastIO time.Time

	Handler  EventHandler
	UserData any

	Protocol ProtocolHandler
	ProtoState any // per-protocol parse cursor, opaque to evloop

	tls TLSSession

	Peer  Endpoint
	Local Endpoint

	// udpConnected distinguishes a client UDP connection (connect(2)'d,
	// plain read/write) from a listener-side UDP pseudo-connection that
	// shares the listener's fd and must sendto/recvfrom with an explicit
	// peer address.
	udpConnected bool

	// sharesFd is true for UDP pseudo-connections that alias a listener's
	// fd; destroy() must not close a shared fd.
	sharesFd bool

	closing bool // true once CloseImmediately has been observed and acted on
}

// Fd returns the underlying raw file descriptor. Valid until Close fires.
func (c *Connection) Fd() int { return c.fd }

// Manager returns the owning Manager.
func (c *Connection) Manager() *Manager { return c.mgr }

// Flags returns the current flag bitset.
func (c *Connection) Flags() Flags { return c.flags }

// SetFlags ORs mask into the flag bitset. Only the user-settable bits
// (BufferButDontSend, FinishedSendingData, CloseImmediately, User0..User3)
// are meant to be set by callers; setting manager-owned bits has no defined
// effect beyond this call since the dispatcher recomputes them itself.
func (c *Connection) SetFlags(mask Flags) { c.flags |= mask }

// ClearFlags ANDs out mask from the flag bitset.
func (c *Connection) ClearFlags(mask Flags) { c.flags &^= mask }

// IdleFor returns how long it has been since the connection last performed
// I/O, as of now. A POLL handler can use this to implement its own idle
// timeout policy; Manager.SetIdleTimeout is the built-in alternative.
func (c *Connection) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastIO)
}

// SendBytes appends p to the send buffer (TCP/TLS semantics: queued, drained by
// the dispatcher's write step). For a UDP connection this instead sends
// immediately via the OS, per spec.md §5's UDP policy, and the return value
// is the OS send count rather than a queued length.
func (c *Connection) SendBytes(p []byte) (int, error) {
	if c.flags.Has(UDP) {
		return c.sendUDPNow(p)
	}
	wasEmpty := c.Send.Len() == 0
	if c.tls != nil {
		ct, err := c.tls.Encrypt(p)
		if err != nil {
			return 0, wrapErr(TLSError, err)
		}
		c.Send.Append(ct)
	} else {
		c.Send.Append(p)
	}
	if wasEmpty && c.Send.Len() > 0 {
		c.armWrite()
	}
	return len(p), nil
}

// Printf is the append-to-send-buffer convenience of spec.md §6.
func (c *Connection) Printf(format string, args ...any) (int, error) {
	return c.SendBytes([]byte(fmt.Sprintf(format, args...)))
}

// FinishSending sets FinishedSendingData: once the send buffer drains to
// empty, the dispatcher will set CloseImmediately (spec.md §4.2).
func (c *Connection) FinishSending() { c.SetFlags(FinishedSendingData) }

// SetProtocolHandler attaches an inner protocol layer (e.g. the one
// httpws.Attach installs).
func (c *Connection) SetProtocolHandler(h ProtocolHandler) { c.Protocol = h }
