package evloop

import (
	"time"

	"github.com/loopwire/evcore/netaddr"
	"github.com/loopwire/evcore/reactor"
	"golang.org/x/sys/unix"
)

const (
	readableInterest = reactor.Readable
	writableInterest = reactor.Writable
	rwInterest       = reactor.Readable | reactor.Writable
)

// Poll runs one iteration of the readiness loop: it waits up to timeout for
// any registered socket to become ready, services every ready socket,
// delivers POLL to every live connection, and finally applies the flag
// transitions queued by this iteration's handlers.
//
// Exactly one goroutine may call Poll on a given Manager at a time.
func (m *Manager) Poll(timeout time.Duration) (int64, error) {
	now := time.Now()
	// Never step the tick backwards if the wall clock does.
	if t := now.Unix(); t > m.tick {
		m.tick = t
	}

	timeoutMs := -1
	if timeout >= 0 {
		timeoutMs = int(timeout / time.Millisecond)
	}

	var buf [256]reactor.Ready
	ready, err := m.poller.Wait(buf[:0], timeoutMs)
	if err != nil {
		return m.tick, wrapErr(RuntimeIoError, err)
	}

	for _, r := range ready {
		c, ok := m.conns[r.Fd]
		if !ok || c.closing {
			continue
		}
		m.service(c, r)
	}

	idleTimeout := m.idleTimeoutSnapshot()
	m.Each(func(c *Connection) {
		if c.Handler != nil && !c.closing {
			c.Handler(c, Poll, nil)
		}
		// A freshly attached TLS session's handshake pump starts producing
		// its first flight (e.g. a client's ClientHello) before any bytes
		// have ever been read off the real socket, so draining it can't
		// wait for serviceRead; feeding it an empty slice just drains
		// whatever ciphertext is already waiting.
		if c.tls != nil && !c.flags.Has(TLSHandshakeDone) && !c.closing {
			m.pumpTLS(c, nil)
		}
		if idleTimeout > 0 && !c.closing && c.IdleFor(now) >= idleTimeout {
			c.SetFlags(CloseImmediately)
		}
	})

	m.applyTransitions()

	return m.tick, nil
}

// service handles one ready socket: accept loop, connect completion, or
// ordinary read/write.
func (m *Manager) service(c *Connection, r reactor.Ready) {
	c.LastIO = time.Now()

	if r.Error && !c.flags.Has(Connecting) {
		c.SetFlags(CloseImmediately)
		return
	}

	switch {
	case c.flags.Has(Listening):
		m.serviceAccept(c)
		return
	case c.flags.Has(Connecting):
		m.serviceConnect(c, r)
		return
	case c.flags.Has(UDP):
		if r.Readable {
			m.serviceUDPRecv(c)
		}
		if r.Writable {
			m.serviceWrite(c)
		}
		return
	default:
		if r.Readable {
			m.serviceRead(c)
		}
		if r.Writable && !c.closing {
			m.serviceWrite(c)
		}
	}
}

// serviceAccept drains the accept queue of a listening TCP socket, linking
// one connection per accepted client.
func (m *Manager) serviceAccept(listener *Connection) {
	for {
		fd, sa, err := unix.Accept4(listener.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			return
		}
		peer := sockaddrToEndpoint(sa, listener.Local.Proto)
		c := m.newConnection(fd, 0, listener.Handler, listener.UserData)
		c.Peer = peer
		c.Local = listener.Local
		if err := m.link(c, readableInterest); err != nil {
			unix.Close(fd)
			continue
		}
		if c.Handler != nil {
			c.Handler(c, Accept, AcceptPayload{Peer: peer})
		}
	}
}

// serviceUDPRecv drains pending datagrams on a bound UDP socket. Each
// datagram is delivered through a transient pseudo-connection that shares
// the listener's fd, matching spec.md §4.5's UDP model: no accept phase, one
// RECV per datagram, addressed replies via SendBytes.
func (m *Manager) serviceUDPRecv(listener *Connection) {
	scratch := m.readChunkBuf()
	for {
		n, sa, err := unix.Recvfrom(listener.fd, scratch, 0)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			return
		}
		if n <= 0 {
			return
		}
		peer := sockaddrToEndpoint(sa, listener.Local.Proto)
		pc := &Connection{
			fd:       listener.fd,
			mgr:      m,
			Recv:     listener.Recv,
			Send:     listener.Send,
			flags:    UDP, // never linked into m's list; serves exactly one datagram
			LastIO:   time.Now(),
			Handler:  listener.Handler,
			UserData: listener.UserData,
			Peer:     peer,
			Local:    listener.Local,
			sharesFd: true,
		}
		pc.Recv.Reset()
		pc.Recv.Append(scratch[:n])
		if pc.Handler != nil {
			pc.Handler(pc, Recv, RecvPayload{N: n})
		}
	}
}

// serviceConnect polls a pending non-blocking connect for completion via
// SO_ERROR, delivering CONNECT exactly once.
func (m *Manager) serviceConnect(c *Connection, r reactor.Ready) {
	if !r.Writable && !r.Error {
		return
	}
	code, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	c.ClearFlags(Connecting)
	if err != nil {
		c.SetFlags(CloseImmediately)
		if c.Handler != nil {
			c.Handler(c, Connected, ConnectPayload{Code: -1, Err: err})
		}
		return
	}
	if code != 0 {
		c.SetFlags(CloseImmediately)
		if c.Handler != nil {
			c.Handler(c, Connected, ConnectPayload{Code: code, Err: unix.Errno(code)})
		}
		return
	}
	m.poller.Modify(c.fd, readableInterest)
	if c.Handler != nil {
		c.Handler(c, Connected, ConnectPayload{Code: 0})
	}
}

// serviceRead performs one recv(2) into a scratch buffer, pumps it through
// the TLS session if one is attached, and delivers RECV for whatever
// plaintext became available. A zero-length read means the peer closed its
// write side; the connection is torn down.
func (m *Manager) serviceRead(c *Connection) {
	scratch := m.readChunkBuf()
	n, err := unix.Read(c.fd, scratch)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		c.SetFlags(CloseImmediately)
		return
	}
	if n == 0 {
		c.SetFlags(CloseImmediately)
		return
	}

	raw := scratch[:n]

	if c.tls != nil {
		m.pumpTLS(c, raw)
		return
	}

	c.Recv.Append(raw)
	m.deliverRecv(c, n)
}

// pumpTLS feeds raw ciphertext to the attached TLS session, flushes any
// handshake-flight ciphertext it produces, and delivers whatever decrypted
// application bytes became available. Until TLSHandshakeDone is observed,
// no plaintext can exist yet and only the handshake flight moves.
func (m *Manager) pumpTLS(c *Connection, raw []byte) {
	ciphertextOut, state, err := c.tls.Feed(raw)
	if err != nil {
		c.SetFlags(CloseImmediately)
		return
	}
	if len(ciphertextOut) > 0 {
		c.Send.Append(ciphertextOut)
		m.poller.Modify(c.fd, rwInterest)
	}
	if state == TLSDone {
		c.SetFlags(TLSHandshakeDone)
	}
	plaintext := c.tls.Plaintext()
	if len(plaintext) > 0 {
		c.Recv.Append(plaintext)
		m.deliverRecv(c, len(plaintext))
	}
}

// deliverRecv runs the protocol handler (if any) and then, unless it
// suppressed the raw event, delivers RECV.
func (m *Manager) deliverRecv(c *Connection, n int) {
	suppress := false
	if c.Protocol != nil {
		suppress = c.Protocol.OnRecv(c, n)
	}
	if !suppress && c.Handler != nil {
		c.Handler(c, Recv, RecvPayload{N: n})
	}
}

// serviceWrite drains as much of the send buffer as the socket accepts in
// one write(2), delivers SEND for the drained count, and rearms the write
// interest only while bytes remain and BufferButDontSend is clear.
func (m *Manager) serviceWrite(c *Connection) {
	if c.flags.Has(BufferButDontSend) || c.Send.Len() == 0 {
		if !c.flags.Has(Listening) && !c.flags.Has(Connecting) {
			m.poller.Modify(c.fd, readableInterest)
		}
		return
	}
	n, err := unix.Write(c.fd, c.Send.Bytes())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		c.SetFlags(CloseImmediately)
		return
	}
	if n > 0 {
		c.Send.RemoveHead(n)
		c.LastIO = time.Now()
		if c.Handler != nil {
			c.Handler(c, Send, SendPayload{N: n})
		}
	}
	interest := readableInterest
	if c.Send.Len() > 0 {
		interest = rwInterest
	}
	m.poller.Modify(c.fd, interest)
}

// applyTransitions runs the end-of-iteration flag sweep of spec.md §4.3, in
// two passes so a CloseImmediately derived from this same iteration's
// FinishedSendingData transition is never acted on before the next Poll
// call: scenario 2 requires SEND and the resulting CLOSE to land in
// different iterations, never the same one.
//
// Pass 1 destroys connections whose CloseImmediately was already set
// before this sweep ran (a handler setting it directly during service()
// still closes by the end of its own iteration). Pass 2 derives
// CloseImmediately from FinishedSendingData once the send buffer has
// drained, which pass 1 will act on next iteration.
func (m *Manager) applyTransitions() {
	var toClose []*Connection
	m.Each(func(c *Connection) {
		if !c.closing && c.flags.Has(CloseImmediately) {
			c.closing = true
			toClose = append(toClose, c)
		}
	})
	for _, c := range toClose {
		m.destroy(c, true)
	}

	m.Each(func(c *Connection) {
		if !c.closing && c.flags.Has(FinishedSendingData) && c.Send.Len() == 0 {
			c.SetFlags(CloseImmediately)
		}
	})
}

// armWrite registers writable interest for c when it has bytes queued to
// send. The reactor is level-triggered, so an always-ready writable fd with
// nothing queued would spin the loop; interest is only added on the
// empty-to-nonempty transition and removed again once serviceWrite drains
// the buffer.
func (c *Connection) armWrite() {
	if c.mgr == nil || c.flags.Has(UDP) || c.flags.Has(Listening) {
		return
	}
	c.mgr.poller.Modify(c.fd, rwInterest)
}

// sockaddrToEndpoint converts an accept(2)/recvfrom(2) peer address back
// into the package's tagged Endpoint, for AcceptPayload/RecvPayload
// callers that want the peer without a second syscall.
func sockaddrToEndpoint(sa unix.Sockaddr, proto netaddr.Proto) netaddr.Endpoint {
	ep := netaddr.Endpoint{Proto: proto}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ep.Family = netaddr.IPv4
		ep.Addr4 = a.Addr
		ep.Port = uint16(a.Port)
	case *unix.SockaddrInet6:
		ep.Family = netaddr.IPv6
		ep.Addr16 = a.Addr
		ep.Port = uint16(a.Port)
		ep.Zone = ""
	}
	return ep
}
