package evloop

import (
	"github.com/loopwire/evcore/netaddr"
	"golang.org/x/sys/unix"
)

// socketFor creates a non-blocking, close-on-exec socket for ep's family and
// transport.
func socketFor(ep netaddr.Endpoint) (int, error) {
	typ := unix.SOCK_STREAM
	if ep.Proto == netaddr.UDP {
		typ = unix.SOCK_DGRAM
	}
	fd, err := unix.Socket(ep.SockaddrFamily(), typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, wrapErr(SocketSetupError, err)
	}
	return fd, nil
}

// Connect resolves addr (blocking DNS if it names a host rather than a
// literal), then issues a non-blocking connect(2) and registers the
// resulting connection with m. Per spec.md §4.5, a host component is
// mandatory. The caller observes completion via the CONNECT event, delivered
// by Poll once the socket becomes writable.
func Connect(m *Manager, addr string, handler EventHandler, userData any) (*Connection, error) {
	return ConnectWith(m, netaddr.DefaultResolver{}, addr, handler, userData)
}

// ConnectWith is Connect with an explicit Resolver, for tests and callers
// that want a non-default (or deterministic) lookup.
func ConnectWith(m *Manager, r netaddr.Resolver, addr string, handler EventHandler, userData any) (*Connection, error) {
	ep, err := netaddr.ParseEndpoint(addr)
	if err != nil {
		return nil, wrapErr(ResolveError, err)
	}
	if err := ep.RequireHost(); err != nil {
		return nil, wrapErr(ResolveError, err)
	}
	ep, err = netaddr.Resolve(r, ep)
	if err != nil {
		return nil, wrapErr(ResolveError, err)
	}

	fd, err := socketFor(ep)
	if err != nil {
		return nil, err
	}

	var flags Flags
	if ep.Proto == netaddr.UDP {
		flags |= UDP
	}

	err = unix.Connect(fd, ep.Sockaddr())
	interest := readableInterest
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, wrapErr(SocketSetupError, err)
	}
	if ep.Proto == netaddr.TCP {
		flags |= Connecting
		interest = writableInterest
	}

	c := m.newConnection(fd, flags, handler, userData)
	c.Peer = ep
	if ep.Proto == netaddr.UDP {
		c.udpConnected = true
	}
	if err := m.link(c, interest); err != nil {
		unix.Close(fd)
		return nil, wrapErr(SocketSetupError, err)
	}
	return c, nil
}

// Bind creates a passive listener (TCP) or a bound datagram socket (UDP) at
// addr and registers it with m. A TCP listener delivers ACCEPT events; a UDP
// listener delivers one RECV per datagram directly, since there is no accept
// phase (spec.md §4.5). A host name in addr is resolved (blocking) first.
func Bind(m *Manager, addr string, handler EventHandler, userData any) (*Connection, error) {
	ep, err := netaddr.ParseEndpoint(addr)
	if err != nil {
		return nil, wrapErr(ResolveError, err)
	}
	ep, err = netaddr.Resolve(netaddr.DefaultResolver{}, ep)
	if err != nil {
		return nil, wrapErr(ResolveError, err)
	}

	fd, err := socketFor(ep)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, wrapErr(SocketSetupError, err)
	}
	if err := unix.Bind(fd, ep.Sockaddr()); err != nil {
		unix.Close(fd)
		return nil, wrapErr(SocketSetupError, err)
	}

	var flags Flags
	if ep.Proto == netaddr.UDP {
		// UDP only, not Listening|UDP: service()'s switch tests Listening
		// before UDP, so setting both would route a bound datagram socket
		// to serviceAccept instead of serviceUDPRecv.
		flags |= UDP
	} else {
		flags |= Listening
		if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
			unix.Close(fd)
			return nil, wrapErr(SocketSetupError, err)
		}
	}

	c := m.newConnection(fd, flags, handler, userData)
	c.Local = ep
	if err := m.link(c, readableInterest); err != nil {
		unix.Close(fd)
		return nil, wrapErr(SocketSetupError, err)
	}
	return c, nil
}

// AddSocket adopts an already-open, caller-managed file descriptor into m,
// per spec.md §4.5's "bring your own fd" escape hatch (e.g. a socket handed
// down by a supervisor process). The caller is responsible for having put it
// in non-blocking mode.
func AddSocket(m *Manager, fd int, flags Flags, handler EventHandler, userData any) (*Connection, error) {
	c := m.newConnection(fd, flags, handler, userData)
	interest := readableInterest
	if flags.Has(Connecting) {
		interest = writableInterest
	}
	if err := m.link(c, interest); err != nil {
		return nil, wrapErr(SocketSetupError, err)
	}
	return c, nil
}
