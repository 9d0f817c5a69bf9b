// License: Apache-2.0
//
// Package netaddr implements the tagged IPv4/IPv6 endpoint and the
// "[proto://]host:port" address syntax used throughout evcore.
package netaddr

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Proto names the transport a parsed address refers to.
type Proto int

const (
	// TCP is the default when no proto:// prefix is present.
	TCP Proto = iota
	UDP
)

func (p Proto) String() string {
	if p == UDP {
		return "udp"
	}
	return "tcp"
}

// Family distinguishes the tagged union's two address shapes.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// Endpoint is a tagged union over IPv4/IPv6 socket addresses, matching
// spec.md §3's {IPv4(port,4 bytes), IPv6(port,16 bytes,scope)}.
type Endpoint struct {
	Proto  Proto
	Family Family
	Addr4  [4]byte
	Addr16 [16]byte
	Zone   string // IPv6 scope id, empty unless Family == IPv6
	Port   uint16
	// Host carries the original, unresolved hostname when the endpoint was
	// built from a name rather than a numeric literal. Connect-time
	// resolution fills Addr4/Addr16 and clears Host.
	Host string
}

var (
	// ErrMissingHost is returned when the address has no host component.
	ErrMissingHost = errors.New("netaddr: host is mandatory")
	// ErrBadPort is returned when the port component does not parse.
	ErrBadPort = errors.New("netaddr: invalid port")
)

// ParseEndpoint parses "[proto://]host:port". Proto defaults to tcp. Host
// may be a numeric IPv4/IPv6 literal or a name (left unresolved in Host).
// Port "0" is permitted (OS-assigned).
func ParseEndpoint(addr string) (Endpoint, error) {
	var ep Endpoint
	rest := addr
	if idx := strings.Index(rest, "://"); idx >= 0 {
		switch strings.ToLower(rest[:idx]) {
		case "tcp":
			ep.Proto = TCP
		case "udp":
			ep.Proto = UDP
		default:
			return Endpoint{}, fmt.Errorf("netaddr: unknown proto %q", rest[:idx])
		}
		rest = rest[idx+3:]
	}

	host, portStr, err := net.SplitHostPort(rest)
	if err != nil {
		// A bare host with no port is rejected: the syntax requires
		// host:port.
		return Endpoint{}, fmt.Errorf("netaddr: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, ErrBadPort
	}
	ep.Port = uint16(port)

	if host == "" {
		// Bind-all: wildcard IPv4 address, numeric (no resolution needed).
		ep.Family = IPv4
		return ep, nil
	}

	if ip := net.ParseIP(host); ip != nil {
		ep.setIP(ip, "")
		return ep, nil
	}
	// Might be "name%zone" for a literal IPv6 with scope, or a plain name.
	if h, zone, ok := strings.Cut(host, "%"); ok {
		if ip := net.ParseIP(h); ip != nil {
			ep.setIP(ip, zone)
			return ep, nil
		}
	}
	ep.Host = host
	ep.Family = IPv4 // placeholder until resolved
	return ep, nil
}

func (ep *Endpoint) setIP(ip net.IP, zone string) {
	if v4 := ip.To4(); v4 != nil {
		ep.Family = IPv4
		copy(ep.Addr4[:], v4)
		return
	}
	ep.Family = IPv6
	copy(ep.Addr16[:], ip.To16())
	ep.Zone = zone
}

// IsWildcard reports whether ep has no host component (bind-all address).
func (ep Endpoint) IsWildcard() bool {
	return ep.Host == "" && ep.Family == IPv4 && ep.Addr4 == [4]byte{}
}

// RequireHost returns ErrMissingHost if ep has no usable host, as Connect
// requires (spec.md §4.5: "Host is mandatory").
func (ep Endpoint) RequireHost() error {
	if ep.IsWildcard() {
		return ErrMissingHost
	}
	return nil
}

// IsNumeric reports whether the endpoint was built from a numeric literal
// (no blocking resolution required before Connect/Bind).
func (ep Endpoint) IsNumeric() bool { return ep.Host == "" }

// IP returns the net.IP view of a numeric endpoint.
func (ep Endpoint) IP() net.IP {
	if ep.Family == IPv6 {
		ip := make(net.IP, 16)
		copy(ip, ep.Addr16[:])
		return ip
	}
	ip := make(net.IP, 4)
	copy(ip, ep.Addr4[:])
	return ip
}

// WithResolved returns a copy of ep with Host cleared and the address fields
// set to ip, as produced by a Resolver.
func (ep Endpoint) WithResolved(ip net.IP) Endpoint {
	out := ep
	out.Host = ""
	out.setIP(ip, ep.Zone)
	return out
}

// String formats the endpoint back into "[proto://]host:port" form.
func (ep Endpoint) String() string {
	host := ep.Host
	if host == "" {
		host = ep.IP().String()
		if ep.Family == IPv6 && ep.Zone != "" {
			host += "%" + ep.Zone
		}
	}
	return fmt.Sprintf("%s://%s", ep.Proto, net.JoinHostPort(host, strconv.Itoa(int(ep.Port))))
}

// SockaddrFamily returns the syscall address family (AF_INET / AF_INET6)
// this endpoint requires, for callers building raw sockets.
func (ep Endpoint) SockaddrFamily() int {
	if ep.Family == IPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// Sockaddr builds the unix.Sockaddr this endpoint represents, for direct use
// with unix.Connect/Bind.
func (ep Endpoint) Sockaddr() unix.Sockaddr {
	if ep.Family == IPv6 {
		sa := &unix.SockaddrInet6{Port: int(ep.Port)}
		sa.Addr = ep.Addr16
		if ep.Zone != "" {
			if iface, err := net.InterfaceByName(ep.Zone); err == nil {
				sa.ZoneId = uint32(iface.Index)
			}
		}
		return sa
	}
	sa := &unix.SockaddrInet4{Port: int(ep.Port)}
	sa.Addr = ep.Addr4
	return sa
}
