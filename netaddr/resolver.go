package netaddr

import (
	"context"
	"fmt"
	"net"
)

// Resolver is the blocking DNS resolution hook spec.md §4.5 requires before
// Connect proceeds on a named (non-numeric) host. It is a single synchronous
// lookup; an error fails the connect attempt outright (spec.md §7,
// ResolveError).
type Resolver interface {
	Resolve(host string) (net.IP, error)
}

// DefaultResolver wraps net.DefaultResolver.LookupIPAddr for a single
// synchronous lookup, preferring an IPv4 result when both families are
// returned (most callers of this substrate target IPv4 listeners).
type DefaultResolver struct{}

// Resolve performs one blocking DNS lookup and returns the first usable
// address.
func (DefaultResolver) Resolve(host string) (net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(context.Background(), host)
	if err != nil {
		return nil, fmt.Errorf("netaddr: resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("netaddr: resolve %q: no addresses", host)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return addrs[0].IP, nil
}

// Resolve resolves ep's host (if any) against r, returning a numeric
// endpoint. If ep is already numeric it is returned unchanged.
func Resolve(r Resolver, ep Endpoint) (Endpoint, error) {
	if ep.IsNumeric() {
		return ep, nil
	}
	ip, err := r.Resolve(ep.Host)
	if err != nil {
		return Endpoint{}, err
	}
	return ep.WithResolved(ip), nil
}
