package evloop

import "golang.org/x/sys/unix"

// sendUDPNow bypasses the send buffer and transmits immediately, per
// spec.md §5's UDP policy. The return value is the OS send count.
func (c *Connection) sendUDPNow(p []byte) (int, error) {
	if c.udpConnected {
		n, err := unix.Write(c.fd, p)
		if err != nil {
			return 0, wrapErr(RuntimeIoError, err)
		}
		return n, nil
	}
	if err := unix.Sendto(c.fd, p, 0, c.Peer.Sockaddr()); err != nil {
		return 0, wrapErr(RuntimeIoError, err)
	}
	return len(p), nil
}
