package evloop

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// boundPort returns the OS-assigned port of a listener created with port 0.
func boundPort(c *Connection) (int, error) {
	sa, err := unix.Getsockname(c.Fd())
	if err != nil {
		return 0, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	}
	return 0, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
