//go:build !linux

package reactor

import "errors"

// New is unimplemented outside Linux; the dispatcher targets epoll(7) per
// spec.md §9's OS-portability Non-goal (only Linux raw-fd sockets are in
// scope for this module).
func New() (Poller, error) {
	return nil, errors.New("reactor: no Poller implementation for this platform")
}
