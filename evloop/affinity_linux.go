//go:build linux

package evloop

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its current OS thread and
// restricts that thread to the given CPU. Call it from the goroutine that
// will run Poll, before the first call, so every read(2)/write(2)/epoll_wait
// the manager issues stays on one core for cache locality.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
