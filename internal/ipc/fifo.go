package ipc

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MakeFIFO creates a named pipe at path, defensively unlinking any stale one
// left behind by a previous run.
func MakeFIFO(path string, mode uint32) error {
	if err := unix.Unlink(path); err != nil && err != unix.ENOENT {
		return fmt.Errorf("unlink stale fifo %s: %w", path, err)
	}
	if err := unix.Mkfifo(path, mode); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// OpenFIFO opens a named pipe with the given flags, returning an *os.File so
// callers can wrap it in the standard bufio readers and writers.
func OpenFIFO(path string, flags int) (*os.File, error) {
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("open fifo %s: %w", path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

// PollReadable waits up to timeoutMs for fd to become readable. Returns false
// on timeout; interrupted polls count as not readable so the caller re-checks
// its shutdown flag.
func PollReadable(fd int, timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, fmt.Errorf("poll fifo: %w", err)
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}
