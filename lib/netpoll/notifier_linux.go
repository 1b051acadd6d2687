//go:build linux

package netpoll

import (
	"encoding/binary"
	"errors"
	"golang.org/x/sys/unix"
)

// Notifier wraps a non-blocking eventfd
type Notifier struct {
	fd int
}

// NewNotifier creates a new eventfd based notifier
func NewNotifier() (*Notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Notifier{fd: fd}, nil
}

// Fd returns the descriptor to register with a Poller
func (n *Notifier) Fd() int { return n.fd }

// Notify increments the eventfd counter and makes the descriptor readable
func (n *Notifier) Notify() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(n.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			// counter saturated, the descriptor is readable anyway
			return nil
		}
		return err
	}
}

// Drain resets the counter so the descriptor stops being readable
func (n *Notifier) Drain() error {
	var buf [8]byte
	for {
		_, err := unix.Read(n.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return nil
		}
		return err
	}
}

// Close releases the eventfd
func (n *Notifier) Close() error {
	if n.fd < 0 {
		return nil
	}
	err := unix.Close(n.fd)
	n.fd = -1
	return err
}
