//go:build linux

package netpoll

import (
	"errors"
	"fmt"
	"golang.org/x/sys/unix"
	"sync/atomic"
	"time"
)

const (
	EventRead       = uint32(unix.EPOLLIN)
	EventWrite      = uint32(unix.EPOLLOUT)
	EventError      = uint32(unix.EPOLLERR)
	EventHup        = uint32(unix.EPOLLHUP)
	EventPeerClosed = uint32(unix.EPOLLRDHUP)
)

// Poller is an epoll instance with a built in wakeup descriptor.
// Wait, SetEvents and Del are meant to be called from a single goroutine,
// Wakeup may be called from anywhere.
type Poller struct {
	epfd   int
	wake   *Notifier
	events []unix.EpollEvent
	closed atomic.Bool
}

// New creates a poller that returns at most maxEvents events per Wait
func New(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wake, err := NewNotifier()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	p := &Poller{
		epfd:   epfd,
		wake:   wake,
		events: make([]unix.EpollEvent, maxEvents),
	}

	if err := p.ctl(unix.EPOLL_CTL_ADD, wake.Fd(), EventRead); err != nil {
		_ = wake.Close()
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl wakeup fd: %w", err)
	}

	return p, nil
}

func (p *Poller) ctl(op int, fd int, flags uint32) error {
	ev := unix.EpollEvent{Events: flags, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, op, fd, &ev)
}

// SetEvents sets the interest set of fd, registering the descriptor if
// it is not yet known to the poller
func (p *Poller) SetEvents(fd int, flags uint32) error {
	err := p.ctl(unix.EPOLL_CTL_MOD, fd, flags)
	if errors.Is(err, unix.ENOENT) {
		err = p.ctl(unix.EPOLL_CTL_ADD, fd, flags)
	}
	return err
}

// Del removes fd from the poller. Unknown descriptors are ignored.
func (p *Poller) Del(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
		return nil
	}
	return err
}

// Wait blocks up to timeout for events and appends them to out.
// A negative timeout blocks until an event or a Wakeup arrives.
// Interrupted waits return no events and no error.
func (p *Poller) Wait(timeout time.Duration, out []Event) ([]Event, error) {
	out = out[:0]

	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}

	n, err := unix.EpollWait(p.epfd, p.events, msec)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return out, nil
		}
		return out, err
	}

	wakeFd := int32(p.wake.Fd())
	for i := 0; i < n; i++ {
		ev := p.events[i]
		if ev.Fd == wakeFd {
			if err := p.wake.Drain(); err != nil {
				Logger.Warningf("failed to drain wakeup fd: %v", err)
			}
			continue
		}
		out = append(out, Event{Fd: int(ev.Fd), Flags: ev.Events})
	}

	return out, nil
}

// Wakeup interrupts a blocking Wait
func (p *Poller) Wakeup() error {
	if p.closed.Load() {
		return nil
	}
	return p.wake.Notify()
}

// Close releases the epoll instance and the wakeup descriptor
func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	werr := p.wake.Close()
	if err := unix.Close(p.epfd); err != nil {
		return err
	}
	return werr
}
