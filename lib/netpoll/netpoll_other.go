//go:build !linux

package netpoll

import (
	"net/netip"
	"time"
)

const (
	EventRead uint32 = 1 << iota
	EventWrite
	EventError
	EventHup
	EventPeerClosed
)

// Poller is not available on this platform
type Poller struct{}

func New(int) (*Poller, error) { return nil, ErrUnsupported }
func (p *Poller) SetEvents(int, uint32) error { return ErrUnsupported }
func (p *Poller) Del(int) error { return ErrUnsupported }
func (p *Poller) Wait(time.Duration, []Event) ([]Event, error) { return nil, ErrUnsupported }
func (p *Poller) Wakeup() error { return ErrUnsupported }
func (p *Poller) Close() error { return nil }

// Notifier is not available on this platform
type Notifier struct{}

func NewNotifier() (*Notifier, error) { return nil, ErrUnsupported }
func (n *Notifier) Fd() int { return -1 }
func (n *Notifier) Notify() error { return ErrUnsupported }
func (n *Notifier) Drain() error { return ErrUnsupported }
func (n *Notifier) Close() error { return nil }

func Dial(netip.AddrPort) (int, bool, error) { return -1, false, ErrUnsupported }
func ConnectError(int) error { return ErrUnsupported }
func Write(int, []byte) (int, error) { return 0, ErrUnsupported }
func Read(int, []byte) (int, error) { return 0, ErrUnsupported }
func Sendfile(int, int, *int64, int) (int, error) { return 0, ErrUnsupported }
func ShutdownWrite(int) error { return ErrUnsupported }
func Close(int) error { return ErrUnsupported }
func IsWouldBlock(error) bool { return false }
func ApplyOptions(int, SocketOptions) error { return ErrUnsupported }
