package netpoll

import (
	"errors"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("netpoll")

// ErrUnsupported is returned by every constructor on platforms without epoll
var ErrUnsupported = errors.New("netpoll: platform not supported")

// Event is a single readiness notification for a file descriptor
type Event struct {
	Fd    int
	Flags uint32
}

// Readable reports whether the descriptor has data (or EOF) to read
func (e Event) Readable() bool { return e.Flags&EventRead != 0 }

// Writable reports whether the descriptor accepts more data
func (e Event) Writable() bool { return e.Flags&EventWrite != 0 }

// Failed reports an error condition or a hang-up on the descriptor
func (e Event) Failed() bool { return e.Flags&(EventError|EventHup) != 0 }

// PeerClosed reports that the remote side shut down its writing half
func (e Event) PeerClosed() bool { return e.Flags&EventPeerClosed != 0 }

// SocketOptions holds the tuning knobs applied to outbound sockets.
// Zero values leave the kernel defaults untouched, except for Linger
// which is only applied when >= 0.
type SocketOptions struct {
	NoDelay      bool // Disable Nagle's algorithm
	SendBuffer   int  // SO_SNDBUF in bytes
	RecvBuffer   int  // SO_RCVBUF in bytes
	KeepAliveSec int  // Enables SO_KEEPALIVE with this idle/interval period
	Linger       int  // SO_LINGER in seconds, -1 = kernel default
}

// DefaultSocketOptions returns the options used when nothing is configured
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		NoDelay: true,
		Linger:  -1,
	}
}
