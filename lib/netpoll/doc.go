/*
Package netpoll is the thin platform layer underneath the dispatcher. It wraps
the handful of Linux primitives an event loop needs and nothing more:

  - Poller: an epoll instance plus an internal eventfd so other goroutines can
    interrupt a blocking Wait.
  - Notifier: a standalone eventfd that is readable while a counter is non-zero.
    Send queues use one to signal "not empty" to their worker.
  - Non-blocking TCP sockets: Dial, ConnectError, Read, Write, Sendfile,
    ShutdownWrite and Close, plus ApplyOptions for the usual socket tuning
    (TCP_NODELAY, buffer sizes, keep-alive, linger).

All functions operate on raw file descriptors. The caller owns every
descriptor it receives and must Close it exactly once.

On platforms other than Linux every constructor returns ErrUnsupported.

# Example

	p, err := netpoll.New(128)
	if err != nil {
		return err
	}
	defer p.Close()

	fd, connected, err := netpoll.Dial(netip.MustParseAddrPort("127.0.0.1:8080"))
	if err != nil {
		return err
	}
	if !connected {
		// wait for writability, then check netpoll.ConnectError(fd)
		_ = p.SetEvents(fd, netpoll.EventWrite)
	}

	events, err := p.Wait(2*time.Second, nil)
*/
package netpoll
