//go:build linux

package netpoll

import (
	"errors"
	"fmt"
	"golang.org/x/sys/unix"
	"net"
	"net/netip"
)

// Dial creates a non-blocking TCP socket and starts connecting it to addr.
// connected is true when the connect completed synchronously (possible on
// loopback), otherwise the caller has to wait for writability and check
// ConnectError.
func Dial(addr netip.AddrPort) (fd int, connected bool, err error) {
	ip := addr.Addr().Unmap()
	if !ip.IsValid() || addr.Port() == 0 {
		return -1, false, fmt.Errorf("invalid address %v", addr)
	}

	var (
		family = unix.AF_INET
		sa     unix.Sockaddr
	)
	if ip.Is4() {
		sa = &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}
	} else {
		family = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}
		if zone := ip.Zone(); zone != "" {
			if iface, err := zoneIndex(zone); err == nil {
				sa6.ZoneId = iface
			}
		}
		sa = sa6
	}

	fd, err = unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, false, fmt.Errorf("socket: %w", err)
	}

	err = unix.Connect(fd, sa)
	switch {
	case err == nil:
		return fd, true, nil
	case errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EINTR), errors.Is(err, unix.EALREADY):
		return fd, false, nil
	default:
		_ = unix.Close(fd)
		return -1, false, fmt.Errorf("connect %v: %w", addr, err)
	}
}

func zoneIndex(zone string) (uint32, error) {
	iface, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, err
	}
	return uint32(iface.Index), nil
}

// ConnectError returns the result of a pending non-blocking connect
func ConnectError(fd int) error {
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

// Write writes b to the socket. n is never negative.
func Write(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Write(fd, b)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Read reads into b. A return of (0, nil) means the peer closed the connection.
func Read(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Sendfile copies count bytes of file descriptor src starting at *offset to the
// socket without passing them through user space. *offset is advanced by the
// number of bytes written. TCP_CORK is set for the duration of the call so the
// kernel only emits full segments.
func Sendfile(sock int, src int, offset *int64, count int) (int, error) {
	_ = unix.SetsockoptInt(sock, unix.IPPROTO_TCP, unix.TCP_CORK, 1)
	defer func() {
		_ = unix.SetsockoptInt(sock, unix.IPPROTO_TCP, unix.TCP_CORK, 0)
	}()

	for {
		n, err := unix.Sendfile(sock, src, offset, count)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// ShutdownWrite half-closes the socket so the peer reads EOF after the
// already queued data
func ShutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

// Close closes a descriptor returned by Dial
func Close(fd int) error {
	return unix.Close(fd)
}

// IsWouldBlock reports whether err only means "try again when ready"
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// ApplyOptions applies the socket tuning options to fd
func ApplyOptions(fd int, opts SocketOptions) error {
	// Disable Nagle's algorithm if configured
	if opts.NoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return fmt.Errorf("TCP_NODELAY: %w", err)
		}
	}

	// Set socket buffer sizes if configured
	if opts.SendBuffer > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuffer); err != nil {
			return fmt.Errorf("SO_SNDBUF: %w", err)
		}
	}
	if opts.RecvBuffer > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBuffer); err != nil {
			return fmt.Errorf("SO_RCVBUF: %w", err)
		}
	}

	// Enable keep-alive if configured
	if opts.KeepAliveSec > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return fmt.Errorf("SO_KEEPALIVE: %w", err)
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, opts.KeepAliveSec); err != nil {
			return fmt.Errorf("TCP_KEEPIDLE: %w", err)
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, opts.KeepAliveSec); err != nil {
			return fmt.Errorf("TCP_KEEPINTVL: %w", err)
		}
	}

	// Set linger option if configured
	if opts.Linger >= 0 {
		l := &unix.Linger{Onoff: 1, Linger: int32(opts.Linger)}
		if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, l); err != nil {
			return fmt.Errorf("SO_LINGER: %w", err)
		}
	}

	return nil
}
