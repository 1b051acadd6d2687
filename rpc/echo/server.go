package echo

import (
	"errors"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("echo")

const (
	defaultBufferSize = 64 * 1024 // 64 KB
)

// DataFunc is called with the bytes received on a connection. data is only
// valid during the call.
type DataFunc func(connID uint64, data []byte)

// Config holds the server settings
type Config struct {
	// Endpoint is the address to listen on, e.g. "127.0.0.1:0"
	Endpoint string
	// Echo writes every received byte back to the client
	Echo bool
	// BufferSize is the read buffer size per connection
	BufferSize int
	// TimeoutSecond closes connections idle for longer, 0 disables the timeout
	TimeoutSecond int
}

// Stats holds the server counters
type Stats struct {
	Connections   int64
	BytesReceived int64
	BytesSent     int64
}

// Server is a TCP echo and sink server
type Server struct {
	config     Config
	listener   net.Listener
	bufferPool *sync.Pool
	onData     DataFunc

	// mu orders registering a connection against Close
	mu     sync.Mutex
	conns  *xsync.MapOf[uint64, net.Conn]
	nextID atomic.Uint64
	wg     sync.WaitGroup
	closed atomic.Bool

	connections   *xsync.Counter
	bytesReceived *xsync.Counter
	bytesSent     *xsync.Counter
}

// NewServer creates a server, Listen and Serve start it
func NewServer(config Config) *Server {
	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}
	bufferSize := config.BufferSize

	return &Server{
		config: config,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
		conns:         xsync.NewMapOf[uint64, net.Conn](),
		connections:   xsync.NewCounter(),
		bytesReceived: xsync.NewCounter(),
		bytesSent:     xsync.NewCounter(),
	}
}

// OnData registers fn to observe received data. Must be called before Serve.
func (s *Server) OnData(fn DataFunc) {
	s.onData = fn
}

// Listen opens the listening socket
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Endpoint, err)
	}
	s.listener = listener
	Logger.Infof("echo server listening on %s (echo %t)", listener.Addr(), s.config.Echo)
	return nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() netip.AddrPort {
	if s.listener == nil {
		return netip.AddrPort{}
	}
	addr, err := netip.ParseAddrPort(s.listener.Addr().String())
	if err != nil {
		return netip.AddrPort{}
	}
	return addr
}

// Serve accepts connections until Close is called
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("echo server is not listening")
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		id := s.nextID.Add(1)
		s.conns.Store(id, conn)
		s.wg.Add(1)
		s.mu.Unlock()

		s.connections.Inc()
		go s.handleConnection(id, conn)
	}
}

// ListenAndServe combines Listen and Serve
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stats returns the current counters
func (s *Server) Stats() Stats {
	return Stats{
		Connections:   s.connections.Value(),
		BytesReceived: s.bytesReceived.Value(),
		BytesSent:     s.bytesSent.Value(),
	}
}

// Close stops accepting, closes all open connections and waits for their goroutines
func (s *Server) Close() error {
	s.mu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.conns.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})
	s.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection reads from one connection until the client closes it
func (s *Server) handleConnection(id uint64, conn net.Conn) {
	defer s.wg.Done()
	defer s.conns.Delete(id)
	defer conn.Close()

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	buf := s.bufferPool.Get().([]byte)
	defer s.bufferPool.Put(buf)

	for {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				return
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			s.bytesReceived.Add(int64(n))
			if s.onData != nil {
				s.onData(id, buf[:n])
			}

			if s.config.Echo {
				if _, werr := conn.Write(buf[:n]); werr != nil {
					Logger.Warningf("connection %d: write failed: %v", id, werr)
					return
				}
				s.bytesSent.Add(int64(n))
			}
		}

		// Case EOF: Connection closed by client
		if errors.Is(err, io.EOF) {
			Logger.Debugf("connection %d closed by client", id)
			return
		}

		if err != nil {
			if !s.closed.Load() {
				Logger.Warningf("connection %d: read failed: %v", id, err)
			}
			return
		}
	}
}
