//go:build linux

package dispatcher

import (
	"bytes"
	"github.com/ValentinKolb/dDispatch/rpc/echo"
	"net"
	"net/netip"
	"os"
	"sync"
	"testing"
	"time"
)

// testCounts is a snapshot of the callbacks a testHandler received
type testCounts struct {
	connected       int
	connectFailures int
	closed          int
	completed       int
	timeouts        int
	handlerClosed   int
	progress        int64
}

// testHandler records every callback of its sender
type testHandler struct {
	BaseReplyHandler

	mu           sync.Mutex
	sender       *Sender
	counts       testCounts
	failureTimes []time.Time
	replies      []byte

	keepAlive      bool // Timeout returns false
	releaseOnReply bool // the first reply hands the sender over
	released       bool
	panicConnected bool
	panicCompleted bool // the first SendCompleted panics
}

func (h *testHandler) Attach(s *Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sender = s
}

func (h *testHandler) HandleReply(n int) Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replies = append(h.replies, h.GetBuffer()[:n]...)
	if h.releaseOnReply && !h.released {
		h.released = true
		return ResultRelease
	}
	return ResultContinue
}

func (h *testHandler) SendProgress(_, _, justSent int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts.progress += justSent
}

func (h *testHandler) SendCompleted() {
	h.mu.Lock()
	h.counts.completed++
	first := h.counts.completed == 1
	h.mu.Unlock()
	if h.panicCompleted && first {
		panic("completed")
	}
}

func (h *testHandler) Connected() {
	h.mu.Lock()
	h.counts.connected++
	h.mu.Unlock()
	if h.panicConnected {
		panic("connected")
	}
}

func (h *testHandler) ConnectFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts.connectFailures++
	h.failureTimes = append(h.failureTimes, time.Now())
}

func (h *testHandler) Closed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts.closed++
}

func (h *testHandler) Timeout() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts.timeouts++
	return !h.keepAlive
}

func (h *testHandler) ReleaseTarget(threads int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sender.Thread() + 1
}

func (h *testHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts.handlerClosed++
	return nil
}

func (h *testHandler) snapshot() testCounts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts
}

func (h *testHandler) received() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bytes.Clone(h.replies)
}

// collector gathers the bytes an echo server received
type collector struct {
	mu   sync.Mutex
	data []byte
}

func (c *collector) onData(_ uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(c.data, data...)
}

func (c *collector) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.data)
}

// startEcho starts an echo server on a random loopback port
func startEcho(t *testing.T, echoData bool) (*echo.Server, *collector) {
	t.Helper()
	c := &collector{}
	srv := echo.NewServer(echo.Config{Endpoint: "127.0.0.1:0", Echo: echoData})
	srv.OnData(c.onData)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })
	return srv, c
}

// closedPort returns a loopback address nobody listens on
func closedPort(t *testing.T) netip.AddrPort {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr).AddrPort()
	_ = l.Close()
	return addr
}

// newTestEngine starts an engine with short timings, closed when the test ends
func newTestEngine(t *testing.T, threads int, modify func(c *Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Threads = threads
	cfg.PollTimeout = 20 * time.Millisecond
	cfg.ReconnectInterval = 50 * time.Millisecond
	cfg.IdleTimeout = 0
	cfg.ManagedTableSize = 64
	if modify != nil {
		modify(&cfg)
	}

	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// eventually polls cond until it holds or the timeout expires
func eventually(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf(format, args...)
	}
}

// openFDs returns the number of open file descriptors of the process
func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	return len(entries)
}
