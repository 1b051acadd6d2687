package dispatcher

import (
	"errors"
	"net/netip"
	"strings"
	"testing"
)

// newDetachedSender creates a sender that is not attached to a worker or table
func newDetachedSender(info SenderInfo) *Sender {
	e := &Engine{metrics: newEngineMetrics(0)}
	return &Sender{
		info:    info,
		handler: &BaseReplyHandler{},
		engine:  e,
		stats:   newSenderStats(),
		fd:      -1,
	}
}

// TestResendPolicy tests how often an in-flight message survives a failed connection
func TestResendPolicy(t *testing.T) {
	tests := []struct {
		name           string
		maxResend      int
		kind           MessageKind
		failures       int
		expectInFlight bool
		expectSent     int64
		expectDropped  int64
	}{
		{"no resend drops immediately", 0, KindBuffer, 1, false, 0, 1},
		{"buffer restarts from zero", 2, KindBuffer, 2, true, 0, 0},
		{"buffer dropped after max resends", 2, KindBuffer, 3, false, 0, 1},
		{"file keeps its offset", 1, KindFile, 1, true, 7, 0},
		{"unlimited resends", -1, KindBuffer, 100, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newDetachedSender(SenderInfo{MaxResendCount: tt.maxResend})
			s.cur = &Message{kind: tt.kind, length: 10}
			s.sent = 7

			for i := 0; i < tt.failures; i++ {
				s.resetCurrentMessage()
			}

			if (s.cur != nil) != tt.expectInFlight {
				t.Fatalf("Expected in flight %t, got %t", tt.expectInFlight, s.cur != nil)
			}
			if tt.expectInFlight && s.sent != tt.expectSent {
				t.Errorf("Expected offset %d, got %d", tt.expectSent, s.sent)
			}
			if got := s.stats.messagesDropped.Count(); got != tt.expectDropped {
				t.Errorf("Expected %d dropped messages, got %d", tt.expectDropped, got)
			}
			if !tt.expectInFlight && s.resends != 0 {
				t.Errorf("Resend counter must be reset after a drop, got %d", s.resends)
			}
		})
	}
}

// TestResendCounterReset tests that a completed message resets the resend counter
func TestResendCounterReset(t *testing.T) {
	s := newDetachedSender(SenderInfo{MaxResendCount: 1})
	s.cur = NewBufferMessage([]byte("abc"))
	s.resetCurrentMessage()
	if s.resends != 1 {
		t.Fatalf("Expected one resend, got %d", s.resends)
	}

	s.freeCurrentMessage()
	s.cur = NewBufferMessage([]byte("def"))
	s.resetCurrentMessage()
	if s.cur == nil {
		t.Error("A new message must get its own resend budget")
	}
}

// TestReconnectBudget tests that large reconnect limits are kept as given
func TestReconnectBudget(t *testing.T) {
	s := newDetachedSender(SenderInfo{})

	tests := []struct {
		limit      int
		reconnects int
		exhausted  bool
	}{
		{0, 0, true},
		{2, 1, false},
		{2, 2, true},
		{-1, 1000, false},
		{1 << 31, 1000, false},
		{1 << 32, 1000, false},
	}

	for _, tt := range tests {
		s.SetReconnectCount(tt.limit)
		s.reconnects = tt.reconnects
		if got := s.reconnectsExhausted(); got != tt.exhausted {
			t.Errorf("limit %d after %d reconnects: expected exhausted=%t, got %t",
				tt.limit, tt.reconnects, tt.exhausted, got)
		}
	}
}

// TestSenderInfo tests validation and the string representations
func TestSenderInfo(t *testing.T) {
	addr := netip.MustParseAddrPort("10.0.0.1:8080")
	info := SenderInfo{Key: 7, Addr: addr, QueueCapacity: 16, MaxResendCount: 1, MaxReconnectCount: -1}

	if got := info.String(); got != "sender_info://7@10.0.0.1:8080-16-1--1" {
		t.Errorf("Unexpected SenderInfo.String(): %s", got)
	}
	if got := newDetachedSender(info).String(); got != "sender://7-10.0.0.1:8080" {
		t.Errorf("Unexpected Sender.String(): %s", got)
	}

	tests := []struct {
		name string
		info SenderInfo
		err  error
	}{
		{"valid", info, nil},
		{"zero address", SenderInfo{}, ErrInvalidDestination},
		{"zero port", SenderInfo{Addr: netip.AddrPortFrom(addr.Addr(), 0)}, ErrInvalidDestination},
		{"unspecified ip", SenderInfo{Addr: netip.MustParseAddrPort("0.0.0.0:80")}, ErrInvalidDestination},
		{"negative capacity", SenderInfo{Addr: addr, QueueCapacity: -1}, ErrInvalidQueueCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.info.validate()
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}
}

// TestConfigValidate tests the engine configuration checks
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		err    error
	}{
		{"default", func(c *Config) {}, nil},
		{"negative threads", func(c *Config) { c.Threads = -1 }, ErrInvalidThreadCount},
		{"too many threads", func(c *Config) { c.Threads = MaxThreads + 1 }, ErrInvalidThreadCount},
		{"empty table", func(c *Config) { c.ManagedTableSize = 0 }, ErrInvalidTableSize},
		{"table too large", func(c *Config) { c.ManagedTableSize = MaxManagedTableSize + 1 }, ErrInvalidTableSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}

	c := DefaultConfig()
	c.PollTimeout = 0
	if err := c.Validate(); err == nil {
		t.Error("Expected error for zero poll timeout")
	}

	if s := c.String(); !strings.Contains(s, "Reconnect Interval") {
		t.Errorf("String() misses the reconnect interval:\n%s", s)
	}
}

// TestResultString tests the names of handler results
func TestResultString(t *testing.T) {
	for r, name := range map[Result]string{
		ResultContinue: "continue",
		ResultFinish:   "finish",
		ResultError:    "error",
		ResultClose:    "close",
		ResultRelease:  "release",
		Result(42):     "unknown",
	} {
		if r.String() != name {
			t.Errorf("Expected %s, got %s", name, r.String())
		}
	}
}
