package dispatcher

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// SenderState is the connection state of a sender
type SenderState int32

const (
	StateUnconnected SenderState = iota
	StateConnecting
	StateConnected
	StateClosing
	StateReconnecting
	StateShutdown
)

func (s SenderState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Sender owns one outbound TCP connection and the queue of messages for it.
//
// Push* methods and the accessors may be called from any goroutine. Everything
// else happens on the worker the sender is assigned to.
type Sender struct {
	id      uint64
	info    SenderInfo
	handler ReplyHandler
	queue   *sendQueue
	table   SenderTable
	engine  *Engine
	stats   *senderStats

	state        atomic.Int32
	refs         atomic.Int32
	thread       atomic.Int32
	maxReconnect atomic.Int64
	toShutdown   atomic.Bool
	destroyed    atomic.Bool
	worker       atomic.Pointer[worker]

	// guarded by the table lock of the sender's identity
	inTable bool

	// owned by the assigned worker
	fd             int
	interest       uint32
	queueWatched   bool
	cur            *Message
	sent           int64
	resends        int
	reconnects     int
	closedNotified bool
}

// newSender creates a sender holding three references: the table, the caller of Open and the worker
func newSender(e *Engine, table SenderTable, info SenderInfo) (*Sender, error) {
	q, err := newSendQueue(info.QueueCapacity)
	if err != nil {
		return nil, err
	}

	if info.ReplyHandler == nil {
		info.ReplyHandler = &BaseReplyHandler{}
	}

	s := &Sender{
		id:      e.ids.Add(1),
		info:    info,
		handler: info.ReplyHandler,
		queue:   q,
		table:   table,
		engine:  e,
		stats:   newSenderStats(),
		fd:      -1,
	}
	s.refs.Store(3)
	s.thread.Store(-1)
	s.maxReconnect.Store(int64(info.MaxReconnectCount))
	s.state.Store(int32(StateUnconnected))

	if a, ok := s.handler.(Attacher); ok {
		a.Attach(s)
	}

	e.metrics.liveSenders.Add(1)
	return s, nil
}

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// Push queues msg, waiting up to timeout for space. A timeout <= 0 does not wait.
// Returns false if the queue stayed full or the sender is shutting down.
func (s *Sender) Push(msg *Message, timeout time.Duration) bool {
	if msg == nil || msg.kind == kindStop {
		return false
	}
	return s.queue.push(msg, timeout)
}

// PushBuffer queues data. data must not be modified until SendCompleted was called for it.
func (s *Sender) PushBuffer(data []byte, timeout time.Duration) bool {
	return s.Push(NewBufferMessage(data), timeout)
}

// PushFile queues length bytes of f starting at offset
func (s *Sender) PushFile(f *os.File, offset, length int64, timeout time.Duration) bool {
	if f == nil || offset < 0 || length < 0 {
		return false
	}
	return s.Push(NewFileMessage(f, offset, length), timeout)
}

// Info returns the info the sender was opened with
func (s *Sender) Info() SenderInfo { return s.info }

// ID returns the engine wide unique id of the sender
func (s *Sender) ID() uint64 { return s.id }

// State returns the current connection state
func (s *Sender) State() SenderState { return SenderState(s.state.Load()) }

// Thread returns the index of the worker the sender is assigned to, -1 if unassigned
func (s *Sender) Thread() int { return int(s.thread.Load()) }

// SetReconnectCount changes the maximum number of reconnects at runtime
func (s *Sender) SetReconnectCount(n int) {
	s.maxReconnect.Store(int64(n))
}

// Stats returns a snapshot of the sender's counters
func (s *Sender) Stats() SenderStats {
	st := s.stats.snapshot()
	st.QueuedMessages = s.queue.len()
	return st
}

// String returns sender://key-ip:port
func (s *Sender) String() string {
	return fmt.Sprintf("sender://%d-%s", s.info.Key, s.info.Addr)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (s *Sender) setState(state SenderState) {
	s.state.Store(int32(state))
}

func (s *Sender) acquire() {
	s.refs.Add(1)
}

func (s *Sender) release() {
	n := s.refs.Add(-1)
	switch {
	case n == 0:
		s.destroy()
	case n < 0:
		Logger.Errorf("%s released more often than acquired (%d)", s, n)
	}
}

// shutdown seals the queue with a stop message. The worker half-closes the
// connection once every message queued before was written.
func (s *Sender) shutdown() {
	if !s.toShutdown.CompareAndSwap(false, true) {
		return
	}
	s.queue.seal(newStopMessage())

	if w := s.worker.Load(); w != nil {
		w.wakeup()
	}
}

func (s *Sender) destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}

	if dropped := s.queue.destroy(); dropped > 0 {
		s.stats.messagesDropped.Inc(int64(dropped))
		s.engine.metrics.messagesDropped.Add(dropped)
		Logger.Debugf("%s discarded %d queued messages", s, dropped)
	}
	s.stats.stop()

	if c, ok := s.handler.(io.Closer); ok {
		if err := c.Close(); err != nil {
			Logger.Warningf("%s failed to close reply handler: %v", s, err)
		}
	}

	s.engine.metrics.liveSenders.Add(-1)
	Logger.Debugf("%s destroyed", s)
}

// --------------------------------------------------------------------------
// In-flight message (worker side)
// --------------------------------------------------------------------------

// reconnectsExhausted reports whether the reconnect budget is used up, a negative limit never is
func (s *Sender) reconnectsExhausted() bool {
	limit := s.maxReconnect.Load()
	return limit >= 0 && int64(s.reconnects) >= limit
}

// freeCurrentMessage forgets the in-flight message and resets the resend counter
func (s *Sender) freeCurrentMessage() {
	s.cur = nil
	s.sent = 0
	s.resends = 0
}

// dropCurrentMessage gives up on the in-flight message
func (s *Sender) dropCurrentMessage() {
	Logger.Warningf("%s dropped %s after %d resends", s, s.cur, s.resends)
	s.stats.messagesDropped.Inc(1)
	s.engine.metrics.messagesDropped.Inc()
	s.freeCurrentMessage()
}

// resetCurrentMessage applies the resend policy after a failed connection.
// Buffers are retried from the start, files from the last written offset.
func (s *Sender) resetCurrentMessage() {
	if s.cur == nil {
		return
	}

	if s.info.MaxResendCount < 0 || s.resends < s.info.MaxResendCount {
		s.resends++
		if s.cur.kind == KindBuffer {
			s.sent = 0
		}
		return
	}

	s.dropCurrentMessage()
}
