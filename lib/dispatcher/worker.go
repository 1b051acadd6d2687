package dispatcher

import (
	"github.com/ValentinKolb/dDispatch/lib/netpoll"
	"github.com/ValentinKolb/dDispatch/lib/util"
	"golang.org/x/time/rate"
	"sync/atomic"
	"time"
)

// maxMessagesPerEvent bounds how many messages one writable event may send,
// so a sender with a busy queue cannot starve the others of the same worker
const maxMessagesPerEvent = 64

// action is what the worker does with a sender after handling an event
type action int

const (
	actionKeep    action = iota // keep the connection, re-arm interest
	actionFail                  // close the connection and take the reconnect path
	actionRelease               // hand the sender over to another worker
)

// registration maps a polled descriptor back to its sender
type registration struct {
	sender  *Sender
	isQueue bool // the descriptor is the sender's queue notifier
}

// worker is a single goroutine event loop that drives the connections of all
// senders assigned to it. Apart from the pending queue, the limiter and the
// stopping flag, all fields are only touched by the worker goroutine.
type worker struct {
	index    int
	engine   *Engine
	poller   *netpoll.Poller
	pending  *util.LockFreeMPSC[Sender]
	limiter  *rate.Limiter
	stopping atomic.Bool

	timeouts  *timeoutTracker
	regs      map[int]registration
	senders   map[uint64]*Sender
	reconnect []*Sender
	events    []netpoll.Event
	now       time.Time
}

// reconnectLimit converts a reconnect interval into a limiter rate
func reconnectLimit(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

func newWorker(e *Engine, index int) (*worker, error) {
	p, err := netpoll.New(e.config.MaxEvents)
	if err != nil {
		return nil, err
	}

	return &worker{
		index:    index,
		engine:   e,
		poller:   p,
		pending:  util.NewLockFreeMPSC[Sender](),
		limiter:  rate.NewLimiter(reconnectLimit(e.config.ReconnectInterval), 1),
		timeouts: newTimeoutTracker(e.config.IdleTimeout),
		regs:     make(map[int]registration),
		senders:  make(map[uint64]*Sender),
		events:   make([]netpoll.Event, 0, e.config.MaxEvents),
		now:      time.Now(),
	}, nil
}

// --------------------------------------------------------------------------
// Cross goroutine entry points
// --------------------------------------------------------------------------

// enqueue assigns s to this worker. The worker picks it up on its next iteration.
func (w *worker) enqueue(s *Sender) {
	s.worker.Store(w)
	s.thread.Store(int32(w.index))
	w.pending.Push(s)
	w.wakeup()
}

func (w *worker) wakeup() {
	if err := w.poller.Wakeup(); err != nil {
		Logger.Warningf("worker %d: wakeup failed: %v", w.index, err)
	}
}

func (w *worker) stop() {
	w.stopping.Store(true)
	w.wakeup()
}

// --------------------------------------------------------------------------
// Event loop
// --------------------------------------------------------------------------

func (w *worker) run() {
	defer w.engine.wg.Done()
	Logger.Debugf("worker %d started", w.index)

	for !w.stopping.Load() {
		w.iterate()
	}

	w.teardown()
	Logger.Debugf("worker %d exited", w.index)
}

// iterate runs one round of the event loop
func (w *worker) iterate() {
	events, err := w.poller.Wait(w.waitTimeout(), w.events)
	if err != nil {
		Logger.Errorf("worker %d: poll failed: %v", w.index, err)
		time.Sleep(10 * time.Millisecond)
		return
	}
	w.events = events
	w.now = time.Now()

	// the order matters: shutdown senders must not be reconnected and new
	// senders must not be part of the current reconnect batch
	w.removeShutdownSenders()
	w.checkReconnectQueue()
	w.checkPendingQueue()

	for _, ev := range events {
		w.dispatch(ev)
	}

	w.timeouts.checkTimeout(w.now, w.onTimeout)
}

// waitTimeout returns how long the next poll may block
func (w *worker) waitTimeout() time.Duration {
	d := w.engine.config.PollTimeout

	if len(w.reconnect) > 0 {
		d = min(d, w.reconnectDelay())
	}
	if next, ok := w.timeouts.next(time.Now()); ok {
		d = min(d, next)
	}

	return max(d, time.Millisecond)
}

// reconnectDelay returns the time until the limiter allows the next reconnect batch
func (w *worker) reconnectDelay() time.Duration {
	limit := w.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	tokens := w.limiter.Tokens()
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) / float64(limit) * float64(time.Second))
}

func (w *worker) dispatch(ev netpoll.Event) {
	reg, ok := w.regs[ev.Fd]
	if !ok {
		return
	}

	s := reg.sender
	if reg.isQueue {
		// new messages for an idle sender
		if !w.arm(s) {
			w.fail(s)
		}
		return
	}

	w.timeouts.remove(s)
	switch w.process(s, ev) {
	case actionKeep:
		if !w.arm(s) {
			w.fail(s)
			return
		}
		w.timeouts.push(s, w.now)
	case actionFail:
		w.fail(s)
	case actionRelease:
		w.handOver(s)
	}
}

// --------------------------------------------------------------------------
// Queues of the worker
// --------------------------------------------------------------------------

// removeShutdownSenders removes shut down senders waiting for a reconnect, ignoring the throttle
func (w *worker) removeShutdownSenders() {
	if len(w.reconnect) == 0 {
		return
	}

	kept := w.reconnect[:0]
	for _, s := range w.reconnect {
		if s.toShutdown.Load() {
			w.remove(s)
			continue
		}
		kept = append(kept, s)
	}
	clear(w.reconnect[len(kept):])
	w.reconnect = kept
}

// checkReconnectQueue reconnects all waiting senders, at most once per reconnect interval
func (w *worker) checkReconnectQueue() {
	if len(w.reconnect) == 0 || !w.limiter.Allow() {
		return
	}

	// senders failing again are queued for the next batch
	batch := w.reconnect
	w.reconnect = nil

	for _, s := range batch {
		if s.toShutdown.Load() {
			w.remove(s)
			continue
		}

		if s.reconnectsExhausted() {
			Logger.Infof("%s giving up after %d reconnects", s, s.reconnects)
			w.remove(s)
			continue
		}

		s.reconnects++
		s.stats.reconnects.Inc(1)
		w.engine.metrics.reconnects.Inc()
		Logger.Debugf("%s reconnecting (%d)", s, s.reconnects)
		w.connect(s)
	}
}

// checkPendingQueue takes over new and handed over senders
func (w *worker) checkPendingQueue() {
	w.pending.Drain(w.adopt)
}

func (w *worker) adopt(s *Sender) {
	w.senders[s.id] = s

	if s.fd < 0 {
		w.connect(s)
		return
	}

	// handed over with a live connection
	w.regs[s.fd] = registration{sender: s}
	if !w.arm(s) {
		w.fail(s)
		return
	}
	w.timeouts.push(s, w.now)
}

// onTimeout is called for senders idle for longer than the idle timeout
func (w *worker) onTimeout(s *Sender) {
	if s.toShutdown.Load() {
		Logger.Debugf("%s idle while shutting down", s)
		w.remove(s)
		return
	}

	w.engine.metrics.timeouts.Inc()
	if w.askTimeout(s) {
		Logger.Debugf("%s timed out", s)
		w.fail(s)
		return
	}
	w.timeouts.push(s, w.now)
}

// --------------------------------------------------------------------------
// Sender transitions
// --------------------------------------------------------------------------

// connect starts a non-blocking connect. A sender closed before its first
// connect still connects, its queued messages are written before the stop message.
func (w *worker) connect(s *Sender) {
	s.setState(StateConnecting)
	fd, connected, err := netpoll.Dial(s.info.Addr)
	if err != nil {
		Logger.Debugf("%s failed to connect: %v", s, err)
		w.fail(s)
		return
	}

	s.fd = fd
	s.interest = 0
	w.regs[fd] = registration{sender: s}

	if err := netpoll.ApplyOptions(fd, w.engine.config.Socket); err != nil {
		Logger.Warningf("%s failed to apply socket options: %v", s, err)
	}

	if connected {
		Logger.Debugf("%s connected instantly", s)
		w.connected(s)
	}

	if !w.arm(s) {
		w.fail(s)
		return
	}
	w.timeouts.push(s, w.now)
}

func (w *worker) connected(s *Sender) {
	s.setState(StateConnected)
	s.reconnects = 0
	s.closedNotified = false
	w.notify(s, s.handler.Connected)
}

// fail closes the connection, notifies the handler and queues the sender for a reconnect
func (w *worker) fail(s *Sender) {
	prev := s.State()
	w.closeSocket(s)
	w.timeouts.remove(s)

	switch prev {
	case StateConnecting:
		s.stats.connectFailures.Inc(1)
		w.engine.metrics.connectFailures.Inc()
		w.notify(s, s.handler.ConnectFailure)
	case StateConnected, StateClosing:
		s.closedNotified = true
		w.notify(s, s.handler.Closed)
	}

	s.resetCurrentMessage()

	if s.toShutdown.Load() {
		w.remove(s)
		return
	}

	s.setState(StateReconnecting)
	w.reconnect = append(w.reconnect, s)
}

// remove takes the sender out of the worker and its table and drops the worker's reference
func (w *worker) remove(s *Sender) {
	if _, ok := w.senders[s.id]; !ok {
		return
	}
	delete(w.senders, s.id)

	w.closeSocket(s)
	w.timeouts.remove(s)

	if !s.closedNotified {
		s.closedNotified = true
		w.notify(s, s.handler.Closed)
	}
	if s.cur != nil {
		s.dropCurrentMessage()
	}

	s.table.Remove(s)
	s.setState(StateShutdown)
	s.worker.Store(nil)
	Logger.Debugf("%s removed from worker %d", s, w.index)

	s.release()
}

// handOver moves a connected sender to the worker chosen by its handler
func (w *worker) handOver(s *Sender) {
	target := w.engine.releaseTarget(s)
	if target == w {
		if !w.arm(s) {
			w.fail(s)
			return
		}
		w.timeouts.push(s, w.now)
		return
	}

	w.unregister(s)
	w.timeouts.remove(s)
	delete(w.senders, s.id)

	w.engine.metrics.handovers.Inc()
	Logger.Debugf("%s handed over from worker %d to %d", s, w.index, target.index)
	target.enqueue(s)
}

// teardown removes every sender the worker owns, including unprocessed pending ones
func (w *worker) teardown() {
	w.pending.Drain(func(s *Sender) {
		w.senders[s.id] = s
	})
	for _, s := range w.senders {
		w.remove(s)
	}
	w.reconnect = nil
}

// --------------------------------------------------------------------------
// Poller registration
// --------------------------------------------------------------------------

// arm sets the poll interest of the sender's socket according to its state.
// Idle connected senders watch their queue notifier instead of writability.
func (w *worker) arm(s *Sender) bool {
	var (
		want       uint32
		watchQueue bool
	)

	switch s.State() {
	case StateConnecting:
		want = netpoll.EventRead | netpoll.EventWrite
	case StateConnected:
		if s.cur != nil || !s.queue.empty() {
			want = netpoll.EventRead | netpoll.EventWrite
		} else {
			want = netpoll.EventRead
			watchQueue = true
		}
	default:
		want = netpoll.EventRead
	}

	if want != s.interest {
		if err := w.poller.SetEvents(s.fd, want|netpoll.EventPeerClosed); err != nil {
			Logger.Errorf("%s failed to set poll events: %v", s, err)
			return false
		}
		s.interest = want
	}

	w.watchQueue(s, watchQueue)
	return true
}

func (w *worker) watchQueue(s *Sender, on bool) {
	if on == s.queueWatched {
		return
	}

	fd := s.queue.fd()
	if on {
		if err := w.poller.SetEvents(fd, netpoll.EventRead); err != nil {
			Logger.Errorf("%s failed to watch send queue: %v", s, err)
			return
		}
		w.regs[fd] = registration{sender: s, isQueue: true}
	} else {
		if err := w.poller.Del(fd); err != nil {
			Logger.Warningf("%s failed to unwatch send queue: %v", s, err)
		}
		delete(w.regs, fd)
	}
	s.queueWatched = on
}

// unregister removes all descriptors of s from the poller, the socket stays open
func (w *worker) unregister(s *Sender) {
	w.watchQueue(s, false)
	if s.fd >= 0 {
		if err := w.poller.Del(s.fd); err != nil {
			Logger.Warningf("%s failed to unregister socket: %v", s, err)
		}
		delete(w.regs, s.fd)
	}
	s.interest = 0
}

// closeSocket unregisters and closes the sender's socket
func (w *worker) closeSocket(s *Sender) {
	w.unregister(s)
	if s.fd >= 0 {
		if err := netpoll.Close(s.fd); err != nil {
			Logger.Warningf("%s failed to close socket: %v", s, err)
		}
		s.fd = -1
	}
}

// --------------------------------------------------------------------------
// Handler calls
// --------------------------------------------------------------------------

// notify calls a handler callback, a panic is logged and swallowed
func (w *worker) notify(s *Sender, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("%s reply handler panicked: %v", s, r)
		}
	}()
	fn()
}

// askTimeout asks the handler whether an idle connection should be torn down
func (w *worker) askTimeout(s *Sender) (teardown bool) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("%s reply handler panicked: %v", s, r)
			teardown = true
		}
	}()
	return s.handler.Timeout()
}
