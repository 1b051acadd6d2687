package dispatcher

import (
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("dispatcher")

// engineIDs numbers engines so their metrics do not collide
var engineIDs atomic.Uint64

// Engine is a fixed pool of workers plus the two sender tables
type Engine struct {
	config  Config
	id      uint64
	workers []*worker
	next    atomic.Uint64 // round-robin counter
	ids     atomic.Uint64 // sender ids

	mu     sync.RWMutex // guards closed against concurrent Open
	closed bool
	wg     sync.WaitGroup

	managed   *ManagedSenderTable
	unmanaged *UnmanagedSenderTable
	metrics   *engineMetrics
}

// CreateEngine creates and starts an engine with threadCount workers and an idle
// timeout of timeoutSeconds (0 disables idle timeouts). All other parameters are
// taken from DefaultConfig.
func CreateEngine(threadCount int, timeoutSeconds int) (*Engine, error) {
	cfg := DefaultConfig()
	cfg.Threads = threadCount
	cfg.IdleTimeout = time.Duration(timeoutSeconds) * time.Second
	return NewEngine(cfg)
}

// NewEngine creates and starts an engine. Close must be called to stop the workers.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Threads == 0 {
		cfg.Threads = defaultThreads()
	}

	id := engineIDs.Add(1)
	e := &Engine{
		config:  cfg,
		id:      id,
		metrics: newEngineMetrics(id),
	}
	e.managed = newManagedSenderTable(e, cfg.ManagedTableSize)
	e.unmanaged = newUnmanagedSenderTable(e)

	e.workers = make([]*worker, cfg.Threads)
	for i := range e.workers {
		w, err := newWorker(e, i)
		if err != nil {
			for _, started := range e.workers[:i] {
				_ = started.poller.Close()
			}
			return nil, err
		}
		e.workers[i] = w
	}

	e.wg.Add(len(e.workers))
	for _, w := range e.workers {
		go w.run()
	}

	Logger.Infof("dispatcher engine %d started with %d workers", e.id, len(e.workers))
	return e, nil
}

// ManagedTable returns the table of senders identified by a uint16 key
func (e *Engine) ManagedTable() *ManagedSenderTable { return e.managed }

// UnmanagedTable returns the table of senders identified by their destination
func (e *Engine) UnmanagedTable() *UnmanagedSenderTable { return e.unmanaged }

// ThreadCount returns the number of workers
func (e *Engine) ThreadCount() int { return len(e.workers) }

// Config returns the effective configuration
func (e *Engine) Config() Config { return e.config }

// SetReconnectInterval changes the minimum time between reconnect batches of every worker
func (e *Engine) SetReconnectInterval(d time.Duration) {
	for _, w := range e.workers {
		w.limiter.SetLimit(reconnectLimit(d))
		w.wakeup()
	}
}

// WriteMetrics writes the engine metrics in Prometheus text format to w
func (e *Engine) WriteMetrics(w io.Writer) {
	e.metrics.write(w)
}

// Close stops all workers. Every sender is removed from its table and its
// handler gets its final callbacks. Senders still referenced by callers are
// destroyed once they are released.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	for _, w := range e.workers {
		w.stop()
	}
	e.wg.Wait()

	// senders handed over to a worker that had already exited
	for _, w := range e.workers {
		w.teardown()
	}
	for _, w := range e.workers {
		if err := w.poller.Close(); err != nil {
			Logger.Warningf("worker %d: failed to close poller: %v", w.index, err)
		}
	}

	Logger.Infof("dispatcher engine %d closed", e.id)
	return nil
}

// --------------------------------------------------------------------------
// Worker assignment
// --------------------------------------------------------------------------

// getNextWorker returns the next worker in round-robin order
func (e *Engine) getNextWorker() *worker {
	idx := (e.next.Add(1) - 1) % uint64(len(e.workers))
	return e.workers[idx]
}

// releaseTarget picks the worker a released sender is handed over to
func (e *Engine) releaseTarget(s *Sender) *worker {
	if t, ok := s.handler.(ReleaseTargeter); ok {
		idx := t.ReleaseTarget(len(e.workers)) % len(e.workers)
		if idx < 0 {
			idx += len(e.workers)
		}
		return e.workers[idx]
	}
	return e.getNextWorker()
}

// assign hands a new sender to the next worker in round-robin order
func (e *Engine) assign(s *Sender) {
	e.getNextWorker().enqueue(s)
}

// lockOpen holds the engine open while a table creates a sender.
// The returned function must be called once the sender was assigned.
func (e *Engine) lockOpen() (func(), error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrEngineClosed
	}
	return e.mu.RUnlock, nil
}
