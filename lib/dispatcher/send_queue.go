package dispatcher

import (
	"github.com/ValentinKolb/dDispatch/lib/netpoll"
	"sync"
	"time"
)

// sendQueue is the bounded FIFO between the goroutines pushing messages and the
// worker writing them. The notifier is readable exactly while the queue holds
// messages, which lets the worker watch it with the same poller as its sockets.
type sendQueue struct {
	mu        sync.Mutex
	items     []*Message
	capacity  int
	sealed    bool
	destroyed bool

	space    chan struct{} // token passed between blocked pushers
	done     chan struct{} // closed on destroy
	notifier *netpoll.Notifier
}

func newSendQueue(capacity int) (*sendQueue, error) {
	if capacity < 0 {
		return nil, ErrInvalidQueueCapacity
	}
	if capacity == 0 {
		capacity = 1
	}

	n, err := netpoll.NewNotifier()
	if err != nil {
		return nil, err
	}

	return &sendQueue{
		items:    make([]*Message, 0, min(capacity, 64)),
		capacity: capacity,
		space:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		notifier: n,
	}, nil
}

// fd returns the descriptor that is readable while the queue is not empty
func (q *sendQueue) fd() int { return q.notifier.Fd() }

// signalSpace hands the space token to one blocked pusher, if any
func (q *sendQueue) signalSpace() {
	select {
	case q.space <- struct{}{}:
	default:
	}
}

// push appends msg, waiting up to timeout for free space. A timeout <= 0 does not wait.
// Returns false if the queue stayed full, was sealed or destroyed.
func (q *sendQueue) push(msg *Message, timeout time.Duration) bool {
	var expired <-chan time.Time

	for {
		q.mu.Lock()
		if q.sealed || q.destroyed {
			q.mu.Unlock()
			return false
		}

		if len(q.items) < q.capacity {
			q.items = append(q.items, msg)
			if len(q.items) == 1 {
				if err := q.notifier.Notify(); err != nil {
					Logger.Errorf("failed to signal send queue: %v", err)
				}
			}
			hasSpace := len(q.items) < q.capacity
			q.mu.Unlock()

			// pass the token on, another pusher may fit as well
			if hasSpace {
				q.signalSpace()
			}
			return true
		}
		q.mu.Unlock()

		if timeout <= 0 {
			return false
		}
		if expired == nil {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}

		select {
		case <-q.space:
		case <-q.done:
			return false
		case <-expired:
			return false
		}
	}
}

// seal appends msg regardless of the capacity and rejects all further pushes.
// Only the first call has an effect.
func (q *sendQueue) seal(msg *Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sealed || q.destroyed {
		return false
	}
	q.sealed = true
	q.items = append(q.items, msg)
	if len(q.items) == 1 {
		if err := q.notifier.Notify(); err != nil {
			Logger.Errorf("failed to signal send queue: %v", err)
		}
	}
	return true
}

// pop removes the head of the queue without blocking. Only the owning worker calls it.
func (q *sendQueue) pop() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	wasFull := len(q.items) >= q.capacity
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	if len(q.items) == 0 {
		if err := q.notifier.Drain(); err != nil {
			Logger.Errorf("failed to drain send queue notifier: %v", err)
		}
	}

	if wasFull {
		q.signalSpace()
	}
	return msg
}

// empty reports whether the queue holds no messages
func (q *sendQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// len returns the number of queued messages
func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// destroy discards all messages, releases blocked pushers and closes the notifier.
// It returns the number of discarded user messages.
func (q *sendQueue) destroy() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed {
		return 0
	}
	q.destroyed = true

	discarded := 0
	for _, m := range q.items {
		if m.kind != kindStop {
			discarded++
		}
	}
	q.items = nil

	close(q.done)
	if err := q.notifier.Close(); err != nil {
		Logger.Warningf("failed to close send queue notifier: %v", err)
	}
	return discarded
}
