package dispatcher

import (
	"github.com/ValentinKolb/dDispatch/lib/util"
	"time"
)

// timeoutTracker orders the senders of one worker by their last activity.
// It is owned by the worker goroutine and not thread-safe.
type timeoutTracker struct {
	threshold time.Duration
	heap      *util.MapHeap[*Sender]
}

func newTimeoutTracker(threshold time.Duration) *timeoutTracker {
	return &timeoutTracker{
		threshold: threshold,
		heap:      util.NewMapHeap[*Sender](),
	}
}

// enabled reports whether idle timeouts are checked at all
func (t *timeoutTracker) enabled() bool { return t.threshold > 0 }

// push records activity of s at now, replacing an older entry
func (t *timeoutTracker) push(s *Sender, now time.Time) {
	if !t.enabled() {
		return
	}
	t.heap.AddItem(s.id, uint64(now.UnixNano()), s)
}

// remove forgets s
func (t *timeoutTracker) remove(s *Sender) {
	t.heap.RemoveByKey(s.id)
}

// len returns the number of tracked senders
func (t *timeoutTracker) len() int { return t.heap.Len() }

// next returns the duration until the oldest entry expires, false if nothing is tracked
func (t *timeoutTracker) next(now time.Time) (time.Duration, bool) {
	it, ok := t.heap.Peek()
	if !ok || !t.enabled() {
		return 0, false
	}
	deadline := time.Unix(0, int64(it.Priority)).Add(t.threshold)
	return max(deadline.Sub(now), 0), true
}

// checkTimeout pops every sender that was idle for longer than the threshold
// and calls onTimeout for it. The callback decides whether to push it again.
func (t *timeoutTracker) checkTimeout(now time.Time, onTimeout func(s *Sender)) int {
	if !t.enabled() {
		return 0
	}

	limit := now.Add(-t.threshold).UnixNano()
	expired := 0
	for {
		it, ok := t.heap.Peek()
		if !ok || int64(it.Priority) >= limit {
			return expired
		}
		t.heap.PopItem()
		expired++
		onTimeout(it.Value)
	}
}
