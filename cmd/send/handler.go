package send

import (
	"github.com/ValentinKolb/dDispatch/cmd/util"
	"github.com/ValentinKolb/dDispatch/lib/dispatcher"
	"sync"
	"sync/atomic"
)

// tracker wraps the reply handler of the send command and signals once every
// message was written
type tracker struct {
	dispatcher.ReplyHandler

	expected   int64
	completed  atomic.Int64
	replyBytes atomic.Int64
	failures   atomic.Int64

	done     chan struct{}
	doneOnce sync.Once
}

func newTracker(inner dispatcher.ReplyHandler, expected int) *tracker {
	return &tracker{
		ReplyHandler: inner,
		expected:     int64(expected),
		done:         make(chan struct{}),
	}
}

func (t *tracker) HandleReply(n int) dispatcher.Result {
	t.replyBytes.Add(int64(n))
	return t.ReplyHandler.HandleReply(n)
}

func (t *tracker) SendCompleted() {
	t.ReplyHandler.SendCompleted()
	if t.completed.Add(1) >= t.expected {
		t.doneOnce.Do(func() { close(t.done) })
	}
}

func (t *tracker) Connected() {
	util.Logger.Debugf("connected")
	t.ReplyHandler.Connected()
}

func (t *tracker) ConnectFailure() {
	util.Logger.Warningf("connect failed (%d)", t.failures.Add(1))
	t.ReplyHandler.ConnectFailure()
}

// Timeout keeps the connection, the command ends on its own deadline
func (t *tracker) Timeout() bool { return false }
