package dispatcher

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"sync/atomic"
)

// engineMetrics holds the engine wide counters in a private metrics set,
// exported in Prometheus text format through Engine.WriteMetrics
type engineMetrics struct {
	set *metrics.Set

	messagesSent    *metrics.Counter
	bytesSent       *metrics.Counter
	messagesDropped *metrics.Counter
	reconnects      *metrics.Counter
	connectFailures *metrics.Counter
	timeouts        *metrics.Counter
	handovers       *metrics.Counter

	liveSenders atomic.Int64
}

func newEngineMetrics(engineID uint64) *engineMetrics {
	set := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`ddispatch_%s{engine="%d"}`, metric, engineID)
	}

	m := &engineMetrics{
		set:             set,
		messagesSent:    set.NewCounter(name("messages_sent_total")),
		bytesSent:       set.NewCounter(name("bytes_sent_total")),
		messagesDropped: set.NewCounter(name("messages_dropped_total")),
		reconnects:      set.NewCounter(name("reconnects_total")),
		connectFailures: set.NewCounter(name("connect_failures_total")),
		timeouts:        set.NewCounter(name("timeouts_total")),
		handovers:       set.NewCounter(name("handovers_total")),
	}
	set.NewGauge(name("live_senders"), func() float64 {
		return float64(m.liveSenders.Load())
	})
	return m
}

func (m *engineMetrics) write(w io.Writer) {
	m.set.WritePrometheus(w)
}
