package dispatcher

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// SenderStats is a point-in-time snapshot of a sender's counters
type SenderStats struct {
	MessagesSent    int64
	MessagesDropped int64
	BytesSent       int64
	BytesSentRate1  float64 // bytes per second, one-minute moving average
	BytesReceived   int64
	Reconnects      int64
	ConnectFailures int64
	QueuedMessages  int
}

// senderStats keeps the per-sender meters. Meters are ticked by the go-metrics
// arbiter goroutine and must be stopped when the sender is destroyed.
type senderStats struct {
	messagesSent    gometrics.Counter
	messagesDropped gometrics.Counter
	bytesSent       gometrics.Meter
	bytesReceived   gometrics.Meter
	reconnects      gometrics.Counter
	connectFailures gometrics.Counter
}

func newSenderStats() *senderStats {
	return &senderStats{
		messagesSent:    gometrics.NewCounter(),
		messagesDropped: gometrics.NewCounter(),
		bytesSent:       gometrics.NewMeter(),
		bytesReceived:   gometrics.NewMeter(),
		reconnects:      gometrics.NewCounter(),
		connectFailures: gometrics.NewCounter(),
	}
}

func (st *senderStats) snapshot() SenderStats {
	sent := st.bytesSent.Snapshot()
	return SenderStats{
		MessagesSent:    st.messagesSent.Count(),
		MessagesDropped: st.messagesDropped.Count(),
		BytesSent:       sent.Count(),
		BytesSentRate1:  sent.Rate1(),
		BytesReceived:   st.bytesReceived.Count(),
		Reconnects:      st.reconnects.Count(),
		ConnectFailures: st.connectFailures.Count(),
	}
}

func (st *senderStats) stop() {
	st.bytesSent.Stop()
	st.bytesReceived.Stop()
}
