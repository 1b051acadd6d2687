package dispatcher

import (
	"github.com/ValentinKolb/dDispatch/lib/netpoll"
)

// process handles one readiness event of a sender's socket.
// A panic in the reply handler is turned into a failed connection.
func (w *worker) process(s *Sender, ev netpoll.Event) (act action) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("%s reply handler panicked: %v", s, r)
			act = actionFail
		}
	}()

	if s.State() == StateConnecting {
		if !ev.Writable() && !ev.Failed() {
			return actionKeep
		}
		if err := netpoll.ConnectError(s.fd); err != nil {
			Logger.Debugf("%s failed to connect: %v", s, err)
			return actionFail
		}
		Logger.Debugf("%s connected", s)
		w.connected(s)
	}

	if ev.Readable() {
		// after an error or hang-up, read what is left before closing
		if act := w.receive(s, ev.Failed()); act != actionKeep {
			return act
		}
	}

	if ev.Failed() {
		if s.toShutdown.Load() {
			Logger.Debugf("%s closed after shutdown", s)
		} else {
			Logger.Warningf("%s connection error (events %#x)", s, ev.Flags)
		}
		return actionFail
	}

	if ev.Writable() && s.State() == StateConnected {
		return w.send(s)
	}

	return actionKeep
}

// receive reads reply data into the handler's buffer. With drain set it reads
// until the socket would block, otherwise once.
func (w *worker) receive(s *Sender, drain bool) action {
	for {
		buf := s.handler.GetBuffer()
		off := s.handler.GetBufferOffset()
		if buf == nil || off < 0 || off >= len(buf) {
			Logger.Errorf("%s invalid reply buffer (len %d, offset %d)", s, len(buf), off)
			return actionFail
		}

		n, err := netpoll.Read(s.fd, buf[off:])
		if err != nil {
			if netpoll.IsWouldBlock(err) {
				return actionKeep
			}
			Logger.Warningf("%s read failed: %v", s, err)
			return actionFail
		}

		if n == 0 {
			if s.State() == StateClosing {
				Logger.Debugf("%s closed by peer after shutdown", s)
			} else {
				Logger.Warningf("%s closed by peer", s)
			}
			return actionFail
		}

		s.stats.bytesReceived.Mark(int64(n))

		switch r := s.handler.HandleReply(n); r {
		case ResultContinue:
		case ResultFinish:
			Logger.Debugf("%s reply finished", s)
		case ResultRelease:
			return actionRelease
		default:
			Logger.Debugf("%s reply handler returned %s", s, r)
			return actionFail
		}

		if !drain {
			return actionKeep
		}
	}
}

// send writes queued messages until the socket would block or the queue is empty
func (w *worker) send(s *Sender) action {
	for i := 0; i < maxMessagesPerEvent; {
		if s.cur == nil {
			m := s.queue.pop()
			if m == nil {
				return actionKeep
			}

			if m.kind == kindStop {
				if err := netpoll.ShutdownWrite(s.fd); err != nil {
					Logger.Debugf("%s shutdown failed: %v", s, err)
					return actionFail
				}
				s.setState(StateClosing)
				Logger.Debugf("%s half-closed", s)
				return actionKeep
			}

			s.cur = m
			s.sent = 0
			if b, ok := s.handler.(BeforeSender); ok {
				b.BeforeSend()
			}
		}

		m := s.cur
		if remaining := m.length - s.sent; remaining > 0 {
			var (
				n   int
				err error
			)

			switch m.kind {
			case KindFile:
				off := m.offset + s.sent
				n, err = netpoll.Sendfile(s.fd, m.fd, &off, int(remaining))
				if err == nil && n == 0 {
					Logger.Warningf("%s %s ended after %d bytes", s, m, s.sent)
					s.dropCurrentMessage()
					i++
					continue
				}
			default:
				n, err = netpoll.Write(s.fd, m.data[s.sent:])
			}

			if err != nil {
				if netpoll.IsWouldBlock(err) {
					return actionKeep
				}
				Logger.Warningf("%s write failed: %v", s, err)
				return actionFail
			}
			if n == 0 {
				return actionKeep
			}

			before := s.sent
			s.sent += int64(n)
			s.stats.bytesSent.Mark(int64(n))
			w.engine.metrics.bytesSent.Add(n)
			w.notify(s, func() { s.handler.SendProgress(m.length, before, int64(n)) })

			if s.sent < m.length {
				continue
			}
		}

		s.stats.messagesSent.Inc(1)
		w.engine.metrics.messagesSent.Inc()
		// a written message is never resent, even if the handler panics
		s.freeCurrentMessage()
		w.notify(s, s.handler.SendCompleted)
		i++
	}

	return actionKeep
}
