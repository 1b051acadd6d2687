package dispatcher

// defaultReplyBufferSize is the size of the buffer BaseReplyHandler reads into
const defaultReplyBufferSize = 2048

// BaseReplyHandler discards all replies and ignores all events. Idle
// connections are torn down. It is used for senders opened without a handler
// and can be embedded to implement only the interesting methods.
type BaseReplyHandler struct {
	buf []byte
}

func (h *BaseReplyHandler) GetBuffer() []byte {
	if h.buf == nil {
		h.buf = make([]byte, defaultReplyBufferSize)
	}
	return h.buf
}

func (h *BaseReplyHandler) GetBufferOffset() int { return 0 }

func (h *BaseReplyHandler) HandleReply(int) Result { return ResultContinue }

func (h *BaseReplyHandler) SendProgress(int64, int64, int64) {}

func (h *BaseReplyHandler) SendCompleted() {}

func (h *BaseReplyHandler) Connected() {}

func (h *BaseReplyHandler) ConnectFailure() {}

func (h *BaseReplyHandler) Closed() {}

func (h *BaseReplyHandler) Timeout() bool { return true }
