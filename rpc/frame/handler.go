package frame

import (
	"github.com/ValentinKolb/dDispatch/lib/dispatcher"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("frame")

const (
	defaultBufferSize   = 4 * 1024
	defaultMaxFrameSize = 16 * 1024 * 1024 // 16 MB
)

// FrameFunc is called for every complete frame. payload is only valid during
// the call. Returning anything but ResultContinue or ResultFinish ends frame
// processing and is passed on to the dispatcher.
type FrameFunc func(channel, requestID uint64, payload []byte) dispatcher.Result

// ReplyHandler reassembles frames from the partial reads of a dispatcher
// connection. All other events are handled by the embedded BaseReplyHandler
// and can be overridden by embedding ReplyHandler.
type ReplyHandler struct {
	dispatcher.BaseReplyHandler

	buf          []byte
	filled       int
	maxFrameSize int
	frames       uint64
	onFrame      FrameFunc
}

// NewReplyHandler creates a handler calling onFrame for every frame.
// Frames with a payload larger than maxFrameSize fail the connection,
// 0 selects a 16 MB limit.
func NewReplyHandler(onFrame FrameFunc, maxFrameSize int) *ReplyHandler {
	if maxFrameSize <= 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &ReplyHandler{
		buf:          make([]byte, defaultBufferSize),
		maxFrameSize: maxFrameSize,
		onFrame:      onFrame,
	}
}

func (h *ReplyHandler) GetBuffer() []byte { return h.buf }

func (h *ReplyHandler) GetBufferOffset() int { return h.filled }

// Frames returns the number of frames handled so far
func (h *ReplyHandler) Frames() uint64 { return h.frames }

// Reset drops a partially received frame, e.g. after the connection was closed
func (h *ReplyHandler) Reset() { h.filled = 0 }

// Closed drops the partial frame of the lost connection
func (h *ReplyHandler) Closed() { h.Reset() }

func (h *ReplyHandler) HandleReply(n int) dispatcher.Result {
	h.filled += n
	result := dispatcher.ResultContinue

	start := 0
	for h.filled-start >= HeaderSize {
		header := ParseHeader(h.buf[start:])
		if int(header.Length) > h.maxFrameSize {
			Logger.Errorf("frame %d/%d: %v (%d > %d)", header.Channel, header.RequestID,
				ErrFrameTooLarge, header.Length, h.maxFrameSize)
			return dispatcher.ResultError
		}

		total := HeaderSize + int(header.Length)
		if h.filled-start < total {
			break
		}

		payload := h.buf[start+HeaderSize : start+total]
		r := dispatcher.ResultContinue
		if h.onFrame != nil {
			r = h.onFrame(header.Channel, header.RequestID, payload)
		}
		h.frames++
		start += total

		switch r {
		case dispatcher.ResultContinue, dispatcher.ResultFinish:
			result = dispatcher.ResultFinish
		default:
			h.compact(start)
			return r
		}
	}

	h.compact(start)
	h.grow()
	return result
}

// compact moves the unprocessed bytes to the front of the buffer
func (h *ReplyHandler) compact(start int) {
	if start == 0 {
		return
	}
	h.filled = copy(h.buf, h.buf[start:h.filled])
}

// grow makes sure the buffer has room for the rest of the pending frame
func (h *ReplyHandler) grow() {
	need := len(h.buf)
	if h.filled >= HeaderSize {
		need = max(need, HeaderSize+int(ParseHeader(h.buf).Length))
	}
	if h.filled == len(h.buf) {
		need = max(need, 2*len(h.buf))
	}
	if need == len(h.buf) {
		return
	}

	buf := make([]byte, need)
	copy(buf, h.buf[:h.filled])
	h.buf = buf
}
