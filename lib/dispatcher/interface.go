package dispatcher

// -----------------------------------------------------------
// Reply handling
// -----------------------------------------------------------

// Result tells the worker what to do after a reply chunk was handled
type Result int

const (
	// ResultContinue keeps the connection and waits for more reply data
	ResultContinue Result = iota
	// ResultFinish marks a complete reply, the connection stays up
	ResultFinish
	// ResultError tears the connection down and reconnects
	ResultError
	// ResultClose tears the connection down and reconnects
	ResultClose
	// ResultRelease hands the sender over to another worker
	ResultRelease
)

func (r Result) String() string {
	switch r {
	case ResultContinue:
		return "continue"
	case ResultFinish:
		return "finish"
	case ResultError:
		return "error"
	case ResultClose:
		return "close"
	case ResultRelease:
		return "release"
	default:
		return "unknown"
	}
}

// ReplyHandler receives everything that happens on a sender's connection.
// All methods are called on the worker goroutine that owns the sender, so an
// implementation never sees concurrent calls for the same sender. Methods must
// not block.
type ReplyHandler interface {
	// GetBuffer returns the buffer replies are read into
	GetBuffer() []byte

	// GetBufferOffset returns the position in GetBuffer() where the next read starts.
	// An offset >= len(GetBuffer()) is treated as an error.
	GetBufferOffset() int

	// HandleReply is called after n bytes were read to GetBuffer()[GetBufferOffset():]
	HandleReply(n int) Result

	// SendProgress is called after every successful write of the in-flight message
	SendProgress(total, doneBefore, justSent int64)

	// SendCompleted is called once the in-flight message was fully written
	SendCompleted()

	// Connected is called when the connection was established
	Connected()

	// ConnectFailure is called when a connection attempt failed
	ConnectFailure()

	// Closed is called when an established connection was closed. It is also
	// called once when the sender is removed after its last attempt never connected.
	Closed()

	// Timeout is called when the sender was idle for the configured idle timeout.
	// Returning true tears the connection down (it is reconnected if the sender
	// is not shutting down), false keeps it alive for another period.
	Timeout() bool
}

// Attacher is implemented by handlers that need their sender, e.g. to push follow-up messages.
// Pushes from within a callback must use a zero timeout, the worker cannot drain
// the queue while it waits.
type Attacher interface {
	Attach(s *Sender)
}

// BeforeSender is implemented by handlers that want to be notified before a
// message is taken from the queue and written
type BeforeSender interface {
	BeforeSend()
}

// ReleaseTargeter is implemented by handlers that choose the worker a released
// sender is handed over to. The returned index is taken modulo threads.
type ReleaseTargeter interface {
	ReleaseTarget(threads int) int
}

// -----------------------------------------------------------
// Sender tables
// -----------------------------------------------------------

// SenderTable is the common interface of ManagedSenderTable and UnmanagedSenderTable
type SenderTable interface {
	// Open creates and starts a sender for info. The returned sender carries a
	// reference for the caller that must be returned with Release.
	Open(info SenderInfo) (*Sender, error)

	// Close shuts the sender down and removes it from the table. Pending messages
	// are still written before the connection is half-closed.
	Close(s *Sender)

	// Release drops one reference obtained through Open or Get
	Release(s *Sender)

	// Remove takes the sender out of the table without shutting it down
	Remove(s *Sender)

	// Len returns the number of senders in the table
	Len() int
}
