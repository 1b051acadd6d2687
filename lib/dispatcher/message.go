package dispatcher

import (
	"fmt"
	"os"
)

// MessageKind identifies the payload of a Message
type MessageKind uint8

const (
	// KindBuffer is an in-memory payload written with write(2)
	KindBuffer MessageKind = iota
	// KindFile is a file range written with sendfile(2)
	KindFile
	// kindStop seals the queue of a sender that is shutting down
	kindStop
)

func (k MessageKind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindFile:
		return "file"
	case kindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Message is a unit of data queued on a sender.
// A message must not be modified or pushed twice after it was handed to a sender.
type Message struct {
	kind   MessageKind
	data   []byte
	file   *os.File
	fd     int
	offset int64
	length int64
}

// NewBufferMessage creates a message that writes data
func NewBufferMessage(data []byte) *Message {
	return &Message{
		kind:   KindBuffer,
		data:   data,
		length: int64(len(data)),
	}
}

// NewFileMessage creates a message that writes length bytes of f starting at offset.
// The caller owns f and must keep it open until the message was completed or dropped.
func NewFileMessage(f *os.File, offset, length int64) *Message {
	return &Message{
		kind:   KindFile,
		file:   f,
		fd:     int(f.Fd()),
		offset: offset,
		length: length,
	}
}

func newStopMessage() *Message {
	return &Message{kind: kindStop}
}

// Kind returns the payload type
func (m *Message) Kind() MessageKind { return m.kind }

// Len returns the number of bytes the message writes
func (m *Message) Len() int64 { return m.length }

func (m *Message) String() string {
	switch m.kind {
	case KindFile:
		return fmt.Sprintf("file(%s, %d+%d)", m.file.Name(), m.offset, m.length)
	default:
		return fmt.Sprintf("%s(%d)", m.kind, m.length)
	}
}
