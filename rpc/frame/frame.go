package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// HeaderSize is the size of the fixed frame header
const HeaderSize = 20

// ErrFrameTooLarge is returned for frames exceeding the configured maximum
var ErrFrameTooLarge = errors.New("frame: payload too large")

// Header is the decoded frame header
type Header struct {
	Channel   uint64
	RequestID uint64
	Length    uint32
}

// PutHeader writes h to the first HeaderSize bytes of b
func PutHeader(b []byte, h Header) {
	binary.BigEndian.PutUint64(b[:8], h.Channel)
	binary.BigEndian.PutUint64(b[8:16], h.RequestID)
	binary.BigEndian.PutUint32(b[16:20], h.Length)
}

// ParseHeader decodes the first HeaderSize bytes of b
func ParseHeader(b []byte) Header {
	return Header{
		Channel:   binary.BigEndian.Uint64(b[:8]),
		RequestID: binary.BigEndian.Uint64(b[8:16]),
		Length:    binary.BigEndian.Uint32(b[16:20]),
	}
}

// Encode returns header and payload in one buffer
func Encode(channel, requestID uint64, data []byte) []byte {
	b := make([]byte, HeaderSize+len(data))
	PutHeader(b, Header{Channel: channel, RequestID: requestID, Length: uint32(len(data))})
	copy(b[HeaderSize:], data)
	return b
}

// Write writes a frame to w without copying the payload
func Write(w io.Writer, channel, requestID uint64, data []byte) error {
	header := make([]byte, HeaderSize)
	PutHeader(header, Header{Channel: channel, RequestID: requestID, Length: uint32(len(data))})

	b := net.Buffers{header, data}
	_, err := b.WriteTo(w)
	return err
}

// Read reads a frame from r using the provided buffer.
// If the buffer is too small, a new temporary buffer is allocated for the payload.
func Read(r io.Reader, buf []byte) (uint64, uint64, []byte, error) {
	// Check if buffer is large enough for header
	if len(buf) < HeaderSize {
		buf = make([]byte, HeaderSize)
	}

	if _, err := io.ReadFull(r, buf[:HeaderSize]); err != nil {
		return 0, 0, nil, err
	}
	h := ParseHeader(buf)

	if h.Length == 0 {
		return h.Channel, h.RequestID, []byte{}, nil
	}

	if len(buf) < int(h.Length) {
		buf = make([]byte, h.Length)
	}

	if _, err := io.ReadFull(r, buf[:h.Length]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, 0, nil, fmt.Errorf("frame %d/%d: %w", h.Channel, h.RequestID, err)
	}

	return h.Channel, h.RequestID, buf[:h.Length], nil
}
