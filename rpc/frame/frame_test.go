package frame

import (
	"bytes"
	"errors"
	"github.com/ValentinKolb/dDispatch/lib/dispatcher"
	"io"
	"testing"
)

// TestWriteRead tests that frames written with Write are read back unchanged
func TestWriteRead(t *testing.T) {
	tests := []struct {
		name      string
		channel   uint64
		requestID uint64
		data      []byte
		bufSize   int
	}{
		{"empty payload", 1, 2, []byte{}, 64},
		{"small payload", 100, 1<<40 + 7, []byte("hello"), 64},
		{"payload larger than buffer", 3, 4, bytes.Repeat([]byte("x"), 1000), 32},
		{"nil buffer", 5, 6, []byte("abc"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b bytes.Buffer
			if err := Write(&b, tt.channel, tt.requestID, tt.data); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if b.Len() != HeaderSize+len(tt.data) {
				t.Errorf("Expected %d bytes, got %d", HeaderSize+len(tt.data), b.Len())
			}

			var buf []byte
			if tt.bufSize > 0 {
				buf = make([]byte, tt.bufSize)
			}
			channel, requestID, data, err := Read(&b, buf)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if channel != tt.channel || requestID != tt.requestID {
				t.Errorf("Expected header %d/%d, got %d/%d", tt.channel, tt.requestID, channel, requestID)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("Payload mismatch")
			}
		})
	}
}

// TestEncodeMatchesWrite tests that Encode produces the same bytes as Write
func TestEncodeMatchesWrite(t *testing.T) {
	var b bytes.Buffer
	_ = Write(&b, 9, 10, []byte("payload"))

	if !bytes.Equal(Encode(9, 10, []byte("payload")), b.Bytes()) {
		t.Error("Encode and Write differ")
	}
}

// TestReadTruncated tests that a truncated payload is reported as unexpected EOF
func TestReadTruncated(t *testing.T) {
	full := Encode(1, 1, []byte("0123456789"))
	_, _, _, err := Read(bytes.NewReader(full[:len(full)-3]), nil)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected unexpected EOF, got %v", err)
	}

	_, _, _, err = Read(bytes.NewReader(nil), nil)
	if !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF on empty stream, got %v", err)
	}
}

type frameRecord struct {
	channel, requestID uint64
	payload            string
}

// feed copies data into the handler buffer in chunks of size n, like partial socket reads
func feed(t *testing.T, h *ReplyHandler, data []byte, n int) []dispatcher.Result {
	t.Helper()
	var results []dispatcher.Result
	for len(data) > 0 {
		buf := h.GetBuffer()[h.GetBufferOffset():]
		if len(buf) == 0 {
			t.Fatal("handler buffer is full")
		}
		c := copy(buf, data[:min(n, len(data))])
		data = data[c:]
		results = append(results, h.HandleReply(c))
	}
	return results
}

// TestReplyHandlerReassembly tests frame reassembly across arbitrary read boundaries
func TestReplyHandlerReassembly(t *testing.T) {
	var stream []byte
	var expected []frameRecord
	for i := 0; i < 20; i++ {
		payload := bytes.Repeat([]byte{byte('a' + i)}, i*37)
		stream = append(stream, Encode(uint64(i), uint64(i*10), payload)...)
		expected = append(expected, frameRecord{uint64(i), uint64(i * 10), string(payload)})
	}

	for _, chunk := range []int{1, 7, 20, 21, 512, len(stream)} {
		var got []frameRecord
		h := NewReplyHandler(func(channel, requestID uint64, payload []byte) dispatcher.Result {
			got = append(got, frameRecord{channel, requestID, string(payload)})
			return dispatcher.ResultContinue
		}, 0)

		feed(t, h, stream, chunk)

		if len(got) != len(expected) {
			t.Fatalf("chunk %d: expected %d frames, got %d", chunk, len(expected), len(got))
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("chunk %d: frame %d mismatch", chunk, i)
			}
		}
		if h.Frames() != uint64(len(expected)) {
			t.Errorf("chunk %d: Frames() = %d", chunk, h.Frames())
		}
		if h.GetBufferOffset() != 0 {
			t.Errorf("chunk %d: %d bytes left in buffer", chunk, h.GetBufferOffset())
		}
	}
}

// TestReplyHandlerLargeFrame tests that the buffer grows for frames larger than the initial buffer
func TestReplyHandlerLargeFrame(t *testing.T) {
	payload := bytes.Repeat([]byte("z"), 3*defaultBufferSize)
	var got []byte
	h := NewReplyHandler(func(_, _ uint64, p []byte) dispatcher.Result {
		got = append([]byte(nil), p...)
		return dispatcher.ResultFinish
	}, 0)

	results := feed(t, h, Encode(1, 1, payload), 1000)
	if !bytes.Equal(got, payload) {
		t.Fatal("large payload mismatch")
	}
	if results[len(results)-1] != dispatcher.ResultFinish {
		t.Errorf("Expected finish after the last chunk, got %s", results[len(results)-1])
	}
	for _, r := range results[:len(results)-1] {
		if r != dispatcher.ResultContinue {
			t.Errorf("Expected continue for partial chunks, got %s", r)
		}
	}
}

// TestReplyHandlerLimits tests oversized frames and callback results
func TestReplyHandlerLimits(t *testing.T) {
	h := NewReplyHandler(nil, 10)
	results := feed(t, h, Encode(1, 1, make([]byte, 11)), 64)
	if results[0] != dispatcher.ResultError {
		t.Errorf("Expected error for oversized frame, got %s", results[0])
	}

	calls := 0
	h = NewReplyHandler(func(_, _ uint64, _ []byte) dispatcher.Result {
		calls++
		return dispatcher.ResultRelease
	}, 0)
	stream := append(Encode(1, 1, []byte("a")), Encode(2, 2, []byte("b"))...)
	results = feed(t, h, stream, len(stream))
	if results[0] != dispatcher.ResultRelease || calls != 1 {
		t.Errorf("Expected release after the first frame, got %s after %d calls", results[0], calls)
	}
	if h.GetBufferOffset() != HeaderSize+1 {
		t.Errorf("Second frame should stay buffered, offset %d", h.GetBufferOffset())
	}

	h.Closed()
	if h.GetBufferOffset() != 0 {
		t.Error("Closed should drop buffered data")
	}
}
