package send

import (
	"github.com/ValentinKolb/dDispatch/lib/dispatcher"
	"github.com/ValentinKolb/dDispatch/rpc/common"
	"github.com/ValentinKolb/dDispatch/rpc/frame"
	"os"
	"path/filepath"
	"testing"
)

// TestBuildMessages tests the messages created from payloads and a file range
func TestBuildMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte("0123456789"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	conf := &common.SendConfig{Payloads: []string{"a", "bc"}, File: path, FileOffset: 4}
	messages, f, err := buildMessages(conf)
	if err != nil {
		t.Fatalf("buildMessages failed: %v", err)
	}
	defer f.Close()

	if len(messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(messages))
	}
	if messages[0].Len() != 1 || messages[1].Len() != 2 {
		t.Errorf("Unexpected buffer lengths %d, %d", messages[0].Len(), messages[1].Len())
	}
	if messages[2].Kind() != dispatcher.KindFile || messages[2].Len() != 6 {
		t.Errorf("Expected the rest of the file, got %s", messages[2])
	}

	conf.Framed = true
	conf.File = ""
	messages, _, err = buildMessages(conf)
	if err != nil {
		t.Fatalf("buildMessages failed: %v", err)
	}
	if messages[1].Len() != frame.HeaderSize+2 {
		t.Errorf("Expected a framed message of %d bytes, got %d", frame.HeaderSize+2, messages[1].Len())
	}

	conf.Repeat = 3
	messages, _, err = buildMessages(conf)
	if err != nil {
		t.Fatalf("buildMessages failed: %v", err)
	}
	if len(messages) != 6 {
		t.Fatalf("Expected 6 messages for 3 rounds, got %d", len(messages))
	}
	seen := make(map[*dispatcher.Message]bool)
	for _, m := range messages {
		if seen[m] {
			t.Fatalf("%s is pushed more than once", m)
		}
		seen[m] = true
	}
	conf.Repeat = 0

	conf.File = path
	conf.FileOffset = 10
	if _, _, err := buildMessages(conf); err == nil {
		t.Error("Expected error for an empty file range")
	}

	conf.File = filepath.Join(t.TempDir(), "missing")
	if _, _, err := buildMessages(conf); err == nil {
		t.Error("Expected error for a missing file")
	}
}

// TestTracker tests that the tracker signals after the expected number of messages
func TestTracker(t *testing.T) {
	tr := newTracker(&dispatcher.BaseReplyHandler{}, 2)

	tr.SendCompleted()
	select {
	case <-tr.done:
		t.Fatal("done after one of two messages")
	default:
	}

	tr.SendCompleted()
	tr.SendCompleted()
	select {
	case <-tr.done:
	default:
		t.Fatal("not done after all messages")
	}

	if tr.HandleReply(5) != dispatcher.ResultContinue || tr.replyBytes.Load() != 5 {
		t.Error("Replies not passed to the inner handler")
	}
	if tr.Timeout() {
		t.Error("Idle connections must be kept")
	}
}
