package dispatcher

import (
	"testing"
	"time"
)

// TestTimeoutTracker tests ordering, removal and re-pushing of idle senders
func TestTimeoutTracker(t *testing.T) {
	tr := newTimeoutTracker(10 * time.Second)
	base := time.Unix(1000, 0)

	a := &Sender{id: 1}
	b := &Sender{id: 2}
	c := &Sender{id: 3}

	tr.push(a, base)
	tr.push(b, base.Add(2*time.Second))
	tr.push(c, base.Add(4*time.Second))

	if tr.len() != 3 {
		t.Fatalf("Expected 3 entries, got %d", tr.len())
	}

	// activity of a moves it to the end
	tr.push(a, base.Add(5*time.Second))
	if tr.len() != 3 {
		t.Fatalf("Re-pushing must not add entries, got %d", tr.len())
	}

	next, ok := tr.next(base)
	if !ok || next != 12*time.Second {
		t.Errorf("Expected next expiry in 12s, got %v (%t)", next, ok)
	}

	var expired []uint64
	n := tr.checkTimeout(base.Add(13*time.Second), func(s *Sender) {
		expired = append(expired, s.id)
	})
	if n != 1 || len(expired) != 1 || expired[0] != 2 {
		t.Errorf("Expected only sender 2 to expire, got %v", expired)
	}

	tr.remove(c)
	expired = nil
	tr.checkTimeout(base.Add(time.Hour), func(s *Sender) {
		expired = append(expired, s.id)
	})
	if len(expired) != 1 || expired[0] != 1 {
		t.Errorf("Expected sender 1 after removing 3, got %v", expired)
	}
	if tr.len() != 0 {
		t.Errorf("Tracker should be empty, has %d", tr.len())
	}
}

// TestTimeoutTrackerKeepAlive tests that a callback re-pushing a sender does not loop
func TestTimeoutTrackerKeepAlive(t *testing.T) {
	tr := newTimeoutTracker(time.Second)
	now := time.Unix(2000, 0)
	s := &Sender{id: 7}
	tr.push(s, now.Add(-5*time.Second))

	calls := 0
	tr.checkTimeout(now, func(s *Sender) {
		calls++
		tr.push(s, now)
	})

	if calls != 1 {
		t.Errorf("Expected one timeout callback, got %d", calls)
	}
	if tr.len() != 1 {
		t.Errorf("Sender should be tracked again")
	}

	// not idle long enough yet
	tr.checkTimeout(now.Add(time.Second), func(*Sender) { calls++ })
	if calls != 1 {
		t.Errorf("Sender expired too early")
	}
}

// TestTimeoutTrackerDisabled tests that a zero threshold disables tracking
func TestTimeoutTrackerDisabled(t *testing.T) {
	tr := newTimeoutTracker(0)
	tr.push(&Sender{id: 1}, time.Unix(0, 0))

	if tr.len() != 0 {
		t.Error("Disabled tracker must not track senders")
	}
	if _, ok := tr.next(time.Now()); ok {
		t.Error("Disabled tracker must not report an expiry")
	}
	if n := tr.checkTimeout(time.Now(), func(*Sender) { t.Error("unexpected callback") }); n != 0 {
		t.Errorf("Expected no expired senders, got %d", n)
	}
}
