package dispatcher

import (
	"fmt"
	"github.com/puzpuzpuz/xsync/v3"
	"net/netip"
	"sync/atomic"
)

// UnmanagedSenderTable maps destinations to senders. Every operation runs
// inside an atomic compute on the destination's bucket.
type UnmanagedSenderTable struct {
	engine  *Engine
	senders *xsync.MapOf[netip.AddrPort, *Sender]
	count   atomic.Int64
}

func newUnmanagedSenderTable(e *Engine) *UnmanagedSenderTable {
	return &UnmanagedSenderTable{
		engine:  e,
		senders: xsync.NewMapOf[netip.AddrPort, *Sender](),
	}
}

// Open creates a sender for info.Addr. It fails with ErrIdentityOccupied while
// the destination still has a sender in the table.
func (t *UnmanagedSenderTable) Open(info SenderInfo) (*Sender, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}
	info.Addr = netip.AddrPortFrom(info.Addr.Addr().Unmap(), info.Addr.Port())

	unlock, err := t.engine.lockOpen()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var created *Sender
	t.senders.Compute(info.Addr, func(old *Sender, loaded bool) (*Sender, bool) {
		if loaded {
			err = fmt.Errorf("%w: %s", ErrIdentityOccupied, info.Addr)
			return old, false
		}

		created, err = newSender(t.engine, t, info)
		if err != nil {
			return nil, true
		}
		created.inTable = true
		t.count.Add(1)
		t.engine.assign(created)
		return created, false
	})

	if err != nil {
		return nil, err
	}
	Logger.Debugf("%s opened", created)
	return created, nil
}

// Get returns the sender of addr with an additional reference, nil if there is none.
// The reference must be returned with Release.
func (t *UnmanagedSenderTable) Get(addr netip.AddrPort) *Sender {
	addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())

	var found *Sender
	t.senders.Compute(addr, func(old *Sender, loaded bool) (*Sender, bool) {
		if !loaded {
			return nil, true
		}
		old.acquire()
		found = old
		return old, false
	})
	return found
}

// Close shuts the sender down and removes it from the table
func (t *UnmanagedSenderTable) Close(s *Sender) {
	if t.take(s) {
		s.shutdown()
		s.release()
	}
}

// Remove takes the sender out of the table without shutting it down
func (t *UnmanagedSenderTable) Remove(s *Sender) {
	if t.take(s) {
		s.release()
	}
}

// Release drops a reference obtained through Open or Get
func (t *UnmanagedSenderTable) Release(s *Sender) {
	s.release()
}

// Len returns the number of senders in the table
func (t *UnmanagedSenderTable) Len() int {
	return int(t.count.Load())
}

// take deletes the entry of s, false if s was not in the table anymore
func (t *UnmanagedSenderTable) take(s *Sender) bool {
	taken := false
	t.senders.Compute(s.info.Addr, func(old *Sender, loaded bool) (*Sender, bool) {
		if !loaded {
			return nil, true
		}
		if old != s || !s.inTable {
			return old, false
		}
		s.inTable = false
		taken = true
		t.count.Add(-1)
		return nil, true
	})
	return taken
}
