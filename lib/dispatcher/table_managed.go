package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// managedSlot holds the sender of one key
type managedSlot struct {
	mu     sync.Mutex
	sender *Sender
}

// ManagedSenderTable maps uint16 keys to senders. Every key has its own lock,
// so senders of different keys never contend.
type ManagedSenderTable struct {
	engine *Engine
	slots  []managedSlot
	count  atomic.Int64
}

func newManagedSenderTable(e *Engine, size int) *ManagedSenderTable {
	return &ManagedSenderTable{
		engine: e,
		slots:  make([]managedSlot, size),
	}
}

func (t *ManagedSenderTable) slot(key uint16) (*managedSlot, error) {
	if int(key) >= len(t.slots) {
		return nil, fmt.Errorf("%w: %d (table size %d)", ErrInvalidKey, key, len(t.slots))
	}
	return &t.slots[key], nil
}

// Open creates a sender for info.Key. It fails with ErrIdentityOccupied while
// the key still has a sender in the table.
func (t *ManagedSenderTable) Open(info SenderInfo) (*Sender, error) {
	slot, err := t.slot(info.Key)
	if err != nil {
		return nil, err
	}
	if err := info.validate(); err != nil {
		return nil, err
	}

	unlock, err := t.engine.lockOpen()
	if err != nil {
		return nil, err
	}
	defer unlock()

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.sender != nil {
		return nil, fmt.Errorf("%w: key %d", ErrIdentityOccupied, info.Key)
	}

	s, err := newSender(t.engine, t, info)
	if err != nil {
		return nil, err
	}
	s.inTable = true
	slot.sender = s
	t.count.Add(1)

	t.engine.assign(s)
	Logger.Debugf("%s opened", s)
	return s, nil
}

// Get returns the sender of key with an additional reference, nil if there is none.
// The reference must be returned with Release.
func (t *ManagedSenderTable) Get(key uint16) *Sender {
	slot, err := t.slot(key)
	if err != nil {
		return nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.sender == nil {
		return nil
	}
	slot.sender.acquire()
	return slot.sender
}

// Close shuts the sender down and removes it from the table
func (t *ManagedSenderTable) Close(s *Sender) {
	if t.take(s) {
		s.shutdown()
		s.release()
	}
}

// Remove takes the sender out of the table without shutting it down
func (t *ManagedSenderTable) Remove(s *Sender) {
	if t.take(s) {
		s.release()
	}
}

// Release drops a reference obtained through Open or Get
func (t *ManagedSenderTable) Release(s *Sender) {
	s.release()
}

// Len returns the number of senders in the table
func (t *ManagedSenderTable) Len() int {
	return int(t.count.Load())
}

// take clears the slot of s, false if s was not in the table anymore
func (t *ManagedSenderTable) take(s *Sender) bool {
	slot, err := t.slot(s.info.Key)
	if err != nil {
		return false
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if !s.inTable || slot.sender != s {
		return false
	}
	s.inTable = false
	slot.sender = nil
	t.count.Add(-1)
	return true
}
