package dispatcher

import (
	"fmt"
	"net/netip"
)

// SenderInfo describes the destination and the policies of a sender.
// It is copied on Open and never changed afterwards.
type SenderInfo struct {
	// Key identifies the sender in a ManagedSenderTable, ignored by UnmanagedSenderTable
	Key uint16
	// Addr is the destination of the connection
	Addr netip.AddrPort
	// QueueCapacity is the maximum number of queued messages, 0 is treated as 1
	QueueCapacity int
	// MaxResendCount is how often a message is retried after a failed connection, negative = unlimited
	MaxResendCount int
	// MaxReconnectCount is how often a failed connection is retried before the sender is removed, negative = unlimited
	MaxReconnectCount int
	// ReplyHandler receives replies and events, nil = discard replies
	ReplyHandler ReplyHandler
}

func (i SenderInfo) validate() error {
	if !i.Addr.IsValid() || i.Addr.Port() == 0 || i.Addr.Addr().IsUnspecified() {
		return fmt.Errorf("%w: %v", ErrInvalidDestination, i.Addr)
	}
	if i.QueueCapacity < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueCapacity, i.QueueCapacity)
	}
	return nil
}

// String returns sender_info://key@ip:port-capacity-resends-reconnects
func (i SenderInfo) String() string {
	return fmt.Sprintf("sender_info://%d@%s-%d-%d-%d",
		i.Key, i.Addr, i.QueueCapacity, i.MaxResendCount, i.MaxReconnectCount)
}
