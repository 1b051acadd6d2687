package dispatcher

import "errors"

var (
	// ErrIdentityOccupied is returned by Open when the table already holds a live sender for the identity
	ErrIdentityOccupied = errors.New("dispatcher: identity already has a live sender")
	// ErrInvalidDestination is returned for unusable destination addresses
	ErrInvalidDestination = errors.New("dispatcher: invalid destination address")
	// ErrInvalidQueueCapacity is returned for negative queue capacities
	ErrInvalidQueueCapacity = errors.New("dispatcher: queue capacity must be >= 0")
	// ErrInvalidKey is returned when a managed key is outside the table
	ErrInvalidKey = errors.New("dispatcher: key outside of the managed table")
	// ErrInvalidThreadCount is returned for thread counts outside [0, MaxThreads]
	ErrInvalidThreadCount = errors.New("dispatcher: invalid thread count")
	// ErrInvalidTableSize is returned for managed table sizes outside [1, 65536]
	ErrInvalidTableSize = errors.New("dispatcher: invalid managed table size")
	// ErrEngineClosed is returned when opening senders on a closed engine
	ErrEngineClosed = errors.New("dispatcher: engine closed")
)
