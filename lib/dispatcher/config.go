package dispatcher

import (
	"fmt"
	"github.com/ValentinKolb/dDispatch/lib/netpoll"
	"runtime"
	"strings"
	"time"
)

const (
	// MaxThreads is the largest accepted number of workers
	MaxThreads = 1024
	// DefaultManagedTableSize is the number of keys of the managed table
	DefaultManagedTableSize = 65535
	// MaxManagedTableSize covers the whole uint16 key space
	MaxManagedTableSize = 65536

	DefaultReconnectInterval = 2 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultPollTimeout       = 2 * time.Second
	DefaultMaxEvents         = 1024
)

// Config holds all parameters of an Engine
type Config struct {
	// Threads is the number of workers, 0 = number of CPUs - 1 (at least 1)
	Threads int
	// IdleTimeout after which the reply handler's Timeout is called, 0 disables idle timeouts
	IdleTimeout time.Duration
	// ReconnectInterval is the minimum time between two reconnect batches of a worker
	ReconnectInterval time.Duration
	// PollTimeout bounds how long a worker blocks without events
	PollTimeout time.Duration
	// MaxEvents is the number of events a worker handles per poll
	MaxEvents int
	// ManagedTableSize is the number of slots of the managed table (keys 0 .. size-1)
	ManagedTableSize int
	// Socket holds the options applied to every outbound socket
	Socket netpoll.SocketOptions
}

// DefaultConfig returns the configuration used by CreateEngine
func DefaultConfig() Config {
	return Config{
		Threads:           0,
		IdleTimeout:       DefaultIdleTimeout,
		ReconnectInterval: DefaultReconnectInterval,
		PollTimeout:       DefaultPollTimeout,
		MaxEvents:         DefaultMaxEvents,
		ManagedTableSize:  DefaultManagedTableSize,
		Socket:            netpoll.DefaultSocketOptions(),
	}
}

// defaultThreads returns the number of workers used when 0 is configured
func defaultThreads() int {
	return max(runtime.NumCPU()-1, 1)
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Threads < 0 || c.Threads > MaxThreads {
		return fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidThreadCount, c.Threads, MaxThreads)
	}
	if c.ManagedTableSize <= 0 || c.ManagedTableSize > MaxManagedTableSize {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidTableSize, c.ManagedTableSize, MaxManagedTableSize)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout must not be negative: %v", c.IdleTimeout)
	}
	if c.ReconnectInterval < 0 {
		return fmt.Errorf("reconnect interval must not be negative: %v", c.ReconnectInterval)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive: %v", c.PollTimeout)
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("max events must be positive: %d", c.MaxEvents)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	threads := fmt.Sprintf("%d", c.Threads)
	if c.Threads == 0 {
		threads = fmt.Sprintf("auto (%d)", defaultThreads())
	}

	addSection("Engine")
	addField("Threads", threads)
	addField("Idle Timeout", c.IdleTimeout.String())
	addField("Reconnect Interval", c.ReconnectInterval.String())
	addField("Poll Timeout", c.PollTimeout.String())
	addField("Max Events", fmt.Sprintf("%d", c.MaxEvents))
	addField("Managed Table Size", fmt.Sprintf("%d", c.ManagedTableSize))

	addSection("Socket")
	addField("TCP NoDelay", fmt.Sprintf("%t", c.Socket.NoDelay))
	addField("Send Buffer", fmt.Sprintf("%d bytes", c.Socket.SendBuffer))
	addField("Receive Buffer", fmt.Sprintf("%d bytes", c.Socket.RecvBuffer))
	addField("Keep-Alive", fmt.Sprintf("%d sec", c.Socket.KeepAliveSec))
	addField("Linger", fmt.Sprintf("%d sec", c.Socket.Linger))

	return sb.String()
}
