package common

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dDispatch/lib/dispatcher"
	"github.com/ValentinKolb/dDispatch/rpc/echo"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Send configuration struct
// --------------------------------------------------------------------------

// SendConfig holds the parameters of a one-shot send to a single destination
type SendConfig struct {
	// Destination is host:port of the receiver
	Destination string

	// Payloads are sent as buffer messages in the given order
	Payloads []string

	// File is sent after the payloads if set. FileLength 0 sends until the end of the file.
	File       string
	FileOffset int64
	FileLength int64

	// Repeat sends all messages this many times
	Repeat int

	// Framed prefixes every payload with a frame header and counts framed replies
	Framed bool

	// sender policies
	QueueCapacity     int
	MaxResendCount    int
	MaxReconnectCount int

	// WaitSecond bounds how long to wait for queue space and for completion
	WaitSecond int

	// PrintMetrics writes the engine metrics after the send
	PrintMetrics bool

	// Engine is the dispatcher configuration
	Engine dispatcher.Config

	// Logging configuration
	LogLevel string
}

// Validate checks the configuration for obvious mistakes
func (c *SendConfig) Validate() error {
	if c.Destination == "" {
		return errors.New("destination is required")
	}
	if len(c.Payloads) == 0 && c.File == "" {
		return errors.New("nothing to send: set at least one message or a file")
	}
	if c.Repeat < 1 {
		return fmt.Errorf("repeat must be at least 1, got %d", c.Repeat)
	}
	if c.FileOffset < 0 || c.FileLength < 0 {
		return fmt.Errorf("invalid file range %d+%d", c.FileOffset, c.FileLength)
	}
	if c.WaitSecond <= 0 {
		return fmt.Errorf("wait must be positive, got %d", c.WaitSecond)
	}
	if !ValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return c.Engine.Validate()
}

// Wait returns WaitSecond as a duration
func (c *SendConfig) Wait() time.Duration {
	return time.Duration(c.WaitSecond) * time.Second
}

// ResolveDestination resolves Destination to an address the dispatcher can connect to
func (c *SendConfig) ResolveDestination() (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(c.Destination); err == nil {
		return ap, nil
	}

	addr, err := net.ResolveTCPAddr("tcp", c.Destination)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to resolve destination %s: %w", c.Destination, err)
	}
	return addr.AddrPort(), nil
}

// ToSenderInfo converts the configuration to the info of an unmanaged sender
func (c *SendConfig) ToSenderInfo(handler dispatcher.ReplyHandler) (dispatcher.SenderInfo, error) {
	addr, err := c.ResolveDestination()
	if err != nil {
		return dispatcher.SenderInfo{}, err
	}
	return dispatcher.SenderInfo{
		Addr:              addr,
		QueueCapacity:     c.QueueCapacity,
		MaxResendCount:    c.MaxResendCount,
		MaxReconnectCount: c.MaxReconnectCount,
		ReplyHandler:      handler,
	}, nil
}

// String returns a formatted string representation of the configuration
func (c *SendConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	limit := func(n int) string {
		if n < 0 {
			return "unlimited"
		}
		return strconv.Itoa(n)
	}

	addSection("Destination")
	addField("Address", c.Destination)
	addField("Framed", fmt.Sprintf("%t", c.Framed))

	addSection("Payload")
	addField("Messages", strconv.Itoa(len(c.Payloads)))
	if c.File != "" {
		length := "until EOF"
		if c.FileLength > 0 {
			length = fmt.Sprintf("%d bytes", c.FileLength)
		}
		addField("File", c.File)
		addField("File Range", fmt.Sprintf("offset %d, %s", c.FileOffset, length))
	}
	addField("Repeat", strconv.Itoa(c.Repeat))

	addSection("Sender")
	addField("Queue Capacity", strconv.Itoa(max(c.QueueCapacity, 1)))
	addField("Max Resends", limit(c.MaxResendCount))
	addField("Max Reconnects", limit(c.MaxReconnectCount))
	addField("Wait", fmt.Sprintf("%d sec", c.WaitSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	sb.WriteString(c.Engine.String())
	return sb.String()
}

// --------------------------------------------------------------------------
// Echo server configuration struct
// --------------------------------------------------------------------------

// EchoConfig holds the parameters of the echo server command
type EchoConfig struct {
	Endpoint      string
	Sink          bool // discard data instead of echoing it
	BufferSizeKB  int
	TimeoutSecond int
	LogLevel      string
}

// ToServerConfig converts the configuration to an echo server configuration
func (c *EchoConfig) ToServerConfig() echo.Config {
	return echo.Config{
		Endpoint:      c.Endpoint,
		Echo:          !c.Sink,
		BufferSize:    c.BufferSizeKB * 1024,
		TimeoutSecond: c.TimeoutSecond,
	}
}

// String returns a formatted string representation of the echo configuration
func (c *EchoConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	mode := "echo"
	if c.Sink {
		mode = "sink"
	}

	addSection("Echo Server")
	addField("Endpoint", c.Endpoint)
	addField("Mode", mode)
	addField("Buffer Size", fmt.Sprintf("%d KB", c.BufferSizeKB))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
