// Package frame implements the fixed header framing used on top of raw
// dispatcher connections. Every frame is
//
//   - 8 bytes: channel (uint64, big endian)
//   - 8 bytes: requestID (uint64, big endian)
//   - 4 bytes: payload length (uint32, big endian)
//   - N bytes: payload
//
// Both header fields are opaque to this package; callers use them to route
// replies back to requests.
//
// Encode builds a frame for dispatcher.Sender.PushBuffer, Write and Read work
// on blocking streams (e.g. a net.Conn on the server side), and ReplyHandler
// reassembles frames from the partial reads of a dispatcher connection.
package frame
