// Package rpc groups the protocol level building blocks that sit on top of the
// dispatcher engine.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures of the command line tools and the
//     zerolog backed logging used by every package.
//
//   - frame: Fixed header framing (channel, request id, length) and a reply
//     handler that reassembles frames from partial reads.
//
//   - echo: A TCP echo and sink server used as a local peer in tests and by
//     the echo command.
package rpc
