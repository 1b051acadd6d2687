// Package util provides data structures shared by the dispatcher packages.
//
// The package contains:
//   - mapheap: A generic keyed priority queue (heap + map) used to track the
//     activity deadlines of senders
//   - lockfreempsc: A lock-free Multi-Producer Single-Consumer (MPSC) queue that an
//     event loop drains inline, used to hand senders over to worker goroutines
//
// Neither structure needs a dedicated goroutine. The priority queue is not thread-safe
// and is meant to be owned by one event loop; the MPSC queue accepts pushes from any
// goroutine and is consumed by exactly one.
package util
