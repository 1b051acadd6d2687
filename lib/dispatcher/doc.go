// Package dispatcher implements an asynchronous message dispatch engine.
// Callers hand it byte buffers or file ranges addressed to a TCP destination,
// and a small pool of event loop workers writes them without the caller ever
// touching a socket. Connections are re-established automatically, every
// destination has a bounded queue and replies are handed to a caller supplied
// ReplyHandler as they arrive.
//
// The package focuses on:
//   - Non-blocking delivery with per-destination FIFO order
//   - Automatic, rate limited reconnects with bounded resend and reconnect counts
//   - At most one live sender per identity, with safe concurrent teardown
//   - Zero-copy file transfer with sendfile(2)
//
// Key Components:
//
//   - Engine: A fixed pool of workers, created with CreateEngine or NewEngine.
//     Senders are assigned to workers round-robin.
//
//   - ManagedSenderTable / UnmanagedSenderTable: Registries mapping a uint16 key
//     or a destination address to its Sender. Open creates and starts a sender,
//     Get looks one up, Close shuts it down, Release drops a reference.
//
//   - Sender: One outbound connection with its queue. Push, PushBuffer and
//     PushFile queue messages and may be called from any goroutine.
//
//   - ReplyHandler: Receives reply data and connection events. All callbacks
//     of one sender run on its worker goroutine.
//
// Reference Counting:
//
//	A sender returned by Open or Get carries a reference for the caller that
//	must be returned with Release. The table and the worker hold their own
//	references, so a sender is destroyed only after it left the table, its
//	worker dropped it and every caller released it. If the reply handler
//	implements io.Closer it is closed at that point.
//
// Example:
//
//	engine, err := dispatcher.CreateEngine(0, 60)
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	sender, err := engine.UnmanagedTable().Open(dispatcher.SenderInfo{
//		Addr:              netip.MustParseAddrPort("127.0.0.1:8080"),
//		QueueCapacity:     128,
//		MaxResendCount:    1,
//		MaxReconnectCount: -1,
//	})
//	if err != nil {
//		return err
//	}
//	defer engine.UnmanagedTable().Release(sender)
//
//	sender.PushBuffer([]byte("hello"), time.Second)
//	engine.UnmanagedTable().Close(sender)
//
// The engine requires Linux (epoll). On other platforms NewEngine fails with
// netpoll.ErrUnsupported.
package dispatcher
