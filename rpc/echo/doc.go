// Package echo provides a small TCP server that reads whatever its clients send
// and, in echo mode, writes it straight back. It is the loopback peer used by
// the dispatcher tests and by the `ddispatch echo` command for local trials.
//
// Every connection is served by its own goroutine with a pooled read buffer.
// An optional DataFunc observes all received bytes per connection, in order.
//
// Example:
//
//	srv := echo.NewServer(echo.Config{Endpoint: "127.0.0.1:0", Echo: true})
//	if err := srv.Listen(); err != nil {
//		return err
//	}
//	go srv.Serve()
//	defer srv.Close()
//
//	addr := srv.Addr() // netip.AddrPort the server listens on
package echo
