// Package connection implements the per-client connection state machine.
//
// A Connection wraps one transport Session:
//   - starts unbound, with no pub/sub registry attached
//   - OnOpen binds it to the shared pub/sub registry
//   - OnMessage normalizes each payload and dispatches it by route and verb
//   - a protocol violation (unknown route or verb) aborts the connection
//   - OnClose removes it from every channel and closes the session
//
// The transport must deliver a single connection's events one at a time.
// Events of different connections may run concurrently.
package connection
