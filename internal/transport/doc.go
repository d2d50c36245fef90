// Package transport serves connections over WebSocket.
//
// The Server upgrades HTTP requests with gorilla/websocket and drives one
// connection.Connection per socket: a single read goroutine delivers the
// open/message/close events in order, and a writer goroutine drains the
// session's outbound queue so that publishers never block on a slow
// client. A session whose queue overflows is disconnected. Keep-alive pings
// and read deadlines detect dead peers.
//
// Client speaks the route/verb protocol from the other end: Request waits
// for the reply carrying its callback name, and everything else arrives
// decoded on Events. It backs cmd/wsclient and the tests.
package transport
