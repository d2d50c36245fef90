// Package router maps inbound messages to application handlers.
//
// Handlers are grouped into routes. A route declares the verbs it accepts
// and supplies one function per verb; the Registry checks that the two
// agree when the route is registered. At dispatch time the route is
// resolved by name and the verb is validated before any handler runs, so
// an unknown verb is rejected the same way regardless of what the route
// happens to implement.
//
// Inbound wire shape:
//
//	{"route": "chat", "verb": "publish", "channel": "lobby", "data": {...}}
//
// Every key except "route" and "verb" is passed to the handler as Args.
package router
