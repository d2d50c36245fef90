package router

import (
	"context"

	"github.com/rickgao/dragonhub/internal/normalize"
)

// Keys with special meaning in an inbound message.
const (
	RouteKey    = "route"
	VerbKey     = "verb"
	CallbackKey = "callbackname"
)

// Caller is the handler's view of the connection a message arrived on.
type Caller interface {
	// ID returns the connection's unique identifier.
	ID() string

	// Send writes a message back to this connection only.
	Send(message any) error

	// Subscribe adds this connection to the named channels.
	Subscribe(channels ...string)

	// Unsubscribe removes this connection from the named channels.
	Unsubscribe(channels ...string)

	// Publish fans message out to every subscriber of channel and
	// returns how many deliveries succeeded.
	Publish(channel string, message any) int

	// Set stores a per-connection value.
	Set(key string, value any)

	// Get loads a per-connection value.
	Get(key string) (any, bool)

	// Close terminates the connection.
	Close() error
}

// Args holds the handler arguments of a message (everything except route
// and verb).
type Args map[string]any

// String returns the string argument stored under key.
func (a Args) String(key string) string {
	return normalize.String(a, key)
}

// Strings returns key as a list of strings. A lone string becomes a
// one-element list.
func (a Args) Strings(key string) []string {
	return normalize.Strings(a, key)
}

// CallbackName returns the client's callback name, if any.
func (a Args) CallbackName() string {
	return a.String(CallbackKey)
}

// VerbFunc handles one verb of a route.
type VerbFunc func(ctx context.Context, c Caller, args Args) error

// Descriptor declares a route.
type Descriptor struct {
	// Name is the route name clients address in the "route" key.
	Name string

	// ValidVerbs lists every verb the route accepts.
	ValidVerbs []string

	// Handlers maps each valid verb to its function. It must contain
	// exactly the verbs in ValidVerbs.
	Handlers map[string]VerbFunc
}

// HasVerb reports whether verb is declared valid for the route.
func (d Descriptor) HasVerb(verb string) bool {
	for _, v := range d.ValidVerbs {
		if v == verb {
			return true
		}
	}
	return false
}

// Stats contains dispatch statistics.
type Stats struct {
	Routes          int
	Dispatched      int64
	UnknownRoutes   int64
	UnexpectedVerbs int64
	HandlerErrors   int64
}
