package pubsub

// Subscriber is anything that can receive published messages.
// Connections implement it.
type Subscriber interface {
	// ID uniquely identifies the subscriber within a registry. Membership
	// is keyed by ID: a second subscriber reporting an ID already in use
	// takes over that ID's memberships.
	ID() string

	// Send delivers a message to the subscriber. Implementations must not
	// block on network I/O.
	Send(message any) error
}

// Stats contains registry statistics.
type Stats struct {
	Channels         int   // Channels with at least one subscriber
	Subscribers      int   // Distinct subscribers across all channels
	Memberships      int   // Total (channel, subscriber) pairs
	Published        int64 // Publish calls
	Delivered        int64 // Successful per-subscriber deliveries
	DeliveryFailures int64 // Failed per-subscriber deliveries
}
