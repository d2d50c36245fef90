package connection

import "errors"

// Errors
var (
	ErrSessionClosed    = errors.New("session already closed")
	ErrAlreadyOpen      = errors.New("connection already open")
	ErrNotOpen          = errors.New("connection not open")
	ErrConnectionClosed = errors.New("connection closed")
)

// Session is the transport side of a connection.
type Session interface {
	// ID uniquely identifies the session.
	ID() string

	// SendMessage queues payload for delivery to the client.
	SendMessage(payload []byte, binary bool) error

	// Close terminates the session.
	Close() error

	// IsClosed reports whether the session has been closed.
	IsClosed() bool
}

// Binary marks an outbound payload to be sent as a binary frame.
type Binary []byte

// State is the lifecycle state of a Connection.
type State int32

const (
	StateUnbound State = iota // accepted, no registry attached
	StateOpen                 // registry attached, dispatching messages
	StateClosed               // terminal
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
