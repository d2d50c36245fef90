package router

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrUnknownRoute    = errors.New("unknown route")
	ErrUnexpectedVerb  = errors.New("unexpected verb")
	ErrIncompleteRoute = errors.New("incomplete route")
)

// UnknownRouteError is returned when a message names a route that is not
// registered.
type UnknownRouteError struct {
	Route string
}

func (e *UnknownRouteError) Error() string {
	return fmt.Sprintf("unknown route %q", e.Route)
}

func (e *UnknownRouteError) Is(target error) bool {
	return target == ErrUnknownRoute
}

// UnexpectedVerbError is returned when a message names a verb the route
// does not declare.
type UnexpectedVerbError struct {
	Route string
	Verb  string
}

func (e *UnexpectedVerbError) Error() string {
	return fmt.Sprintf("unexpected verb %q for route %q", e.Verb, e.Route)
}

func (e *UnexpectedVerbError) Is(target error) bool {
	return target == ErrUnexpectedVerb
}

// IsFatal reports whether err should terminate the connection that caused
// it. Protocol errors are fatal; errors returned by handlers are not.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnknownRoute) || errors.Is(err, ErrUnexpectedVerb)
}
