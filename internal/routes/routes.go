// Package routes provides the built-in routes every server registers.
package routes

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/dragonhub/internal/router"
)

// Route names.
const (
	PubSubRoute    = "pubsub"
	HeartbeatRoute = "heartbeat"
)

// ErrMissingArgument is returned when a required argument is absent.
var ErrMissingArgument = errors.New("missing argument")

// Published is the envelope fanned out to channel subscribers.
type Published struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// PubSub returns the route that lets clients manage their own
// subscriptions and publish to channels.
//
//	{"route": "pubsub", "verb": "subscribe", "channels": ["a", "b"]}
//	{"route": "pubsub", "verb": "unsubscribe", "channels": "a"}
//	{"route": "pubsub", "verb": "publish", "channel": "a", "data": {...}}
func PubSub() router.Descriptor {
	return router.Descriptor{
		Name:       PubSubRoute,
		ValidVerbs: []string{"subscribe", "unsubscribe", "publish"},
		Handlers: map[string]router.VerbFunc{
			"subscribe":   subscribe,
			"unsubscribe": unsubscribe,
			"publish":     publish,
		},
	}
}

func subscribe(ctx context.Context, c router.Caller, args router.Args) error {
	channels := args.Strings("channels")
	if len(channels) == 0 {
		return missing(c, args, "channels")
	}
	c.Subscribe(channels...)
	return router.Respond(c, args, map[string]any{"subscribed": channels})
}

func unsubscribe(ctx context.Context, c router.Caller, args router.Args) error {
	channels := args.Strings("channels")
	if len(channels) == 0 {
		return missing(c, args, "channels")
	}
	c.Unsubscribe(channels...)
	return router.Respond(c, args, map[string]any{"unsubscribed": channels})
}

func publish(ctx context.Context, c router.Caller, args router.Args) error {
	channel := args.String("channel")
	if channel == "" {
		return missing(c, args, "channel")
	}
	delivered := c.Publish(channel, Published{Channel: channel, Data: args["data"]})
	return router.Respond(c, args, map[string]any{"delivered": delivered})
}

// Heartbeat returns a route whose ping verb replies "pong".
func Heartbeat() router.Descriptor {
	return router.Descriptor{
		Name:       HeartbeatRoute,
		ValidVerbs: []string{"ping"},
		Handlers: map[string]router.VerbFunc{
			"ping": func(ctx context.Context, c router.Caller, args router.Args) error {
				return router.Respond(c, args, "pong")
			},
		},
	}
}

// Register adds the built-in routes to r.
func Register(r *router.Registry) error {
	for _, d := range []router.Descriptor{PubSub(), Heartbeat()} {
		if err := r.Register(d); err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return nil
}

func missing(c router.Caller, args router.Args, name string) error {
	err := fmt.Errorf("%w: %s", ErrMissingArgument, name)
	if sendErr := router.RespondError(c, args, err.Error()); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}
