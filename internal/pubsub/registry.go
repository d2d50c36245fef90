package pubsub

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry tracks channel membership and fans out published messages.
// It is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	channels map[string]map[string]Subscriber // channel → subscriber ID → subscriber
	index    map[string]map[string]struct{}   // subscriber ID → channels

	published atomic.Int64
	delivered atomic.Int64
	failures  atomic.Int64
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:   logger,
		channels: make(map[string]map[string]Subscriber),
		index:    make(map[string]map[string]struct{}),
	}
}

// Subscribe adds sub to every named channel. Subscribing twice to the same
// channel has no additional effect. Subscribers are identified by ID().
func (r *Registry) Subscribe(channels []string, sub Subscriber) {
	if len(channels) == 0 {
		return
	}
	id := sub.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.index[id]
	if joined == nil {
		joined = make(map[string]struct{}, len(channels))
		r.index[id] = joined
	}

	for _, name := range channels {
		members := r.channels[name]
		if members == nil {
			members = make(map[string]Subscriber)
			r.channels[name] = members
		}
		members[id] = sub
		joined[name] = struct{}{}
	}
}

// Unsubscribe removes sub from every named channel. Channels left without
// subscribers are deleted. Unknown channels are ignored.
func (r *Registry) Unsubscribe(channels []string, sub Subscriber) {
	if len(channels) == 0 {
		return
	}
	id := sub.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range channels {
		r.removeLocked(name, id)
	}
}

// UnsubscribeAll removes sub from every channel it belongs to and returns
// the channels it left.
func (r *Registry) UnsubscribeAll(sub Subscriber) []string {
	id := sub.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.index[id]
	if len(joined) == 0 {
		delete(r.index, id)
		return nil
	}

	left := make([]string, 0, len(joined))
	for name := range joined {
		left = append(left, name)
	}
	for _, name := range left {
		r.removeLocked(name, id)
	}
	sort.Strings(left)
	return left
}

// removeLocked drops one membership. Must be called with mu held.
func (r *Registry) removeLocked(channel, id string) {
	if members, ok := r.channels[channel]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.channels, channel)
		}
	}
	if joined, ok := r.index[id]; ok {
		delete(joined, channel)
		if len(joined) == 0 {
			delete(r.index, id)
		}
	}
}

// Publish delivers message to every current subscriber of channel and
// returns the number of successful deliveries. A failing subscriber is
// logged and skipped.
func (r *Registry) Publish(channel string, message any) int {
	r.published.Add(1)

	targets := r.snapshot(channel)
	if len(targets) == 0 {
		return 0
	}

	delivered := 0
	for _, sub := range targets {
		if err := sub.Send(message); err != nil {
			r.failures.Add(1)
			r.logger.Warn("publish delivery failed",
				"channel", channel,
				"subscriber", sub.ID(),
				"error", err,
			)
			continue
		}
		delivered++
	}

	r.delivered.Add(int64(delivered))
	return delivered
}

// snapshot copies the member list of channel under the read lock.
func (r *Registry) snapshot(channel string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.channels[channel]
	if len(members) == 0 {
		return nil
	}

	out := make([]Subscriber, 0, len(members))
	for _, sub := range members {
		out = append(out, sub)
	}
	return out
}

// HasChannel reports whether channel currently has any subscriber.
func (r *Registry) HasChannel(channel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[channel]
	return ok
}

// Channels returns the names of all live channels, sorted.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.channels))
	for name := range r.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Subscribers returns the IDs subscribed to channel, sorted. It returns nil
// for a channel that does not exist.
func (r *Registry) Subscribers(channel string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.channels[channel]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ChannelsOf returns the channels sub belongs to, sorted.
func (r *Registry) ChannelsOf(sub Subscriber) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.index[sub.ID()]
	if len(joined) == 0 {
		return nil
	}

	out := make([]string, 0, len(joined))
	for name := range joined {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Stats returns current statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	memberships := 0
	for _, members := range r.channels {
		memberships += len(members)
	}
	stats := Stats{
		Channels:    len(r.channels),
		Subscribers: len(r.index),
		Memberships: memberships,
	}
	r.mu.RUnlock()

	stats.Published = r.published.Load()
	stats.Delivered = r.delivered.Load()
	stats.DeliveryFailures = r.failures.Load()
	return stats
}
