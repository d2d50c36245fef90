// Package pubsub implements the in-process channel registry.
//
// A Registry maps channel names to the set of subscribers currently
// listening on them. Channels are created on first subscribe and removed
// as soon as their last subscriber leaves. Publish takes a snapshot of a
// channel's members and delivers outside the lock, so a subscriber that
// fails (or unsubscribes itself mid-delivery) never affects the others.
package pubsub
