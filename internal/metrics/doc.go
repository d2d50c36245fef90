// Package metrics periodically logs component statistics.
//
// A Reporter collects named stats snapshots:
//   - transport session and dispatch counters
//   - pubsub channel, membership and delivery counters
//   - router dispatch and error counters
//
// The same snapshots back the health endpoint.
package metrics
