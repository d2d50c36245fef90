// Package normalize coerces inbound WebSocket payloads into a canonical map.
//
// The transport may hand us raw frame bytes, a string, or a value that has
// already been decoded. Anything that is not a JSON object is wrapped as
// {"message": <text>} so that callers always get a map back.
package normalize
