// Package wire implements the binary envelope format spoken over the
// Accord gateway WebSocket.
//
// Every inbound frame is a msgpack-encoded map with at minimum:
//
//	{event: string, data: any}
//
// where data may be absent for control events (hello, pong). Outbound
// frames are control messages:
//
//	{op: "identify", token: string, device: "desktop"|"web"}
//	{op: "ping"}
//	{op: "update_presence", status: ..., custom_status: ...}
//
// # Identifiers
//
// Accord identifiers are 64-bit snowflakes and must round-trip exactly;
// msgpack carries them as integers, never floats. Known event payloads
// decode straight into typed structs whose ID fields are uint64, so no
// lossy float conversion can occur. For unknown events the raw payload is
// retained as a generic map, run through NormalizeSnowflakes, which
// converts every field named "id" or ending in "_id" (and every element
// of "_ids" lists) to uint64.
//
// # Events
//
// DecodeEvent maps an envelope to one value of the closed Event set, one
// struct per known event kind, or UnknownEvent for anything the client
// does not recognize yet. Callers dispatch with a type switch; unknown
// events fold to a no-op, keeping the client forward compatible.
//
// # Errors
//
// Malformed input surfaces as an error wrapping ErrMalformedFrame. The
// gateway logs and drops such frames; they are never fatal.
package wire
