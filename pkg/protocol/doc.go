// ABOUTME: Wire protocol for the opusd decode service
// ABOUTME: Frame header codec, control messages, and binary decode envelopes

// Package protocol defines the wire-level types shared by the opusd
// server and its clients: the 8-byte frame header that prefixes every
// encoded Opus packet, the JSON control messages used to size and open
// decoders, and the binary envelopes that carry decode requests and
// responses.
package protocol
