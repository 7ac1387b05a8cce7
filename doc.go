// # Aura Voice Session Client
//
// Package aura establishes and maintains a real-time peer media connection to a conversational AI backend. It sequences the two-hop signaling handshake (ephemeral credential fetch, then SDP offer/answer exchange), owns the connection state machine, classifies failures, reconnects with bounded exponential backoff, and speaks the bidirectional event protocol carried over the peer data channel. Audio capture/playback helpers and a CLI agent live in subpackages.
package aura
