// Package session maintains the duplex channel to the transcription backend.
// It owns the WebSocket lifecycle: handshake, chunk streaming with bounded
// buffering while disconnected, capped exponential-backoff reconnection, and
// dispatch of inbound transcript and enrichment messages to their consumers.
package session
