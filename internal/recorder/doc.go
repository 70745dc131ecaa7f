// Package recorder orchestrates one voice note end to end: microphone
// capture feeding the streaming session, live transcript and enrichment
// assembly, presenter notifications, and note resolution on stop with
// upload and local-save fallbacks.
package recorder
