// Package enrich accumulates contact enrichment suggestions streamed during
// a session into a per-contact proposal. Duplicate facts are dropped on a
// first-write-wins basis, and the backend's end-of-session proposal replaces
// the accumulated state when present.
package enrich
