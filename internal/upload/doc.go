// Package upload submits finalized voice notes to the persistence API over
// HTTP. It is the fallback path: the live session normally persists the note
// server-side, and this client only runs when the session never produced an
// authoritative note, or when retrying locally saved notes.
package upload
