// Package store persists voice notes that could not be uploaded. Each row
// points at a WAV file in the notes directory plus the locally assembled
// transcript, so a later manual retry can replay the upload.
package store
