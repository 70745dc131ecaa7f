// Package level analyzes captured PCM audio for input problems. It computes
// RMS and peak levels per frame and raises throttled alerts for sustained
// silence, low input level, and clipping.
package level
