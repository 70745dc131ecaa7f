// Package capture manages microphone capture for a voice note session. It
// owns the idle/recording/paused/stopped lifecycle, slices the incoming PCM
// stream into fixed-interval chunks for streaming, runs level analysis on
// every frame, and assembles the full recording into a WAV artifact on stop.
package capture
