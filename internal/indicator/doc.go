// Package indicator defines the presenter contract for recording feedback.
// The recorder pushes lifecycle, level, connection, transcript, and error
// events through a Presenter; implementations range from the no-op used in
// tests to the slog presenter for headless runs and the terminal UI.
package indicator
