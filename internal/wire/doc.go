// Package wire defines the JSON messages exchanged over the voice session
// channel. Text frames carry a tagged union dispatched on the "type" field;
// raw audio chunks travel as separate binary frames and never pass through
// this package.
package wire
