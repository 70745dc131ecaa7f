// Package transcript assembles interim and final transcription fragments
// into an ordered session document. Interim fragments replace one another
// until finalized; finalized text is immutable and pause markers split the
// document into paragraphs.
package transcript
