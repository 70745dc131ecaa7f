// Package tui renders the interactive recording view: a bubbletea model
// showing the recording indicator, input level meter, live transcript with
// confidence styling, connection state, and enrichment proposal counts.
// Recorder events enter the program as typed messages via the Presenter
// adapter; space pauses and resumes, s or q stops and exits.
package tui
