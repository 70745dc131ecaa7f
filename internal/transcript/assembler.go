package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// FragmentKind distinguishes entries in the assembled document.
type FragmentKind int

const (
	FragmentFinal FragmentKind = iota
	FragmentInterim
	FragmentPause
)

// String returns the fragment kind name.
func (k FragmentKind) String() string {
	switch k {
	case FragmentFinal:
		return "final"
	case FragmentInterim:
		return "interim"
	case FragmentPause:
		return "pause"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ConfidenceTier buckets recognition confidence for display.
type ConfidenceTier int

const (
	TierLow ConfidenceTier = iota
	TierMedium
	TierHigh
)

// String returns the tier name.
func (t ConfidenceTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// TierFor maps a confidence score to its display tier: high at 0.8 and
// above, medium from 0.3 up to 0.8, low below 0.3.
func TierFor(confidence float64) ConfidenceTier {
	switch {
	case confidence >= 0.8:
		return TierHigh
	case confidence >= 0.3:
		return TierMedium
	default:
		return TierLow
	}
}

// Fragment is one entry of the assembled document. Confidence only applies
// to text fragments.
type Fragment struct {
	Kind       FragmentKind
	Text       string
	Confidence float64
	At         time.Time
}

// Tier returns the fragment's confidence tier.
func (f Fragment) Tier() ConfidenceTier {
	return TierFor(f.Confidence)
}

// Assembler builds a session transcript from fragments arriving over the
// session channel. Safe for concurrent use: the channel read loop writes
// while the UI reads.
type Assembler struct {
	fragments  []Fragment
	interim    Fragment
	hasInterim bool

	interimUpdates uint64

	mu sync.RWMutex
}

// AssemblerStats represents transcript assembly statistics.
type AssemblerStats struct {
	FinalFragments int    `json:"final_fragments"`
	InterimUpdates uint64 `json:"interim_updates"`
	PauseMarkers   int    `json:"pause_markers"`
	Characters     int    `json:"characters"`
}

// NewAssembler creates an empty transcript assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// AddInterim replaces the current provisional fragment. It never touches
// finalized text.
func (a *Assembler) AddInterim(text string, confidence float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.interim = Fragment{
		Kind:       FragmentInterim,
		Text:       text,
		Confidence: confidence,
		At:         time.Now(),
	}
	a.hasInterim = true
	a.interimUpdates++
}

// Finalize appends an immutable fragment and clears the provisional one.
func (a *Assembler) Finalize(text string, confidence float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fragments = append(a.fragments, Fragment{
		Kind:       FragmentFinal,
		Text:       text,
		Confidence: confidence,
		At:         time.Now(),
	})
	a.interim = Fragment{}
	a.hasInterim = false
}

// InsertPauseMarker records a recording pause at the current position.
// Finalized text later resumes in a new paragraph.
func (a *Assembler) InsertPauseMarker() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fragments = append(a.fragments, Fragment{
		Kind: FragmentPause,
		At:   time.Now(),
	})
}

// Render returns the display view: finalized fragments and pause markers in
// order, followed by the pending interim fragment if any. The returned
// slice is a copy.
func (a *Assembler) Render() []Fragment {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rendered := make([]Fragment, 0, len(a.fragments)+1)
	rendered = append(rendered, a.fragments...)
	if a.hasInterim {
		rendered = append(rendered, a.interim)
	}
	return rendered
}

// FullTranscript returns the finalized text only: fragments within a
// paragraph joined by single spaces, pause markers starting a new line.
// Interim text is excluded; repeated calls on unchanged state return
// identical strings.
func (a *Assembler) FullTranscript() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var lines []string
	var run []string
	for _, f := range a.fragments {
		switch f.Kind {
		case FragmentPause:
			if len(run) > 0 {
				lines = append(lines, strings.Join(run, " "))
				run = nil
			}
		case FragmentFinal:
			if text := strings.TrimSpace(f.Text); text != "" {
				run = append(run, text)
			}
		}
	}
	if len(run) > 0 {
		lines = append(lines, strings.Join(run, " "))
	}
	return strings.Join(lines, "\n")
}

// Interim returns the pending provisional fragment, if any.
func (a *Assembler) Interim() (Fragment, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.interim, a.hasInterim
}

// GetStats returns current assembly statistics.
func (a *Assembler) GetStats() AssemblerStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AssemblerStats{InterimUpdates: a.interimUpdates}
	for _, f := range a.fragments {
		switch f.Kind {
		case FragmentFinal:
			stats.FinalFragments++
			stats.Characters += len(f.Text)
		case FragmentPause:
			stats.PauseMarkers++
		}
	}
	return stats
}
