package transcript

import (
	"sync"
	"testing"
)

func TestInterimReplacement(t *testing.T) {
	a := NewAssembler()

	a.AddInterim("cau", 0.4)
	a.AddInterim("caught up", 0.6)

	rendered := a.Render()
	if len(rendered) != 1 {
		t.Fatalf("Expected 1 rendered fragment, got %d", len(rendered))
	}
	if rendered[0].Kind != FragmentInterim {
		t.Errorf("Expected interim fragment, got %s", rendered[0].Kind)
	}
	if rendered[0].Text != "caught up" {
		t.Errorf("Expected latest interim text, got %q", rendered[0].Text)
	}

	if got := a.FullTranscript(); got != "" {
		t.Errorf("Expected empty transcript before finalization, got %q", got)
	}
}

func TestFinalizeClearsInterim(t *testing.T) {
	a := NewAssembler()

	a.AddInterim("caught up with", 0.6)
	a.Finalize("caught up with Dana", 0.92)

	rendered := a.Render()
	if len(rendered) != 1 {
		t.Fatalf("Expected 1 rendered fragment, got %d", len(rendered))
	}
	if rendered[0].Kind != FragmentFinal {
		t.Errorf("Expected final fragment, got %s", rendered[0].Kind)
	}
	if _, ok := a.Interim(); ok {
		t.Errorf("Expected no pending interim after finalization")
	}
	if got := a.FullTranscript(); got != "caught up with Dana" {
		t.Errorf("Expected finalized text, got %q", got)
	}
}

func TestFinalizedTextIsImmutable(t *testing.T) {
	a := NewAssembler()

	a.Finalize("first thought", 0.9)
	a.AddInterim("second", 0.5)
	a.AddInterim("second thought entirely", 0.6)

	if got := a.FullTranscript(); got != "first thought" {
		t.Errorf("Expected interim churn to leave finalized text alone, got %q", got)
	}

	a.Finalize("second thought entirely", 0.88)
	if got := a.FullTranscript(); got != "first thought second thought entirely" {
		t.Errorf("Expected appended finalization, got %q", got)
	}
}

func TestFullTranscriptFormatting(t *testing.T) {
	tests := []struct {
		name  string
		build func(a *Assembler)
		want  string
	}{
		{
			name: "finals joined by spaces",
			build: func(a *Assembler) {
				a.Finalize("caught up with Dana", 0.9)
				a.Finalize("she started at Acme", 0.85)
			},
			want: "caught up with Dana she started at Acme",
		},
		{
			name: "pause starts a new line",
			build: func(a *Assembler) {
				a.Finalize("first part", 0.9)
				a.InsertPauseMarker()
				a.Finalize("second part", 0.9)
			},
			want: "first part\nsecond part",
		},
		{
			name: "leading pause ignored",
			build: func(a *Assembler) {
				a.InsertPauseMarker()
				a.Finalize("only part", 0.9)
			},
			want: "only part",
		},
		{
			name: "trailing pause ignored",
			build: func(a *Assembler) {
				a.Finalize("only part", 0.9)
				a.InsertPauseMarker()
			},
			want: "only part",
		},
		{
			name: "consecutive pauses collapse",
			build: func(a *Assembler) {
				a.Finalize("first", 0.9)
				a.InsertPauseMarker()
				a.InsertPauseMarker()
				a.Finalize("second", 0.9)
			},
			want: "first\nsecond",
		},
		{
			name: "whitespace fragments trimmed and empties skipped",
			build: func(a *Assembler) {
				a.Finalize("  padded  ", 0.9)
				a.Finalize("   ", 0.9)
				a.Finalize("next", 0.9)
			},
			want: "padded next",
		},
		{
			name: "pending interim excluded",
			build: func(a *Assembler) {
				a.Finalize("finalized", 0.9)
				a.AddInterim("still speaking", 0.5)
			},
			want: "finalized",
		},
		{
			name:  "empty assembler",
			build: func(a *Assembler) {},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler()
			tt.build(a)
			got := a.FullTranscript()
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			// Repeated reads are deterministic.
			if again := a.FullTranscript(); again != got {
				t.Errorf("Expected stable output, got %q then %q", got, again)
			}
		})
	}
}

func TestConfidenceTiers(t *testing.T) {
	tests := []struct {
		confidence float64
		want       ConfidenceTier
	}{
		{confidence: 1.0, want: TierHigh},
		{confidence: 0.95, want: TierHigh},
		{confidence: 0.8, want: TierHigh},
		{confidence: 0.79, want: TierMedium},
		{confidence: 0.5, want: TierMedium},
		{confidence: 0.3, want: TierMedium},
		{confidence: 0.29, want: TierLow},
		{confidence: 0.0, want: TierLow},
	}

	for _, tt := range tests {
		if got := TierFor(tt.confidence); got != tt.want {
			t.Errorf("Expected tier %s for confidence %.2f, got %s", tt.want, tt.confidence, got)
		}
	}
}

func TestRenderOrderAndIsolation(t *testing.T) {
	a := NewAssembler()

	a.Finalize("one", 0.9)
	a.InsertPauseMarker()
	a.Finalize("two", 0.4)
	a.AddInterim("thr", 0.2)

	rendered := a.Render()
	wantKinds := []FragmentKind{FragmentFinal, FragmentPause, FragmentFinal, FragmentInterim}
	if len(rendered) != len(wantKinds) {
		t.Fatalf("Expected %d fragments, got %d", len(wantKinds), len(rendered))
	}
	for i, kind := range wantKinds {
		if rendered[i].Kind != kind {
			t.Errorf("Expected %s at position %d, got %s", kind, i, rendered[i].Kind)
		}
	}
	if rendered[0].Tier() != TierHigh {
		t.Errorf("Expected high tier for first fragment, got %s", rendered[0].Tier())
	}
	if rendered[2].Tier() != TierMedium {
		t.Errorf("Expected medium tier for second final, got %s", rendered[2].Tier())
	}
	if rendered[3].Tier() != TierLow {
		t.Errorf("Expected low tier for interim, got %s", rendered[3].Tier())
	}

	// Mutating the returned slice must not leak into the assembler.
	rendered[0].Text = "tampered"
	if again := a.Render(); again[0].Text != "one" {
		t.Errorf("Expected internal state isolated from render copies, got %q", again[0].Text)
	}
}

func TestAssemblerStats(t *testing.T) {
	a := NewAssembler()

	a.AddInterim("a", 0.1)
	a.AddInterim("ab", 0.2)
	a.Finalize("hello", 0.9)
	a.InsertPauseMarker()
	a.Finalize("world", 0.8)

	stats := a.GetStats()
	if stats.FinalFragments != 2 {
		t.Errorf("Expected 2 final fragments, got %d", stats.FinalFragments)
	}
	if stats.InterimUpdates != 2 {
		t.Errorf("Expected 2 interim updates, got %d", stats.InterimUpdates)
	}
	if stats.PauseMarkers != 1 {
		t.Errorf("Expected 1 pause marker, got %d", stats.PauseMarkers)
	}
	if stats.Characters != len("hello")+len("world") {
		t.Errorf("Expected %d characters, got %d", len("hello")+len("world"), stats.Characters)
	}
}

func TestAssemblerConcurrentAccess(t *testing.T) {
	a := NewAssembler()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			a.AddInterim("speaking", 0.5)
			a.Finalize("spoken", 0.9)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			a.FullTranscript()
			a.Render()
			a.GetStats()
		}
	}()
	wg.Wait()

	if stats := a.GetStats(); stats.FinalFragments != 200 {
		t.Errorf("Expected 200 final fragments, got %d", stats.FinalFragments)
	}
}
