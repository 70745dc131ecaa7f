package enrich

import (
	"testing"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

func fieldUpdate(id, hint, field, value string) wire.Suggestion {
	return wire.Suggestion{
		ID:          id,
		ContactHint: hint,
		Kind:        wire.SuggestionFieldUpdate,
		Field:       field,
		Value:       value,
	}
}

func tag(id, hint, value string) wire.Suggestion {
	return wire.Suggestion{
		ID:          id,
		ContactHint: hint,
		Kind:        wire.SuggestionTag,
		Value:       value,
	}
}

func TestAccumulatorDeduplicatesFirstWriteWins(t *testing.T) {
	a := NewAccumulator()

	if dups := a.ApplyUpdate([]wire.Suggestion{
		fieldUpdate("s1", "Dana", "employer", "Acme"),
		fieldUpdate("s2", "Dana", "employer", "Acme"), // same fact, later ID
	}); dups != 1 {
		t.Errorf("Expected 1 duplicate in first batch, got %d", dups)
	}
	if dups := a.ApplyUpdate([]wire.Suggestion{
		fieldUpdate("s3", "Dana", "employer", "Acme"), // same fact again
		fieldUpdate("s4", "Dana", "employer", "Initech"),
	}); dups != 1 {
		t.Errorf("Expected 1 duplicate in second batch, got %d", dups)
	}

	proposals := a.Proposals()
	if len(proposals) != 1 {
		t.Fatalf("Expected 1 contact, got %d", len(proposals))
	}
	suggestions := proposals[0].Suggestions
	if len(suggestions) != 2 {
		t.Fatalf("Expected 2 deduplicated suggestions, got %d", len(suggestions))
	}
	if suggestions[0].ID != "s1" {
		t.Errorf("Expected first write s1 to win, got %s", suggestions[0].ID)
	}
	if suggestions[1].ID != "s4" {
		t.Errorf("Expected distinct fact s4 kept, got %s", suggestions[1].ID)
	}

	stats := a.GetStats()
	if stats.Received != 4 {
		t.Errorf("Expected 4 received, got %d", stats.Received)
	}
	if stats.Deduped != 2 {
		t.Errorf("Expected 2 deduped, got %d", stats.Deduped)
	}
}

func TestAccumulatorKindDistinguishesFacts(t *testing.T) {
	a := NewAccumulator()

	a.ApplyUpdate([]wire.Suggestion{
		tag("s1", "Dana", "climbing"),
		{ID: "s2", ContactHint: "Dana", Kind: wire.SuggestionGroup, Value: "climbing"},
	})

	proposals := a.Proposals()
	if len(proposals[0].Suggestions) != 2 {
		t.Errorf("Expected same value under different kinds kept, got %d suggestions",
			len(proposals[0].Suggestions))
	}
}

func TestAccumulatorContactOrderIsFirstMention(t *testing.T) {
	a := NewAccumulator()

	a.ApplyUpdate([]wire.Suggestion{tag("s1", "Dana", "climbing")})
	a.ApplyUpdate([]wire.Suggestion{tag("s2", "Miguel", "golf")})
	a.ApplyUpdate([]wire.Suggestion{tag("s3", "Dana", "baking")})

	proposals := a.Proposals()
	if len(proposals) != 2 {
		t.Fatalf("Expected 2 contacts, got %d", len(proposals))
	}
	if proposals[0].ContactHint != "Dana" || proposals[1].ContactHint != "Miguel" {
		t.Errorf("Expected first-mention order Dana, Miguel, got %s, %s",
			proposals[0].ContactHint, proposals[1].ContactHint)
	}
	if len(proposals[0].Suggestions) != 2 {
		t.Errorf("Expected later Dana suggestion grouped under Dana, got %d",
			len(proposals[0].Suggestions))
	}
}

func TestAccumulatorSkipsInvalidSuggestions(t *testing.T) {
	a := NewAccumulator()

	a.ApplyUpdate([]wire.Suggestion{
		{ID: "s1", ContactHint: "Dana", Kind: "guess", Value: "x"},
		{ID: "s2", ContactHint: "Dana", Kind: wire.SuggestionFieldUpdate, Value: "no field"},
		tag("s3", "Dana", "valid"),
	})

	proposals := a.Proposals()
	if len(proposals) != 1 || len(proposals[0].Suggestions) != 1 {
		t.Fatalf("Expected only the valid suggestion kept, got %+v", proposals)
	}
	if proposals[0].Suggestions[0].ID != "s3" {
		t.Errorf("Expected s3 kept, got %s", proposals[0].Suggestions[0].ID)
	}
}

func TestAccumulatorProposalsDeepCopy(t *testing.T) {
	a := NewAccumulator()
	a.ApplyUpdate([]wire.Suggestion{tag("s1", "Dana", "climbing")})

	proposals := a.Proposals()
	proposals[0].ContactHint = "tampered"
	proposals[0].Suggestions[0].Value = "tampered"

	again := a.Proposals()
	if again[0].ContactHint != "Dana" {
		t.Errorf("Expected contact hint isolated from mutation, got %q", again[0].ContactHint)
	}
	if again[0].Suggestions[0].Value != "climbing" {
		t.Errorf("Expected suggestion isolated from mutation, got %q", again[0].Suggestions[0].Value)
	}
}

func TestAdoptAuthoritativeReplacesState(t *testing.T) {
	a := NewAccumulator()
	a.ApplyUpdate([]wire.Suggestion{
		tag("s1", "Dana", "climbing"),
		tag("s2", "Miguel", "golf"),
	})

	a.AdoptAuthoritative([]wire.ContactProposal{
		{ContactHint: "Dana Whitman", Suggestions: []wire.Suggestion{
			fieldUpdate("f1", "Dana Whitman", "employer", "Acme"),
		}},
	})

	proposals := a.Proposals()
	if len(proposals) != 1 {
		t.Fatalf("Expected authoritative proposal to replace state, got %d contacts", len(proposals))
	}
	if proposals[0].ContactHint != "Dana Whitman" {
		t.Errorf("Expected authoritative contact, got %q", proposals[0].ContactHint)
	}
	if !a.GetStats().Authoritative {
		t.Errorf("Expected authoritative flag set")
	}
}

func TestAdoptAuthoritativeEmptyKeepsAccumulated(t *testing.T) {
	a := NewAccumulator()
	a.ApplyUpdate([]wire.Suggestion{tag("s1", "Dana", "climbing")})

	a.AdoptAuthoritative(nil)

	proposals := a.Proposals()
	if len(proposals) != 1 || proposals[0].ContactHint != "Dana" {
		t.Fatalf("Expected accumulated state kept on empty proposal, got %+v", proposals)
	}
	if a.GetStats().Authoritative {
		t.Errorf("Expected authoritative flag unset for empty proposal")
	}
}

func TestAdoptAuthoritativeFillsMissingContactHint(t *testing.T) {
	a := NewAccumulator()

	a.AdoptAuthoritative([]wire.ContactProposal{
		{ContactHint: "Dana", Suggestions: []wire.Suggestion{
			{ID: "f1", Kind: wire.SuggestionTag, Value: "climbing"},
		}},
	})

	proposals := a.Proposals()
	if len(proposals) != 1 {
		t.Fatalf("Expected 1 contact, got %d", len(proposals))
	}
	if proposals[0].Suggestions[0].ContactHint != "Dana" {
		t.Errorf("Expected proposal hint inherited, got %q", proposals[0].Suggestions[0].ContactHint)
	}
}

func TestResolveRemovesSuggestion(t *testing.T) {
	a := NewAccumulator()
	a.ApplyUpdate([]wire.Suggestion{
		tag("s1", "Dana", "climbing"),
		tag("s2", "Dana", "baking"),
		tag("s3", "Miguel", "golf"),
	})

	if !a.Resolve("Dana", "s1") {
		t.Fatalf("Expected resolve of s1 to succeed")
	}

	proposals := a.Proposals()
	if len(proposals[0].Suggestions) != 1 || proposals[0].Suggestions[0].ID != "s2" {
		t.Errorf("Expected s2 to remain for Dana, got %+v", proposals[0].Suggestions)
	}

	// Resolving the last suggestion drops the contact.
	if !a.Resolve("Dana", "s2") {
		t.Fatalf("Expected resolve of s2 to succeed")
	}
	proposals = a.Proposals()
	if len(proposals) != 1 || proposals[0].ContactHint != "Miguel" {
		t.Errorf("Expected only Miguel left, got %+v", proposals)
	}

	if a.Resolve("Dana", "s9") {
		t.Errorf("Expected resolve of unknown contact to fail")
	}
	if a.Resolve("Miguel", "s9") {
		t.Errorf("Expected resolve of unknown suggestion to fail")
	}
}

func TestAccumulatorEmptyProposals(t *testing.T) {
	a := NewAccumulator()
	if proposals := a.Proposals(); proposals != nil {
		t.Errorf("Expected nil proposals for empty accumulator, got %+v", proposals)
	}
}
