package enrich

import (
	"sync"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

// contactState holds one contact's suggestions keyed by dedup identity, with
// insertion order preserved.
type contactState struct {
	order []string
	byKey map[string]wire.Suggestion
}

// Accumulator collects enrichment suggestions for the contacts mentioned in
// a session. Contacts appear in first-mention order; within a contact,
// suggestions deduplicate by (kind, field, value) and the first occurrence
// wins. Safe for concurrent use.
type Accumulator struct {
	order    []string
	contacts map[string]*contactState

	received      uint64
	deduped       uint64
	authoritative bool

	mu sync.RWMutex
}

// AccumulatorStats represents enrichment accumulation statistics.
type AccumulatorStats struct {
	Contacts      int    `json:"contacts"`
	Suggestions   int    `json:"suggestions"`
	Received      uint64 `json:"received"`
	Deduped       uint64 `json:"deduped"`
	Authoritative bool   `json:"authoritative"`
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{contacts: make(map[string]*contactState)}
}

// ApplyUpdate merges a batch of streamed suggestions and returns how many
// were discarded as duplicates of already-recorded facts.
func (a *Accumulator) ApplyUpdate(suggestions []wire.Suggestion) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	dups := 0
	for _, s := range suggestions {
		a.received++
		if s.Validate() != nil {
			continue
		}
		if !a.addLocked(s) {
			dups++
		}
	}
	return dups
}

// addLocked inserts one suggestion, returning false when the contact already
// has the same fact. Caller holds mu.
func (a *Accumulator) addLocked(s wire.Suggestion) bool {
	contact, seen := a.contacts[s.ContactHint]
	if !seen {
		contact = &contactState{byKey: make(map[string]wire.Suggestion)}
		a.contacts[s.ContactHint] = contact
		a.order = append(a.order, s.ContactHint)
	}

	key := s.DedupKey()
	if _, dup := contact.byKey[key]; dup {
		a.deduped++
		return false
	}
	contact.byKey[key] = s
	contact.order = append(contact.order, key)
	return true
}

// AdoptAuthoritative replaces the accumulated state with the backend's
// end-of-session proposal. An empty proposal keeps the accumulated state as
// the fallback.
func (a *Accumulator) AdoptAuthoritative(proposal []wire.ContactProposal) {
	if len(proposal) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.order = nil
	a.contacts = make(map[string]*contactState)
	for _, p := range proposal {
		for _, s := range p.Suggestions {
			if s.ContactHint == "" {
				s.ContactHint = p.ContactHint
			}
			if s.Validate() != nil {
				continue
			}
			a.addLocked(s)
		}
	}
	a.authoritative = true
}

// Resolve removes one suggestion after the user accepted or discarded it in
// review. Returns false when the contact or suggestion is unknown. A contact
// whose last suggestion is resolved disappears from the proposal.
func (a *Accumulator) Resolve(contactHint, suggestionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	contact, ok := a.contacts[contactHint]
	if !ok {
		return false
	}

	for i, key := range contact.order {
		if contact.byKey[key].ID != suggestionID {
			continue
		}
		delete(contact.byKey, key)
		contact.order = append(contact.order[:i], contact.order[i+1:]...)

		if len(contact.order) == 0 {
			delete(a.contacts, contactHint)
			for j, hint := range a.order {
				if hint == contactHint {
					a.order = append(a.order[:j], a.order[j+1:]...)
					break
				}
			}
		}
		return true
	}
	return false
}

// Proposals returns the current proposal: contacts in first-mention order,
// suggestions in first-arrival order. The result is a deep copy and stable
// across calls on unchanged state.
func (a *Accumulator) Proposals() []wire.ContactProposal {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.order) == 0 {
		return nil
	}

	proposals := make([]wire.ContactProposal, 0, len(a.order))
	for _, hint := range a.order {
		contact := a.contacts[hint]
		suggestions := make([]wire.Suggestion, 0, len(contact.order))
		for _, key := range contact.order {
			suggestions = append(suggestions, contact.byKey[key])
		}
		proposals = append(proposals, wire.ContactProposal{
			ContactHint: hint,
			Suggestions: suggestions,
		})
	}
	return proposals
}

// GetStats returns current accumulation statistics.
func (a *Accumulator) GetStats() AccumulatorStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AccumulatorStats{
		Contacts:      len(a.order),
		Received:      a.received,
		Deduped:       a.deduped,
		Authoritative: a.authoritative,
	}
	for _, contact := range a.contacts {
		stats.Suggestions += len(contact.order)
	}
	return stats
}
