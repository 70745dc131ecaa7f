package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message type tags carried in the "type" field of every text frame.
const (
	// Client -> server
	TypeStartSession  = "start_session"
	TypePauseSession  = "pause_session"
	TypeResumeSession = "resume_session"
	TypeEndSession    = "end_session"

	// Server -> client
	TypeSessionStarted    = "session_started"
	TypeInterimTranscript = "interim_transcript"
	TypeFinalTranscript   = "final_transcript"
	TypeEnrichmentUpdate  = "enrichment_update"
	TypeConnectionStatus  = "connection_status"
	TypeError             = "error"
	TypeSessionFinalized  = "session_finalized"
)

// Suggestion kinds produced by the enrichment service.
const (
	SuggestionFieldUpdate = "field_update"
	SuggestionTag         = "tag"
	SuggestionGroup       = "group"
)

// Message is implemented by every payload that travels as a JSON text frame.
// MessageType returns the frame's type tag.
type Message interface {
	MessageType() string
}

// ContactRef identifies a contact passed as session context.
type ContactRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// StartSession opens a transcription session. It must be the first text
// frame on a fresh connection; audio frames sent before the server's
// SessionStarted ack are undefined behavior.
type StartSession struct {
	Type            string       `json:"type"`
	LanguageCode    string       `json:"languageCode"`
	ContextContacts []ContactRef `json:"contextContacts,omitempty"`
}

// PauseSession marks a capture pause so the backend can segment the
// transcript.
type PauseSession struct {
	Type string `json:"type"`
}

// ResumeSession marks the end of a capture pause.
type ResumeSession struct {
	Type string `json:"type"`
}

// EndSession asks the server to finalize the session. The server answers
// with SessionFinalized.
type EndSession struct {
	Type            string       `json:"type"`
	ContextContacts []ContactRef `json:"contextContacts,omitempty"`
}

// SessionStarted acknowledges StartSession and completes the handshake.
type SessionStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// InterimTranscript carries a provisional transcript fragment. Each interim
// supersedes the previous one until a FinalTranscript arrives.
type InterimTranscript struct {
	Type       string  `json:"type"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// FinalTranscript carries a committed transcript fragment.
type FinalTranscript struct {
	Type       string  `json:"type"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Suggestion is a single enrichment fact extracted from the conversation.
type Suggestion struct {
	ID          string `json:"id"`
	ContactHint string `json:"contactHint"`
	Kind        string `json:"kind"`
	Field       string `json:"field,omitempty"`
	Value       string `json:"value"`
	Rationale   string `json:"rationale,omitempty"`
}

// EnrichmentUpdate carries incremental suggestions for the live session.
type EnrichmentUpdate struct {
	Type        string       `json:"type"`
	Suggestions []Suggestion `json:"suggestions"`
}

// ConnectionStatus reports server-side connection health.
type ConnectionStatus struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Attempt int    `json:"attempt,omitempty"`
}

// ErrorMessage carries a fatal or transient server-side error description.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// VoiceNote is the server's authoritative record of a finished session.
type VoiceNote struct {
	ID              string    `json:"id"`
	Transcript      string    `json:"transcript"`
	DurationSeconds float64   `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ContactProposal groups suggestions for one (possibly unresolved) contact.
type ContactProposal struct {
	ContactHint string       `json:"contactHint"`
	Suggestions []Suggestion `json:"suggestions"`
}

// SessionFinalized closes the session with the authoritative voice note and
// enrichment proposal. An empty proposal means the server had nothing beyond
// what was already streamed.
type SessionFinalized struct {
	Type      string            `json:"type"`
	VoiceNote *VoiceNote        `json:"voiceNote,omitempty"`
	Proposal  []ContactProposal `json:"proposal,omitempty"`
}

func (m *StartSession) MessageType() string      { return TypeStartSession }
func (m *PauseSession) MessageType() string      { return TypePauseSession }
func (m *ResumeSession) MessageType() string     { return TypeResumeSession }
func (m *EndSession) MessageType() string        { return TypeEndSession }
func (m *SessionStarted) MessageType() string    { return TypeSessionStarted }
func (m *InterimTranscript) MessageType() string { return TypeInterimTranscript }
func (m *FinalTranscript) MessageType() string   { return TypeFinalTranscript }
func (m *EnrichmentUpdate) MessageType() string  { return TypeEnrichmentUpdate }
func (m *ConnectionStatus) MessageType() string  { return TypeConnectionStatus }
func (m *ErrorMessage) MessageType() string      { return TypeError }
func (m *SessionFinalized) MessageType() string  { return TypeSessionFinalized }

// NewStartSession builds a StartSession frame with the type tag set.
func NewStartSession(languageCode string, contacts []ContactRef) *StartSession {
	return &StartSession{Type: TypeStartSession, LanguageCode: languageCode, ContextContacts: contacts}
}

// NewPauseSession builds a PauseSession frame.
func NewPauseSession() *PauseSession {
	return &PauseSession{Type: TypePauseSession}
}

// NewResumeSession builds a ResumeSession frame.
func NewResumeSession() *ResumeSession {
	return &ResumeSession{Type: TypeResumeSession}
}

// NewEndSession builds an EndSession frame.
func NewEndSession(contacts []ContactRef) *EndSession {
	return &EndSession{Type: TypeEndSession, ContextContacts: contacts}
}

// envelope is used to peek at the type tag before full decoding.
type envelope struct {
	Type string `json:"type"`
}

// Encode serializes a message to a JSON text frame.
func Encode(m Message) ([]byte, error) {
	if m.MessageType() == "" {
		return nil, fmt.Errorf("message has no type tag")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.MessageType(), err)
	}
	return data, nil
}

// Decode parses a JSON text frame into its concrete message type.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode frame envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case TypeStartSession:
		msg = &StartSession{}
	case TypePauseSession:
		msg = &PauseSession{}
	case TypeResumeSession:
		msg = &ResumeSession{}
	case TypeEndSession:
		msg = &EndSession{}
	case TypeSessionStarted:
		msg = &SessionStarted{}
	case TypeInterimTranscript:
		msg = &InterimTranscript{}
	case TypeFinalTranscript:
		msg = &FinalTranscript{}
	case TypeEnrichmentUpdate:
		msg = &EnrichmentUpdate{}
	case TypeConnectionStatus:
		msg = &ConnectionStatus{}
	case TypeError:
		msg = &ErrorMessage{}
	case TypeSessionFinalized:
		msg = &SessionFinalized{}
	case "":
		return nil, fmt.Errorf("frame missing type tag")
	default:
		return nil, fmt.Errorf("unknown message type: %q", env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
	}
	if err := Validate(msg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", env.Type, err)
	}
	return msg, nil
}

// Validate checks message-specific field constraints.
func Validate(m Message) error {
	switch v := m.(type) {
	case *StartSession:
		if v.LanguageCode == "" {
			return fmt.Errorf("languageCode must not be empty")
		}
	case *SessionStarted:
		if v.SessionID == "" {
			return fmt.Errorf("sessionId must not be empty")
		}
	case *InterimTranscript:
		return validateConfidence(v.Confidence)
	case *FinalTranscript:
		return validateConfidence(v.Confidence)
	case *EnrichmentUpdate:
		for i, s := range v.Suggestions {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("suggestion %d: %w", i, err)
			}
		}
	case *SessionFinalized:
		for i, p := range v.Proposal {
			for j, s := range p.Suggestions {
				if err := s.Validate(); err != nil {
					return fmt.Errorf("proposal %d suggestion %d: %w", i, j, err)
				}
			}
		}
	}
	return nil
}

func validateConfidence(c float64) error {
	if c < 0 || c > 1 {
		return fmt.Errorf("confidence out of range: %v (expected 0..1)", c)
	}
	return nil
}

// Validate checks a suggestion's required fields and kind.
func (s Suggestion) Validate() error {
	if !IsValidSuggestionKind(s.Kind) {
		return fmt.Errorf("invalid suggestion kind: %q", s.Kind)
	}
	if s.Value == "" {
		return fmt.Errorf("suggestion value must not be empty")
	}
	if s.Kind == SuggestionFieldUpdate && s.Field == "" {
		return fmt.Errorf("field_update suggestion missing field name")
	}
	return nil
}

// IsValidSuggestionKind checks if the suggestion kind is known.
func IsValidSuggestionKind(kind string) bool {
	return kind == SuggestionFieldUpdate || kind == SuggestionTag || kind == SuggestionGroup
}

// DedupKey returns the identity used to deduplicate suggestions within one
// contact proposal. Two suggestions with the same key describe the same fact.
func (s Suggestion) DedupKey() string {
	return s.Kind + "\x00" + s.Field + "\x00" + s.Value
}

// String returns a human-readable representation of the session ack.
func (m *SessionStarted) String() string {
	return fmt.Sprintf("SessionStarted{SessionID:%s}", m.SessionID)
}

// String returns a human-readable representation of an interim fragment.
func (m *InterimTranscript) String() string {
	return fmt.Sprintf("InterimTranscript{Len:%d, Confidence:%.2f}", len(m.Transcript), m.Confidence)
}

// String returns a human-readable representation of a final fragment.
func (m *FinalTranscript) String() string {
	return fmt.Sprintf("FinalTranscript{Len:%d, Confidence:%.2f}", len(m.Transcript), m.Confidence)
}

// String returns a human-readable representation of an enrichment update.
func (m *EnrichmentUpdate) String() string {
	return fmt.Sprintf("EnrichmentUpdate{Suggestions:%d}", len(m.Suggestions))
}

// String returns a human-readable representation of the finalized session.
func (m *SessionFinalized) String() string {
	noteID := "<none>"
	if m.VoiceNote != nil {
		noteID = m.VoiceNote.ID
	}
	return fmt.Sprintf("SessionFinalized{VoiceNote:%s, Proposals:%d}", noteID, len(m.Proposal))
}
