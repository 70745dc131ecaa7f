// catchup-stub-backend is a development stand-in for the catchup
// transcription service. It speaks the duplex session protocol on
// /v1/session (scripted interim/final transcripts and enrichment
// suggestions driven by received audio) and accepts fallback voice note
// uploads on /v1/voice-notes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

// Emission cadence in received audio chunks. With the client's default
// 100ms chunks this yields an interim roughly every 300ms and a final
// sentence every second.
const (
	chunksPerInterim = 3
	chunksPerFinal   = 10
)

// pcmBytesPerSecond assumes the client default format: 16kHz mono PCM16.
const pcmBytesPerSecond = 32000

// script is the canned conversation the stub "hears", one sentence per
// final transcript. It loops when exhausted.
var script = []struct {
	text       string
	confidence float64
}{
	{"Caught up with Dana Whitfield at the product offsite today.", 0.94},
	{"She moved to Meridian Labs in March and now leads their platform team.", 0.88},
	{"Her new office is in Denver so she is on mountain time now.", 0.72},
	{"We agreed to grab coffee when she visits in October.", 0.91},
	{"Also ran into Alex Moreau who just got back from parental leave.", 0.86},
}

// scriptSuggestions maps a script line index to the enrichment suggestions
// that line produces.
var scriptSuggestions = map[int][]wire.Suggestion{
	1: {
		{ContactHint: "Dana Whitfield", Kind: wire.SuggestionFieldUpdate, Field: "employer", Value: "Meridian Labs", Rationale: "moved to Meridian Labs in March"},
		{ContactHint: "Dana Whitfield", Kind: wire.SuggestionFieldUpdate, Field: "role", Value: "platform team lead"},
	},
	2: {
		{ContactHint: "Dana Whitfield", Kind: wire.SuggestionFieldUpdate, Field: "location", Value: "Denver"},
	},
	3: {
		{ContactHint: "Dana Whitfield", Kind: wire.SuggestionTag, Value: "coffee-in-october"},
	},
	4: {
		{ContactHint: "Alex Moreau", Kind: wire.SuggestionTag, Value: "back-from-leave"},
	},
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8780", "Listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	h := &handler{logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", h.handleSession)
	mux.HandleFunc("/v1/voice-notes", h.handleVoiceNotes)
	mux.HandleFunc("/healthz", h.handleHealthz)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info("Stub backend listening",
			slog.String("session_endpoint", "ws://"+*addr+"/v1/session"),
			slog.String("upload_endpoint", "http://"+*addr+"/v1/voice-notes"),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info("Stub backend stopped")
}

type handler struct {
	logger *slog.Logger
}

func (h *handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleVoiceNotes accepts a multipart fallback upload and acknowledges it
// with a receipt.
func (h *handler) handleVoiceNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	noteID := r.FormValue("note_id")
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Voice note uploaded",
		slog.String("note_id", noteID),
		slog.String("filename", header.Filename),
		slog.Int("audio_bytes", len(audio)),
		slog.String("duration", r.FormValue("duration")),
		slog.String("language", r.FormValue("language")),
		slog.Int("transcript_chars", len(r.FormValue("transcript"))),
	)

	if noteID == "" {
		noteID = uuid.NewString()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"noteId":   noteID,
		"storedAt": time.Now().UTC(),
	})
}

// handleSession upgrades to a WebSocket, performs the start_session
// handshake, and runs the scripted session loop.
func (h *handler) handleSession(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	s := &stubSession{conn: conn, logger: h.logger}
	if err := s.handshake(); err != nil {
		h.logger.Warn("Handshake failed", slog.String("error", err.Error()))
		return
	}
	s.run()
}

// stubSession holds one scripted session. All emission happens from the
// read loop, so the connection only ever has one writer.
type stubSession struct {
	conn   *websocket.Conn
	logger *slog.Logger

	sessionID   string
	audioChunks int
	audioBytes  int64
	scriptIdx   int
	finals      []string
	emitted     []wire.Suggestion
}

func (s *stubSession) handshake() error {
	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}
	if mt != websocket.TextMessage {
		s.send(&wire.ErrorMessage{Type: wire.TypeError, Error: "expected start_session before audio"})
		return errors.New("first frame was not text")
	}

	msg, err := wire.Decode(data)
	if err != nil {
		s.send(&wire.ErrorMessage{Type: wire.TypeError, Error: err.Error()})
		return err
	}
	start, ok := msg.(*wire.StartSession)
	if !ok {
		s.send(&wire.ErrorMessage{Type: wire.TypeError, Error: "expected start_session, got " + msg.MessageType()})
		return fmt.Errorf("unexpected first message %q", msg.MessageType())
	}

	s.sessionID = uuid.NewString()
	s.logger.Info("Session started",
		slog.String("session_id", s.sessionID),
		slog.String("language", start.LanguageCode),
		slog.Int("context_contacts", len(start.ContextContacts)),
	)

	s.send(&wire.SessionStarted{Type: wire.TypeSessionStarted, SessionID: s.sessionID})
	return nil
}

func (s *stubSession) run() {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Info("Session connection closed",
				slog.String("session_id", s.sessionID),
				slog.String("reason", err.Error()))
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			s.onAudio(len(data))

		case websocket.TextMessage:
			msg, err := wire.Decode(data)
			if err != nil {
				s.send(&wire.ErrorMessage{Type: wire.TypeError, Error: err.Error()})
				continue
			}
			switch msg.(type) {
			case *wire.PauseSession:
				s.logger.Info("Session paused", slog.String("session_id", s.sessionID))
			case *wire.ResumeSession:
				s.logger.Info("Session resumed", slog.String("session_id", s.sessionID))
			case *wire.EndSession:
				s.finalize()
				return
			default:
				s.send(&wire.ErrorMessage{Type: wire.TypeError, Error: "unexpected message " + msg.MessageType()})
			}
		}
	}
}

// onAudio advances the script. Every chunksPerInterim chunks a growing
// prefix of the current line goes out as an interim; every chunksPerFinal
// chunks the full line is finalized, its suggestions emitted, and the
// script moves on.
func (s *stubSession) onAudio(n int) {
	s.audioChunks++
	s.audioBytes += int64(n)

	line := script[s.scriptIdx%len(script)]

	if s.audioChunks%chunksPerFinal == 0 {
		s.send(&wire.FinalTranscript{
			Type:       wire.TypeFinalTranscript,
			Transcript: line.text,
			Confidence: line.confidence,
		})
		s.finals = append(s.finals, line.text)
		s.emitSuggestions(s.scriptIdx % len(script))
		s.scriptIdx++
		return
	}

	if s.audioChunks%chunksPerInterim == 0 {
		words := strings.Fields(line.text)
		k := len(words) * (s.audioChunks % chunksPerFinal) / chunksPerFinal
		if k < 1 {
			k = 1
		}
		s.send(&wire.InterimTranscript{
			Type:       wire.TypeInterimTranscript,
			Transcript: strings.Join(words[:k], " "),
			Confidence: line.confidence * 0.6,
		})
	}
}

func (s *stubSession) emitSuggestions(lineIdx int) {
	canned, ok := scriptSuggestions[lineIdx]
	if !ok {
		return
	}

	suggestions := make([]wire.Suggestion, 0, len(canned))
	for _, c := range canned {
		c.ID = uuid.NewString()
		suggestions = append(suggestions, c)
	}
	s.emitted = append(s.emitted, suggestions...)

	s.send(&wire.EnrichmentUpdate{Type: wire.TypeEnrichmentUpdate, Suggestions: suggestions})
}

// finalize answers end_session with the authoritative voice note and the
// grouped proposal, then lets the client close.
func (s *stubSession) finalize() {
	vn := &wire.VoiceNote{
		ID:              uuid.NewString(),
		Transcript:      strings.Join(s.finals, " "),
		DurationSeconds: float64(s.audioBytes) / pcmBytesPerSecond,
		CreatedAt:       time.Now().UTC(),
	}

	s.send(&wire.SessionFinalized{
		Type:      wire.TypeSessionFinalized,
		VoiceNote: vn,
		Proposal:  groupByContact(s.emitted),
	})

	s.logger.Info("Session finalized",
		slog.String("session_id", s.sessionID),
		slog.String("note_id", vn.ID),
		slog.Float64("duration_seconds", vn.DurationSeconds),
		slog.Int("final_fragments", len(s.finals)),
		slog.Int("suggestions", len(s.emitted)),
	)
}

// groupByContact buckets suggestions into per-contact proposals in
// first-seen order.
func groupByContact(suggestions []wire.Suggestion) []wire.ContactProposal {
	var proposals []wire.ContactProposal
	index := make(map[string]int)
	for _, sg := range suggestions {
		i, ok := index[sg.ContactHint]
		if !ok {
			i = len(proposals)
			index[sg.ContactHint] = i
			proposals = append(proposals, wire.ContactProposal{ContactHint: sg.ContactHint})
		}
		proposals[i].Suggestions = append(proposals[i].Suggestions, sg)
	}
	return proposals
}

func (s *stubSession) send(m wire.Message) {
	data, err := wire.Encode(m)
	if err != nil {
		s.logger.Error("Failed to encode frame", slog.String("error", err.Error()))
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("Failed to write frame",
			slog.String("type", m.MessageType()),
			slog.String("error", err.Error()))
	}
}
