package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/capture"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/enrich"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/indicator"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/level"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/metrics"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/session"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/store"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/transcript"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/upload"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

var (
	ErrAlreadyStarted = errors.New("recorder already started")
	ErrNotStarted     = errors.New("recorder was never started")
)

// NoteSource says which path produced the finished note.
type NoteSource string

const (
	// SourceSession means the backend finalized the note; its transcript
	// and proposals are authoritative.
	SourceSession NoteSource = "session"
	// SourceUploaded means the locally assembled note was persisted via
	// the fallback upload.
	SourceUploaded NoteSource = "uploaded"
	// SourceLocal means the note was written to the notes directory and a
	// pending row saved for manual retry.
	SourceLocal NoteSource = "local"
	// SourceUnsaved means no persistence path was available; the note
	// exists only in the returned value.
	SourceUnsaved NoteSource = "unsaved"
)

// Note is the finished voice note returned by Stop.
type Note struct {
	ID         string                 `json:"id"`
	Transcript string                 `json:"transcript"`
	Duration   time.Duration          `json:"duration"`
	CreatedAt  time.Time              `json:"created_at"`
	Source     NoteSource             `json:"source"`
	Proposals  []wire.ContactProposal `json:"proposals,omitempty"`
	AudioPath  string                 `json:"audio_path,omitempty"`
}

// Config collects the per-component settings for one recording.
type Config struct {
	Capture  capture.Config
	Level    level.Config
	Session  session.Config
	NotesDir string
}

// Dependencies carries the injected collaborators. Source and Metrics are
// required; the rest default to safe no-ops (Nop presenter, production
// dialer, no fallback upload, no local store).
type Dependencies struct {
	Source    capture.Source
	Dialer    session.Dialer
	Presenter indicator.Presenter
	Uploader  *upload.Client
	Notes     *store.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Snapshot aggregates component statistics for the status endpoint.
type Snapshot struct {
	StartedAt  time.Time                 `json:"started_at"`
	Stopped    bool                      `json:"stopped"`
	Capture    capture.CaptureStats      `json:"capture"`
	Session    session.ChannelStats      `json:"session"`
	Transcript transcript.AssemblerStats `json:"transcript"`
	Enrichment enrich.AccumulatorStats   `json:"enrichment"`
}

// Recorder drives one recording from start to finished note. It is not
// reusable; create a new Recorder per note.
type Recorder struct {
	cfg       Config
	capture   *capture.Manager
	channel   *session.Channel
	assembler *transcript.Assembler
	enricher  *enrich.Accumulator
	presenter indicator.Presenter
	uploader  *upload.Client
	notes     *store.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger

	started   bool
	stopped   bool
	startedAt time.Time
	note      *Note
	stopErr   error
	cancel    context.CancelFunc

	captureWG sync.WaitGroup
	sessionWG sync.WaitGroup

	mu sync.Mutex
}

// sinks adapts the recorder to the session channel's sink interfaces,
// forwarding payloads to the assembler and accumulator and pushing the
// refreshed documents to the presenter. Calls arrive on the channel's read
// goroutine.
type sinks struct {
	r *Recorder
}

func (s sinks) AddInterim(text string, confidence float64) {
	s.r.assembler.AddInterim(text, confidence)
	s.r.presenter.TranscriptUpdated(s.r.assembler.Render())
}

func (s sinks) Finalize(text string, confidence float64) {
	s.r.assembler.Finalize(text, confidence)
	s.r.presenter.TranscriptUpdated(s.r.assembler.Render())
}

func (s sinks) ApplyUpdate(suggestions []wire.Suggestion) {
	deduped := s.r.enricher.ApplyUpdate(suggestions)
	s.r.metrics.RecordSuggestions(len(suggestions), deduped)
	s.r.presenter.ProposalsUpdated(s.r.enricher.Proposals())
}

func (s sinks) AdoptAuthoritative(proposal []wire.ContactProposal) {
	s.r.enricher.AdoptAuthoritative(proposal)
	s.r.presenter.ProposalsUpdated(s.r.enricher.Proposals())
}

// New wires a recorder from explicit dependencies.
func New(cfg Config, deps Dependencies) (*Recorder, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("capture source must not be nil")
	}
	if deps.Metrics == nil {
		return nil, fmt.Errorf("metrics must not be nil")
	}
	if deps.Presenter == nil {
		deps.Presenter = indicator.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	monitor, err := level.NewMonitor(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid level config: %w", err)
	}

	mgr, err := capture.NewManager(cfg.Capture, deps.Source, monitor, deps.Logger)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		cfg:       cfg,
		capture:   mgr,
		assembler: transcript.NewAssembler(),
		enricher:  enrich.NewAccumulator(),
		presenter: deps.Presenter,
		uploader:  deps.Uploader,
		notes:     deps.Notes,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}

	channel, err := session.New(cfg.Session, sinks{r}, sinks{r}, deps.Dialer, deps.Metrics, deps.Logger)
	if err != nil {
		return nil, err
	}
	r.channel = channel

	return r, nil
}

// Start begins capturing immediately and connects the session concurrently;
// chunks produced before the handshake ack are buffered by the channel.
// Device and permission failures abort the start and are returned to the
// caller.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.startedAt = time.Now()
	r.mu.Unlock()

	if err := r.capture.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.presenter.RecordingStarted()

	r.captureWG.Add(1)
	go r.pumpCapture()

	r.sessionWG.Add(1)
	go r.pumpSession()

	r.sessionWG.Add(1)
	go r.connect(runCtx)

	return nil
}

// connect establishes the session. A failed handshake is retried once after
// the initial backoff; after that the channel stays disconnected, chunks
// keep buffering, and the stop path falls back to upload or local save.
func (r *Recorder) connect(ctx context.Context) {
	defer r.sessionWG.Done()

	err := r.channel.Connect(ctx)
	if err == nil || errors.Is(err, session.ErrChannelStopped) || errors.Is(err, context.Canceled) {
		return
	}

	r.logger.Warn("Session connect failed, retrying once", slog.String("error", err.Error()))
	select {
	case <-time.After(r.cfg.Session.InitialBackoff):
	case <-ctx.Done():
		return
	}

	err = r.channel.Connect(ctx)
	if err == nil || errors.Is(err, session.ErrChannelStopped) || errors.Is(err, context.Canceled) {
		return
	}

	r.logger.Error("Session unavailable, recording continues locally",
		slog.String("error", err.Error()))
	r.presenter.SurfaceError("transcription service unreachable; audio is kept locally", false)
}

// pumpCapture forwards capture events: chunks to the session, levels and
// alerts to the presenter. It exits when capture stops and its event stream
// closes.
func (r *Recorder) pumpCapture() {
	defer r.captureWG.Done()

	for ev := range r.capture.Events() {
		switch ev := ev.(type) {
		case capture.ChunkEvent:
			r.metrics.RecordChunkCaptured(len(ev.Data))
			r.channel.Send(session.Chunk{Seq: ev.Seq, Data: ev.Data, Captured: ev.Captured})
		case capture.LevelEvent:
			r.presenter.LevelChanged(ev.Measurement)
		case capture.AlertEvent:
			r.metrics.RecordLevelAlert(ev.Alert.Kind.String())
			r.presenter.Warning(ev.Alert)
		case capture.ErrorEvent:
			r.presenter.SurfaceError(ev.Err.Error(), true)
		}
	}
}

// pumpSession forwards session advisories to the presenter. Transcript and
// enrichment payloads never pass through here; they go to the sinks.
func (r *Recorder) pumpSession() {
	defer r.sessionWG.Done()

	for ev := range r.channel.Events() {
		switch ev := ev.(type) {
		case session.StateChangedEvent:
			r.presenter.ConnectionChanged(ev.State, ev.Attempt)
		case session.BufferOverflowEvent:
			r.presenter.SurfaceError(
				fmt.Sprintf("audio chunk of %d bytes exceeds the %d byte buffer; buffered audio dropped, recording continues", ev.ChunkBytes, ev.Limit),
				false)
		case session.ReconnectExhaustedEvent:
			r.presenter.SurfaceError(
				fmt.Sprintf("gave up reconnecting after %d attempts; recording continues locally", ev.Attempts),
				false)
		case session.StatusEvent:
			r.logger.Debug("Server connection status",
				slog.String("status", ev.Status),
				slog.Int("attempt", ev.Attempt))
		case session.ServerErrorEvent:
			r.presenter.SurfaceError(ev.Message, false)
		}
	}
}

// Pause suspends capture, notifies the server, and inserts a transcript
// pause marker.
func (r *Recorder) Pause() error {
	if err := r.capture.Pause(); err != nil {
		return err
	}
	r.channel.Pause()
	r.assembler.InsertPauseMarker()
	r.presenter.TranscriptUpdated(r.assembler.Render())
	r.presenter.RecordingPaused()
	return nil
}

// Resume continues capture after a pause.
func (r *Recorder) Resume() error {
	if err := r.capture.Resume(); err != nil {
		return err
	}
	r.channel.Resume()
	r.presenter.RecordingResumed()
	return nil
}

// Stop finishes the recording and resolves the note. Resolution order: the
// backend's finalized voice note when one arrived; otherwise the locally
// assembled transcript uploaded through the fallback client; otherwise a
// local save to the notes directory plus a pending row for manual retry.
// Stop is idempotent: later calls return the first resolution.
func (r *Recorder) Stop(ctx context.Context) (*Note, error) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil, ErrNotStarted
	}
	if r.stopped {
		note, stopErr := r.note, r.stopErr
		r.mu.Unlock()
		return note, stopErr
	}
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	artifact, err := r.capture.Stop()
	if err != nil {
		r.mu.Lock()
		r.stopErr = err
		r.mu.Unlock()
		return nil, err
	}

	// The capture pump drains the flushed final chunk into the channel
	// before the session says goodbye.
	r.captureWG.Wait()
	r.presenter.RecordingStopped()

	fin, err := r.channel.Stop(ctx)
	if err != nil {
		r.logger.Warn("Session stop failed", slog.String("error", err.Error()))
	}
	r.sessionWG.Wait()

	r.metrics.ObserveSessionDuration(artifact.Duration.Seconds())

	note := r.resolve(ctx, artifact, fin)
	r.mu.Lock()
	r.note = note
	r.mu.Unlock()

	r.logger.Info("Voice note finished",
		slog.String("note_id", note.ID),
		slog.String("source", string(note.Source)),
		slog.Duration("duration", note.Duration),
		slog.Int("proposal_contacts", len(note.Proposals)))

	return note, nil
}

// resolve picks the note content and persistence path.
func (r *Recorder) resolve(ctx context.Context, artifact *capture.Artifact, fin *wire.SessionFinalized) *Note {
	note := &Note{
		ID:         artifact.ID,
		Transcript: r.assembler.FullTranscript(),
		Duration:   artifact.Duration,
		CreatedAt:  artifact.CapturedAt,
		Proposals:  r.enricher.Proposals(),
	}

	if fin != nil && fin.VoiceNote != nil {
		vn := fin.VoiceNote
		if vn.ID != "" {
			note.ID = vn.ID
		}
		if vn.Transcript != "" {
			note.Transcript = vn.Transcript
		}
		if vn.DurationSeconds > 0 {
			note.Duration = time.Duration(vn.DurationSeconds * float64(time.Second))
		}
		if !vn.CreatedAt.IsZero() {
			note.CreatedAt = vn.CreatedAt
		}
		note.Source = SourceSession
		return note
	}

	if len(artifact.Data) == 0 {
		note.Source = SourceUnsaved
		return note
	}

	if r.uploader != nil {
		receipt, err := r.uploader.Upload(ctx, &upload.Request{
			NoteID:     note.ID,
			Transcript: note.Transcript,
			Audio:      artifact.Data,
			Duration:   note.Duration,
			CreatedAt:  note.CreatedAt,
			Language:   r.cfg.Session.LanguageCode,
		})
		if err == nil {
			if receipt.NoteID != "" {
				note.ID = receipt.NoteID
			}
			note.Source = SourceUploaded
			return note
		}
		r.logger.Warn("Fallback upload failed", slog.String("error", err.Error()))
	}

	if r.notes != nil {
		path, err := r.saveLocally(note, artifact.Data)
		if err == nil {
			note.Source = SourceLocal
			note.AudioPath = path
			r.presenter.SurfaceError("could not reach the transcription service; note saved locally for manual retry", false)
			return note
		}
		r.logger.Error("Local save failed", slog.String("error", err.Error()))
		r.presenter.SurfaceError("failed to save note locally: "+err.Error(), false)
	}

	note.Source = SourceUnsaved
	return note
}

// saveLocally writes the WAV artifact into the notes directory and records
// a pending row.
func (r *Recorder) saveLocally(note *Note, audio []byte) (string, error) {
	dir := r.cfg.NotesDir
	if dir == "" {
		dir = "notes"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create notes dir: %w", err)
	}

	path := filepath.Join(dir, note.ID+".wav")
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}

	if err := r.notes.Save(&store.PendingNote{
		ID:         note.ID,
		CreatedAt:  note.CreatedAt,
		Duration:   note.Duration,
		Transcript: note.Transcript,
		AudioPath:  path,
	}); err != nil {
		return "", err
	}

	if count, err := r.notes.CountPending(); err == nil {
		r.metrics.SetNotesPending(count)
	}

	r.logger.Info("Voice note saved locally",
		slog.String("note_id", note.ID),
		slog.String("audio_path", path))
	return path, nil
}

// Transcript returns the current rendered document.
func (r *Recorder) Transcript() []transcript.Fragment {
	return r.assembler.Render()
}

// Proposals returns the current enrichment proposals.
func (r *Recorder) Proposals() []wire.ContactProposal {
	return r.enricher.Proposals()
}

// Snapshot returns aggregated component statistics.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	startedAt := r.startedAt
	stopped := r.stopped
	r.mu.Unlock()

	return Snapshot{
		StartedAt:  startedAt,
		Stopped:    stopped,
		Capture:    r.capture.GetStats(),
		Session:    r.channel.GetStats(),
		Transcript: r.assembler.GetStats(),
		Enrichment: r.enricher.GetStats(),
	}
}
