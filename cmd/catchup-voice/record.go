package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/capture"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/config"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/indicator"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/level"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/monitor"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/recorder"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/session"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/store"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/tui"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/upload"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

type recordOptions struct {
	input          string
	demo           bool
	noTUI          bool
	copyTranscript bool
	duration       time.Duration
	contacts       []string
}

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var opts recordOptions

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a voice note",
		Long: "Records a voice note from a PCM input, streams it to the transcription\n" +
			"service, and prints the finished note. Input is 16-bit little-endian\n" +
			"mono PCM at the configured sample rate; pipe it in with --input '-',\n" +
			"read a file with --input FILE, or use --demo for a synthetic signal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(deps, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Raw PCM16 input file, '-' for stdin")
	cmd.Flags().BoolVar(&opts.demo, "demo", false, "Record the built-in demo signal instead of real input")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable the terminal UI and log events instead")
	cmd.Flags().BoolVar(&opts.copyTranscript, "copy", false, "Copy the final transcript to the clipboard")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop automatically after this long (0 = manual stop)")
	cmd.Flags().StringArrayVar(&opts.contacts, "contact", nil, "Contact name to pass as session context (repeatable)")

	return cmd
}

func runRecord(deps *Dependencies, opts recordOptions) error {
	cfg := deps.Config
	logger := deps.Logger

	source, err := newSource(opts.input, opts.demo, capture.Format{
		SampleRate: cfg.Capture.SampleRate,
		Channels:   cfg.Capture.Channels,
	})
	if err != nil {
		return err
	}

	notes, err := store.New(cfg.Store.DatabasePath)
	if err != nil {
		logger.Warn("Local note store unavailable, fallback saves disabled",
			slog.String("path", cfg.Store.DatabasePath),
			slog.String("error", err.Error()))
		notes = nil
	} else {
		defer notes.Close()
	}

	uploader, err := upload.NewClient(upload.Config{
		Endpoint:   cfg.Upload.Endpoint,
		APIKey:     cfg.Session.APIKey,
		Timeout:    cfg.Upload.GetTimeoutDuration(),
		MaxRetries: cfg.Upload.MaxRetries,
	}, deps.Metrics, logger)
	if err != nil {
		logger.Warn("Upload client unavailable, fallback uploads disabled",
			slog.String("error", err.Error()))
		uploader = nil
	}

	var (
		presenter indicator.Presenter
		tuiPres   *tui.Presenter
		fatal     *fatalNotifier
	)
	if opts.noTUI {
		fatal = newFatalNotifier(indicator.NewLog(logger))
		presenter = fatal
	} else {
		tuiPres = tui.NewPresenter()
		presenter = tuiPres
	}

	rec, err := recorder.New(recorderConfig(cfg, opts.contacts), recorder.Dependencies{
		Source:    source,
		Dialer:    session.NewWebSocketDialer(cfg.Session.APIKey),
		Presenter: presenter,
		Uploader:  uploader,
		Notes:     notes,
		Metrics:   deps.Metrics,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("initializing recorder: %w", err)
	}

	if cfg.Monitor.Enabled {
		mon := monitor.NewServer(cfg.Monitor, logger, deps.Metrics, deps.Registry, rec)
		if err := mon.Start(); err != nil {
			logger.Warn("Monitor endpoint failed to start", slog.String("error", err.Error()))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := mon.Stop(shutdownCtx); err != nil {
					logger.Warn("Monitor shutdown failed", slog.String("error", err.Error()))
				}
			}()
		}
	}

	var note *recorder.Note
	if opts.noTUI {
		note, err = runHeadless(logger, cfg, rec, fatal, opts.duration)
	} else {
		note, err = runWithUI(logger, cfg, rec, tuiPres, opts.duration)
	}
	if err != nil {
		return err
	}

	printNote(os.Stdout, note)

	if opts.copyTranscript && note.Transcript != "" {
		if err := clipboard.WriteAll(note.Transcript); err != nil {
			logger.Warn("Failed to copy transcript to clipboard", slog.String("error", err.Error()))
		} else {
			fmt.Fprintln(os.Stdout, "Transcript copied to clipboard")
		}
	}

	return nil
}

// runHeadless records until a signal, the duration limit, or a fatal
// recorder error, then stops and resolves the note.
func runHeadless(logger *slog.Logger, cfg *config.Config, rec *recorder.Recorder, fatal *fatalNotifier, duration time.Duration) (*recorder.Note, error) {
	if err := rec.Start(context.Background()); err != nil {
		return nil, err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case sig := <-sigChan:
		logger.Info("Received stop signal", slog.String("signal", sig.String()))
	case <-timeout:
		logger.Info("Recording duration reached", slog.Duration("duration", duration))
	case <-fatal.done:
		// The error was already surfaced; resolve what was captured.
	}

	stopCtx, cancel := stopContext(cfg)
	defer cancel()
	return rec.Stop(stopCtx)
}

// runWithUI runs the terminal UI until the user stops the recording (or a
// fatal error quits it), then stops and resolves the note.
func runWithUI(logger *slog.Logger, cfg *config.Config, rec *recorder.Recorder, pres *tui.Presenter, duration time.Duration) (*recorder.Note, error) {
	prog := tea.NewProgram(tui.New(rec), tea.WithAltScreen())
	pres.Attach(prog)

	startErr := make(chan error, 1)
	go func() {
		err := rec.Start(context.Background())
		if err != nil {
			// Show the failure and quit the UI; the error is also
			// returned below once Run unwinds the terminal.
			pres.SurfaceError(err.Error(), true)
		}
		startErr <- err
	}()

	if duration > 0 {
		timer := time.AfterFunc(duration, prog.Quit)
		defer timer.Stop()
	}

	if _, err := prog.Run(); err != nil {
		logger.Error("Terminal UI failed", slog.String("error", err.Error()))
	}

	if err := <-startErr; err != nil {
		return nil, err
	}

	fmt.Fprintln(os.Stderr, "Finalizing note...")
	stopCtx, cancel := stopContext(cfg)
	defer cancel()
	return rec.Stop(stopCtx)
}

// stopContext bounds note resolution: session finalization plus, on the
// fallback path, one full upload cycle.
func stopContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Session.GetStopTimeoutDuration() + cfg.Upload.GetTimeoutDuration() + 5*time.Second
	return context.WithTimeout(context.Background(), timeout)
}

// recorderConfig maps file configuration onto the recorder's component
// settings.
func recorderConfig(cfg *config.Config, contacts []string) recorder.Config {
	refs := make([]wire.ContactRef, 0, len(contacts))
	for _, name := range contacts {
		refs = append(refs, wire.ContactRef{ID: uuid.NewString(), Name: name})
	}

	return recorder.Config{
		Capture: capture.Config{
			Format: capture.Format{
				SampleRate: cfg.Capture.SampleRate,
				Channels:   cfg.Capture.Channels,
			},
			ChunkInterval: cfg.Capture.GetChunkDuration(),
		},
		Level: level.Config{
			SilenceThreshold: cfg.Level.SilenceThreshold,
			LowThreshold:     cfg.Level.LowThreshold,
			ClipThreshold:    cfg.Level.ClippingThreshold,
			SilenceHold:      cfg.Level.GetSilenceDuration(),
			Throttle:         cfg.Level.GetAlertInterval(),
		},
		Session: session.Config{
			Endpoint:         cfg.Session.Endpoint,
			APIKey:           cfg.Session.APIKey,
			LanguageCode:     cfg.Session.LanguageCode,
			ContextContacts:  refs,
			HandshakeTimeout: cfg.Session.GetHandshakeTimeoutDuration(),
			StopTimeout:      cfg.Session.GetStopTimeoutDuration(),
			InitialBackoff:   cfg.Session.GetInitialBackoffDuration(),
			MaxBackoff:       cfg.Session.GetMaxBackoffDuration(),
			MaxAttempts:      cfg.Session.MaxAttempts,
			BufferLimit:      cfg.Session.GetBufferLimitBytes(),
		},
		NotesDir: cfg.Store.NotesDir,
	}
}

// fatalNotifier lets the headless run loop finish when the recorder
// surfaces a fatal error (device loss, input EOF).
type fatalNotifier struct {
	indicator.Presenter
	once sync.Once
	done chan struct{}
}

func newFatalNotifier(p indicator.Presenter) *fatalNotifier {
	return &fatalNotifier{Presenter: p, done: make(chan struct{})}
}

func (f *fatalNotifier) SurfaceError(message string, fatal bool) {
	f.Presenter.SurfaceError(message, fatal)
	if fatal {
		f.once.Do(func() { close(f.done) })
	}
}

func printNote(w io.Writer, note *recorder.Note) {
	fmt.Fprintf(w, "\nNote %s\n", note.ID)
	fmt.Fprintf(w, "  created:  %s\n", note.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  duration: %s\n", note.Duration.Round(time.Second))

	switch note.Source {
	case recorder.SourceSession:
		fmt.Fprintf(w, "  status:   finalized by the transcription service\n")
	case recorder.SourceUploaded:
		fmt.Fprintf(w, "  status:   uploaded to the persistence API\n")
	case recorder.SourceLocal:
		fmt.Fprintf(w, "  status:   saved locally (%s); run 'catchup-voice retry' when back online\n", note.AudioPath)
	default:
		fmt.Fprintf(w, "  status:   not persisted\n")
	}

	if note.Transcript != "" {
		fmt.Fprintln(w, "  transcript:")
		for _, line := range strings.Split(note.Transcript, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	} else {
		fmt.Fprintln(w, "  transcript: (empty)")
	}

	if len(note.Proposals) > 0 {
		fmt.Fprintln(w, "  suggestions:")
		for _, p := range note.Proposals {
			for _, s := range p.Suggestions {
				switch s.Kind {
				case wire.SuggestionTag, wire.SuggestionGroup:
					fmt.Fprintf(w, "    %s: %s %q\n", p.ContactHint, s.Kind, s.Value)
				default:
					fmt.Fprintf(w, "    %s: %s = %q\n", p.ContactHint, s.Field, s.Value)
				}
			}
		}
	}
}
