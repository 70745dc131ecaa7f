package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/store"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/upload"
)

func NewRetryCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Upload locally saved notes to the persistence API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(deps)
		},
	}

	return cmd
}

func runRetry(deps *Dependencies) error {
	cfg := deps.Config
	logger := deps.Logger

	notes, err := store.New(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening note store: %w", err)
	}
	defer notes.Close()

	pending, err := notes.List()
	if err != nil {
		return fmt.Errorf("listing pending notes: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("No pending notes")
		return nil
	}

	uploader, err := upload.NewClient(upload.Config{
		Endpoint:   cfg.Upload.Endpoint,
		APIKey:     cfg.Session.APIKey,
		Timeout:    cfg.Upload.GetTimeoutDuration(),
		MaxRetries: cfg.Upload.MaxRetries,
	}, deps.Metrics, logger)
	if err != nil {
		return fmt.Errorf("initializing upload client: %w", err)
	}

	var failed int
	for _, n := range pending {
		if err := retryOne(deps, uploader, notes, n); err != nil {
			logger.Warn("Note upload failed",
				slog.String("note_id", n.ID),
				slog.String("error", err.Error()))
			failed++
			continue
		}
		fmt.Printf("Uploaded %s\n", n.ID)
	}

	uploaded := len(pending) - failed
	fmt.Printf("%d uploaded, %d still pending\n", uploaded, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d notes could not be uploaded", failed, len(pending))
	}
	return nil
}

func retryOne(deps *Dependencies, uploader *upload.Client, notes *store.Store, n store.PendingNote) error {
	audio, err := os.ReadFile(n.AudioPath)
	if err != nil {
		return fmt.Errorf("reading audio artifact: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		deps.Config.Upload.GetTimeoutDuration()+5*time.Second)
	defer cancel()

	if _, err := uploader.Upload(ctx, &upload.Request{
		NoteID:     n.ID,
		Transcript: n.Transcript,
		Audio:      audio,
		Duration:   n.Duration,
		CreatedAt:  n.CreatedAt,
		Language:   deps.Config.Session.LanguageCode,
	}); err != nil {
		return err
	}

	if err := notes.MarkUploaded(n.ID); err != nil {
		return fmt.Errorf("marking note uploaded: %w", err)
	}
	return nil
}
