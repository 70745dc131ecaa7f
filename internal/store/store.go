package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no note with the given ID exists.
var ErrNotFound = errors.New("note not found")

// Note statuses.
const (
	StatusPending  = "pending"
	StatusUploaded = "uploaded"
)

// PendingNote is a voice note waiting for upload to the persistence API.
type PendingNote struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	Duration   time.Duration `json:"duration"`
	Transcript string        `json:"transcript"`
	AudioPath  string        `json:"audio_path"`
	Status     string        `json:"status"`
}

// Store wraps the local SQLite database of pending notes.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the database at dbPath and applies the
// schema.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_notes (
		id          TEXT PRIMARY KEY,
		created_at  DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		transcript  TEXT NOT NULL DEFAULT '',
		audio_path  TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_pending_notes_status ON pending_notes(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts a new pending note row. The caller owns the audio file at
// note.AudioPath; the store only records its location.
func (s *Store) Save(note *PendingNote) error {
	if note == nil {
		return fmt.Errorf("note must not be nil")
	}
	if note.ID == "" {
		return fmt.Errorf("note ID cannot be empty")
	}
	if note.Status == "" {
		note.Status = StatusPending
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		"INSERT INTO pending_notes (id, created_at, duration_ms, transcript, audio_path, status) VALUES (?, ?, ?, ?, ?, ?)",
		note.ID, note.CreatedAt.UTC(), note.Duration.Milliseconds(), note.Transcript, note.AudioPath, note.Status,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// List returns notes still waiting for upload, oldest first.
func (s *Store) List() ([]PendingNote, error) {
	rows, err := s.db.Query(
		"SELECT id, created_at, duration_ms, transcript, audio_path, status FROM pending_notes WHERE status = ? ORDER BY created_at",
		StatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []PendingNote
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// Get fetches one note by ID regardless of status.
func (s *Store) Get(id string) (*PendingNote, error) {
	row := s.db.QueryRow(
		"SELECT id, created_at, duration_ms, transcript, audio_path, status FROM pending_notes WHERE id = ?",
		id,
	)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// MarkUploaded flips a note to the uploaded status after a successful retry.
func (s *Store) MarkUploaded(id string) error {
	res, err := s.db.Exec(
		"UPDATE pending_notes SET status = ? WHERE id = ?",
		StatusUploaded, id,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a note row. The audio file is the caller's to clean up.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM pending_notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPending returns the number of notes still awaiting upload.
func (s *Store) CountPending() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM pending_notes WHERE status = ?", StatusPending).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (PendingNote, error) {
	var note PendingNote
	var durationMS int64
	if err := row.Scan(&note.ID, &note.CreatedAt, &durationMS, &note.Transcript, &note.AudioPath, &note.Status); err != nil {
		return PendingNote{}, err
	}
	note.Duration = time.Duration(durationMS) * time.Millisecond
	return note, nil
}
