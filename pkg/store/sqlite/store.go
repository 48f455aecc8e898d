// Package sqlite provides a SQLite-backed transcript and preference store
// built on the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/boardroom/internal/backend"
)

var (
	_ backend.Preferences      = (*Store)(nil)
	_ backend.Transcripts      = (*Store)(nil)
	_ backend.TranscriptLister = (*Store)(nil)
	_ backend.Pinger           = (*Store)(nil)
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// timeLayout is fixed-width so that timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    meeting_id  TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    timestamp   TEXT    NOT NULL,
    speaker     TEXT    NOT NULL DEFAULT 'Unknown'
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_meeting_timestamp
    ON transcriptions (meeting_id, timestamp);

CREATE TABLE IF NOT EXISTS user_preferences (
    user_id                 TEXT PRIMARY KEY,
    transcription_provider  TEXT,
    updated_at              TEXT NOT NULL
);
`

// Store persists transcripts and preferences in a single SQLite file. It is
// safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the database at path and applies the
// schema. Parent directories are created.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite store: path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite store: apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping implements [backend.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite store: ping: %w", err)
	}
	return nil
}

// SaveTranscription implements [backend.Transcripts].
func (s *Store) SaveTranscription(ctx context.Context, t backend.Transcription) error {
	speaker := t.Speaker
	if speaker == "" {
		speaker = backend.SpeakerUnknown
	}
	const q = `INSERT INTO transcriptions (meeting_id, content, timestamp, speaker) VALUES (?, ?, ?, ?)`
	err := s.execWithRetry(ctx, q, t.MeetingID, t.Content, t.Timestamp.UTC().Format(timeLayout), speaker)
	if err != nil {
		return fmt.Errorf("sqlite store: save transcription: %w", err)
	}
	return nil
}

// ListTranscriptions implements [backend.TranscriptLister].
func (s *Store) ListTranscriptions(ctx context.Context, meetingID string) ([]backend.Transcription, error) {
	const q = `
		SELECT id, meeting_id, content, timestamp, speaker
		FROM   transcriptions
		WHERE  meeting_id = ?
		ORDER  BY timestamp, id`
	rows, err := s.db.QueryContext(ctx, q, meetingID)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list transcriptions: %w", err)
	}
	defer rows.Close()

	out := []backend.Transcription{}
	for rows.Next() {
		var (
			id int64
			t  backend.Transcription
			ts string
		)
		if err := rows.Scan(&id, &t.MeetingID, &t.Content, &ts, &t.Speaker); err != nil {
			return nil, fmt.Errorf("sqlite store: scan transcription: %w", err)
		}
		t.ID = fmt.Sprint(id)
		if t.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("sqlite store: parse timestamp %q: %w", ts, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list transcriptions: %w", err)
	}
	return out, nil
}

// TranscriptionPreference implements [backend.Preferences]. A user with no
// row reports "".
func (s *Store) TranscriptionPreference(ctx context.Context, userID string) (string, error) {
	const q = `SELECT transcription_provider FROM user_preferences WHERE user_id = ?`
	var provider sql.NullString
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&provider)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite store: transcription preference: %w", err)
	}
	return provider.String, nil
}

// SetTranscriptionPreference stores provider for userID, replacing any
// previous value.
func (s *Store) SetTranscriptionPreference(ctx context.Context, userID, provider string) error {
	const q = `
		INSERT INTO user_preferences (user_id, transcription_provider, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
		    transcription_provider = excluded.transcription_provider,
		    updated_at             = excluded.updated_at`
	if err := s.execWithRetry(ctx, q, userID, provider, time.Now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("sqlite store: set transcription preference: %w", err)
	}
	return nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
