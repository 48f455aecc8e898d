package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/boardroom/internal/backend"
)

// Compile-time interface checks.
var (
	_ backend.Preferences      = (*Store)(nil)
	_ backend.Transcripts      = (*Store)(nil)
	_ backend.TranscriptLister = (*Store)(nil)
	_ backend.Pinger           = (*Store)(nil)
)

// Store is the PostgreSQL-backed transcript and preference store. All
// operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a connection pool to the database at dsn, verifies it with
// a ping and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements [backend.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// SaveTranscription implements [backend.Transcripts].
func (s *Store) SaveTranscription(ctx context.Context, t backend.Transcription) error {
	const q = `
		INSERT INTO transcriptions (meeting_id, content, timestamp, speaker)
		VALUES ($1, $2, $3, $4)`

	speaker := t.Speaker
	if speaker == "" {
		speaker = backend.SpeakerUnknown
	}
	if _, err := s.pool.Exec(ctx, q, t.MeetingID, t.Content, t.Timestamp.UTC(), speaker); err != nil {
		return fmt.Errorf("postgres store: save transcription: %w", err)
	}
	return nil
}

// ListTranscriptions implements [backend.TranscriptLister].
func (s *Store) ListTranscriptions(ctx context.Context, meetingID string) ([]backend.Transcription, error) {
	const q = `
		SELECT id, meeting_id, content, timestamp, speaker
		FROM   transcriptions
		WHERE  meeting_id = $1
		ORDER  BY timestamp, id`

	rows, err := s.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list transcriptions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (backend.Transcription, error) {
		var (
			id int64
			t  backend.Transcription
		)
		err := row.Scan(&id, &t.MeetingID, &t.Content, &t.Timestamp, &t.Speaker)
		t.ID = strconv.FormatInt(id, 10)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan transcriptions: %w", err)
	}
	if out == nil {
		out = []backend.Transcription{}
	}
	return out, nil
}

// TranscriptionPreference implements [backend.Preferences]. A user with no
// row, or a NULL provider, reports "".
func (s *Store) TranscriptionPreference(ctx context.Context, userID string) (string, error) {
	const q = `SELECT transcription_provider FROM user_preferences WHERE user_id = $1`

	var provider *string
	err := s.pool.QueryRow(ctx, q, userID).Scan(&provider)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres store: transcription preference: %w", err)
	}
	if provider == nil {
		return "", nil
	}
	return *provider, nil
}

// SetTranscriptionPreference upserts provider for userID.
func (s *Store) SetTranscriptionPreference(ctx context.Context, userID, provider string) error {
	const q = `
		INSERT INTO user_preferences (user_id, transcription_provider, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
		    transcription_provider = EXCLUDED.transcription_provider,
		    updated_at             = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, q, userID, provider); err != nil {
		return fmt.Errorf("postgres store: set transcription preference: %w", err)
	}
	return nil
}
