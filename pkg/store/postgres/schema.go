// Package postgres provides a PostgreSQL-backed transcript and preference
// store over a single [pgxpool.Pool].
//
// The tables mirror the hosted project's public schema so that a deployment
// can point the pipeline straight at the same database:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.SaveTranscription(ctx, t)
//	p, _ := store.TranscriptionPreference(ctx, userID)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscriptions = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id          BIGSERIAL    PRIMARY KEY,
    meeting_id  TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    speaker     TEXT         NOT NULL DEFAULT 'Unknown',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_meeting_timestamp
    ON transcriptions (meeting_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_transcriptions_fts
    ON transcriptions USING GIN (to_tsvector('english', content));
`

const ddlUserPreferences = `
CREATE TABLE IF NOT EXISTS user_preferences (
    user_id                 TEXT         PRIMARY KEY,
    transcription_provider  TEXT,
    updated_at              TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates the tables and indexes the store needs. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlTranscriptions, ddlUserPreferences} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
