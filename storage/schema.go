package storage

import (
	"context"
	"fmt"
)

// Schema creates the archive tables. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS arenawatch_matches (
		id          UUID PRIMARY KEY,
		game_type   TEXT NOT NULL,
		players     BIGINT[] NOT NULL DEFAULT '{}',
		selector    JSONB NOT NULL,
		status      TEXT NOT NULL DEFAULT 'live'
		            CHECK (status IN ('live', 'finished', 'abandoned')),
		summary     JSONB,
		delta_count INTEGER NOT NULL DEFAULT 0,
		started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS arenawatch_matches_started_at_idx
		ON arenawatch_matches (started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS arenawatch_matches_players_idx
		ON arenawatch_matches USING GIN (players)`,
	`CREATE TABLE IF NOT EXISTS arenawatch_match_deltas (
		match_id    UUID NOT NULL REFERENCES arenawatch_matches (id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		data        JSONB NOT NULL,
		replayed    BOOLEAN NOT NULL DEFAULT FALSE,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (match_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS arenawatch_leases (
		name        TEXT PRIMARY KEY,
		holder_id   TEXT NOT NULL,
		acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at  TIMESTAMPTZ NOT NULL
	)`,
}

// Tables lists the archive tables, children first.
var Tables = []string{
	"arenawatch_leases",
	"arenawatch_match_deltas",
	"arenawatch_matches",
}

// Execer runs a statement. driver.Executor satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// Migrate applies Schema.
func Migrate(ctx context.Context, exec Execer) error {
	for i, stmt := range Schema {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
