// Package testutil provides test utilities for the archive drivers
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/arenawatch/storage"
	"github.com/youssefsiam38/arenawatch/types"
)

// TestDB wraps a PostgreSQL connection pool for testing
type TestDB struct {
	Pool *pgxpool.Pool
	URL  string
}

// NewTestDB creates a test database connection from DATABASE_URL env var
// and applies the archive schema. Skips the test if DATABASE_URL is not set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := storage.Migrate(ctx, poolExecer{pool}); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return &TestDB{Pool: pool, URL: dbURL}
}

// Close closes the database connection
func (db *TestDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CleanTables truncates all archive tables for test isolation
func (db *TestDB) CleanTables(ctx context.Context) error {
	for _, table := range storage.Tables {
		_, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// SetupTestMatch creates a live match through store and returns its ID
func SetupTestMatch(ctx context.Context, t *testing.T, store storage.Store, gameType string, players ...types.AgentID) uuid.UUID {
	t.Helper()

	sel := types.AnyMatch()
	if len(players) > 0 {
		sel = types.WithPlayer(players[0])
	}

	id := uuid.New()
	err := store.CreateMatch(ctx, &storage.CreateMatchParams{
		ID:       id,
		GameType: gameType,
		Players:  players,
		Selector: sel,
	})
	if err != nil {
		t.Fatalf("Failed to create test match: %v", err)
	}
	return id
}

// RequireIntegration skips the test if not running integration tests
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
}

type poolExecer struct {
	pool *pgxpool.Pool
}

func (e poolExecer) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := e.pool.Exec(ctx, sql, args...)
	return tag.RowsAffected(), err
}
