package databasesql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/youssefsiam38/arenawatch/driver"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/storage"
	"github.com/youssefsiam38/arenawatch/types"
)

const uniqueViolation = "23505"

const matchColumns = `id, game_type, players, selector, status, summary, delta_count, started_at, finished_at`

// Store implements storage.Store using the databasesql driver.
type Store struct {
	driver *Driver
}

// NewStore creates a new databasesql Store.
func NewStore(d *Driver) *Store {
	return &Store{driver: d}
}

// getExecutor returns the executor from context if present, otherwise the default pool executor.
func (s *Store) getExecutor(ctx context.Context) driver.Executor {
	if exec := driver.ExecutorFromContext(ctx); exec != nil {
		return exec
	}
	return s.driver.GetExecutor()
}

// CreateMatch inserts a live match.
func (s *Store) CreateMatch(ctx context.Context, params *storage.CreateMatchParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	selectorJSON, err := json.Marshal(params.Selector)
	if err != nil {
		return fmt.Errorf("failed to marshal selector: %w", err)
	}
	startedAt := params.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	query := `
		INSERT INTO arenawatch_matches (id, game_type, players, selector, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	// lib/pq sends []byte as bytea, so JSON goes over the wire as text.
	_, err = s.getExecutor(ctx).Exec(ctx, query,
		params.ID, params.GameType, pq.Array(playerIDs(params.Players)), string(selectorJSON),
		runstate.MatchStatusLive, startedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateMatch, params.ID)
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// AppendDeltas inserts deltas and bumps the match's delta count in one
// transaction.
func (s *Store) AppendDeltas(ctx context.Context, matchID uuid.UUID, deltas []*storage.Delta) error {
	if len(deltas) == 0 {
		return nil
	}

	return driver.RunInTx(ctx, s.getExecutor(ctx), func(ctx context.Context, exec driver.Executor) error {
		var count int
		err := exec.QueryRow(ctx,
			`SELECT delta_count FROM arenawatch_matches WHERE id = $1 FOR UPDATE`, matchID,
		).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", storage.ErrMatchNotFound, matchID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock match: %w", err)
		}

		items := make([]driver.BatchItem, 0, len(deltas)+1)
		for i, d := range deltas {
			if d.Seq != count+1+i {
				return fmt.Errorf("%w: got seq %d, want %d", storage.ErrOutOfOrder, d.Seq, count+1+i)
			}
			receivedAt := d.ReceivedAt
			if receivedAt.IsZero() {
				receivedAt = time.Now()
			}
			items = append(items, driver.BatchItem{
				Query: `INSERT INTO arenawatch_match_deltas (match_id, seq, data, replayed, received_at)
					VALUES ($1, $2, $3, $4, $5)`,
				Args: []any{matchID, d.Seq, string(d.Data), d.Replayed, receivedAt},
			})
		}
		items = append(items, driver.BatchItem{
			Query: `UPDATE arenawatch_matches SET delta_count = delta_count + $2 WHERE id = $1`,
			Args:  []any{matchID, len(deltas)},
		})

		if _, err := driver.ExecBatch(ctx, exec, items); err != nil {
			return fmt.Errorf("failed to append deltas: %w", err)
		}
		return nil
	})
}

// FinishMatch records the terminal status and summary.
func (s *Store) FinishMatch(ctx context.Context, matchID uuid.UUID, status runstate.MatchStatus, summary json.RawMessage) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: cannot finish with status %q", storage.ErrInvalidMatch, status)
	}

	summaryArg := sql.NullString{String: string(summary), Valid: len(summary) > 0}

	query := `
		UPDATE arenawatch_matches
		SET status = $2, summary = $3, finished_at = NOW()
		WHERE id = $1
	`
	n, err := s.getExecutor(ctx).Exec(ctx, query, matchID, status, summaryArg)
	if err != nil {
		return fmt.Errorf("failed to finish match: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrMatchNotFound, matchID)
	}
	return nil
}

// GetMatch retrieves a match by ID.
func (s *Store) GetMatch(ctx context.Context, matchID uuid.UUID) (*storage.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM arenawatch_matches WHERE id = $1`

	m, err := scanMatch(s.getExecutor(ctx).QueryRow(ctx, query, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrMatchNotFound, matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// ListMatches returns matches newest first.
func (s *Store) ListMatches(ctx context.Context, params *storage.ListMatchesParams) ([]*storage.Match, error) {
	if params == nil {
		params = &storage.ListMatchesParams{}
	}

	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if params.GameType != "" {
		add("game_type = $%d", params.GameType)
	}
	if params.Status != "" {
		add("status = $%d", params.Status)
	}
	if params.PlayerID != 0 {
		add("$%d = ANY(players)", int64(params.PlayerID))
	}
	if params.Before != nil {
		add("started_at < $%d", *params.Before)
	}

	query := `SELECT ` + matchColumns + ` FROM arenawatch_matches`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, params.EffectiveLimit())
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args))

	rows, err := s.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// ListDeltas returns a match's deltas in seq order.
func (s *Store) ListDeltas(ctx context.Context, matchID uuid.UUID) ([]*storage.Delta, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}

	query := `
		SELECT match_id, seq, data, replayed, received_at
		FROM arenawatch_match_deltas
		WHERE match_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.getExecutor(ctx).Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deltas: %w", err)
	}
	defer rows.Close()

	var deltas []*storage.Delta
	for rows.Next() {
		var d storage.Delta
		var data []byte
		if err := rows.Scan(&d.MatchID, &d.Seq, &data, &d.Replayed, &d.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delta: %w", err)
		}
		d.Data = data
		deltas = append(deltas, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deltas: %w", err)
	}
	return deltas, nil
}

// DeleteMatchesBefore removes matches started before the cutoff along
// with their deltas.
func (s *Store) DeleteMatchesBefore(ctx context.Context, before time.Time) (int, error) {
	n, err := s.getExecutor(ctx).Exec(ctx,
		`DELETE FROM arenawatch_matches WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete matches: %w", err)
	}
	return int(n), nil
}

func scanMatch(row driver.Row) (*storage.Match, error) {
	var (
		m            storage.Match
		players      []int64
		selectorJSON []byte
		summary      []byte
		finishedAt   sql.NullTime
	)
	err := row.Scan(
		&m.ID,
		&m.GameType,
		pq.Array(&players),
		&selectorJSON,
		&m.Status,
		&summary,
		&m.DeltaCount,
		&m.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(selectorJSON, &m.Selector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selector: %w", err)
	}
	m.Players = make([]types.AgentID, len(players))
	for i, p := range players {
		m.Players[i] = types.AgentID(p)
	}
	if len(summary) > 0 {
		m.Summary = summary
	}
	if finishedAt.Valid {
		m.FinishedAt = &finishedAt.Time
	}
	return &m, nil
}

func playerIDs(players []types.AgentID) []int64 {
	ids := make([]int64, len(players))
	for i, p := range players {
		ids[i] = int64(p)
	}
	return ids
}

// Lease operations

// LeaseAcquire takes the lease if it is free or expired. Expiry is judged
// by the database clock so that instances with skewed clocks agree.
func (s *Store) LeaseAcquire(ctx context.Context, params *storage.LeaseParams) (bool, error) {
	query := `
		INSERT INTO arenawatch_leases (name, holder_id, acquired_at, expires_at)
		VALUES ($1, $2, NOW(), NOW() + make_interval(secs => $3))
		ON CONFLICT (name) DO UPDATE
		SET holder_id = EXCLUDED.holder_id,
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at = EXCLUDED.expires_at
		WHERE arenawatch_leases.expires_at <= NOW()
	`
	n, err := s.getExecutor(ctx).Exec(ctx, query, params.Name, params.HolderID, params.TTL.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return n > 0, nil
}

// LeaseRenew extends a lease still held by params.HolderID.
func (s *Store) LeaseRenew(ctx context.Context, params *storage.LeaseParams) (bool, error) {
	query := `
		UPDATE arenawatch_leases
		SET expires_at = NOW() + make_interval(secs => $3)
		WHERE name = $1 AND holder_id = $2 AND expires_at > NOW()
	`
	n, err := s.getExecutor(ctx).Exec(ctx, query, params.Name, params.HolderID, params.TTL.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to renew lease: %w", err)
	}
	return n > 0, nil
}

// LeaseRelease drops a lease held by holderID.
func (s *Store) LeaseRelease(ctx context.Context, name, holderID string) error {
	_, err := s.getExecutor(ctx).Exec(ctx,
		`DELETE FROM arenawatch_leases WHERE name = $1 AND holder_id = $2`, name, holderID)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.LeaseStore = (*Store)(nil)
)
