package databasesql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/driver"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/storage"
	"github.com/youssefsiam38/arenawatch/types"
)

func getTestDriver(t *testing.T) (context.Context, *Driver) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping: %v", err)
	}

	drv := New(db, dbURL)
	if err := storage.Migrate(ctx, drv.GetExecutor()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	for _, table := range storage.Tables {
		if _, err := db.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("Failed to clean %s: %v", table, err)
		}
	}
	return ctx, drv
}

func createMatch(ctx context.Context, t *testing.T, store storage.Store) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := store.CreateMatch(ctx, &storage.CreateMatchParams{
		ID:       id,
		GameType: "Tic Tac Toe",
		Players:  []types.AgentID{4, 5},
	})
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	return id
}

func delta(seq int) *storage.Delta {
	return &storage.Delta{Seq: seq, Data: json.RawMessage(`{"kind":"grid_state","data":[]}`)}
}

func TestIntegration_DatabaseSQL_Store_MatchLifecycle(t *testing.T) {
	ctx, drv := getTestDriver(t)
	store := drv.GetStore()

	id := createMatch(ctx, t, store)

	if err := store.AppendDeltas(ctx, id, []*storage.Delta{delta(1), delta(2)}); err != nil {
		t.Fatalf("AppendDeltas failed: %v", err)
	}
	if err := store.AppendDeltas(ctx, id, []*storage.Delta{delta(4)}); !errors.Is(err, storage.ErrOutOfOrder) {
		t.Errorf("gapped AppendDeltas error = %v, want ErrOutOfOrder", err)
	}
	if err := store.FinishMatch(ctx, id, runstate.MatchStatusFinished, json.RawMessage(`{"winner":4}`)); err != nil {
		t.Fatalf("FinishMatch failed: %v", err)
	}

	m, err := store.GetMatch(ctx, id)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if m.Status != runstate.MatchStatusFinished || m.FinishedAt == nil {
		t.Errorf("status %q finishedAt %v", m.Status, m.FinishedAt)
	}
	if m.DeltaCount != 2 {
		t.Errorf("DeltaCount = %d, want 2", m.DeltaCount)
	}
	if len(m.Players) != 2 || m.Players[0] != 4 {
		t.Errorf("Players = %v, want [4 5]", m.Players)
	}
	if !m.Selector.IsAny() {
		t.Errorf("Selector = %v, want Any", m.Selector)
	}

	stored, err := store.ListDeltas(ctx, id)
	if err != nil {
		t.Fatalf("ListDeltas failed: %v", err)
	}
	if len(stored) != 2 || stored[1].Seq != 2 {
		t.Errorf("got %d deltas", len(stored))
	}

	byPlayer, err := store.ListMatches(ctx, &storage.ListMatchesParams{PlayerID: 5})
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if len(byPlayer) != 1 || byPlayer[0].ID != id {
		t.Errorf("ListMatches(player 5) = %d matches", len(byPlayer))
	}

	if err := store.CreateMatch(ctx, &storage.CreateMatchParams{ID: id, GameType: "Snake"}); !errors.Is(err, storage.ErrDuplicateMatch) {
		t.Errorf("duplicate CreateMatch error = %v, want ErrDuplicateMatch", err)
	}
	if _, err := store.GetMatch(ctx, uuid.New()); !errors.Is(err, storage.ErrMatchNotFound) {
		t.Errorf("GetMatch(unknown) error = %v, want ErrMatchNotFound", err)
	}
}

func TestIntegration_DatabaseSQL_Driver_NestedTransactions(t *testing.T) {
	ctx, drv := getTestDriver(t)
	store := drv.GetStore()

	id := createMatch(ctx, t, store)

	outer, err := drv.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer outer.Rollback(ctx)

	outerCtx := driver.WithExecutor(ctx, outer)
	if err := store.AppendDeltas(outerCtx, id, []*storage.Delta{delta(1)}); err != nil {
		t.Fatalf("AppendDeltas in outer tx failed: %v", err)
	}

	inner, err := outer.Begin(ctx)
	if err != nil {
		t.Fatalf("savepoint Begin failed: %v", err)
	}
	if err := store.AppendDeltas(driver.WithExecutor(ctx, inner), id, []*storage.Delta{delta(2)}); err != nil {
		t.Fatalf("AppendDeltas in savepoint failed: %v", err)
	}
	if err := inner.Rollback(ctx); err != nil {
		t.Fatalf("savepoint Rollback failed: %v", err)
	}

	if err := outer.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	m, err := store.GetMatch(ctx, id)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if m.DeltaCount != 1 {
		t.Errorf("DeltaCount = %d, want 1 (savepoint rolled back)", m.DeltaCount)
	}
	if drv.UnwrapTx(inner) == nil {
		t.Error("UnwrapTx(savepoint) returned nil")
	}
}

func TestIntegration_DatabaseSQL_Retention(t *testing.T) {
	ctx, drv := getTestDriver(t)
	store := drv.GetStore()

	old := uuid.New()
	err := store.CreateMatch(ctx, &storage.CreateMatchParams{
		ID:        old,
		GameType:  "Snake",
		StartedAt: time.Now().Add(-72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	kept := createMatch(ctx, t, store)

	n, err := store.DeleteMatchesBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteMatchesBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := store.GetMatch(ctx, kept); err != nil {
		t.Errorf("recent match was deleted: %v", err)
	}
}

func TestIntegration_DatabaseSQL_ListenNotify(t *testing.T) {
	ctx, drv := getTestDriver(t)

	listener, err := drv.GetListener(ctx)
	if err != nil {
		t.Fatalf("GetListener failed: %v", err)
	}
	defer listener.Close(ctx)

	if err := listener.Listen(ctx, driver.ChannelMatchStarted); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if err := drv.GetNotifier().Notify(ctx, driver.ChannelMatchStarted, "payload"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := listener.WaitForNotification(waitCtx)
	if err != nil {
		t.Fatalf("WaitForNotification failed: %v", err)
	}
	if n.Payload != "payload" {
		t.Errorf("Payload = %q", n.Payload)
	}
}

func TestDriver_ListenerRequiresConnString(t *testing.T) {
	drv := New(nil, "")
	if drv.SupportsListener() {
		t.Error("SupportsListener() = true without a connection string")
	}
	if _, err := drv.GetListener(context.Background()); err == nil {
		t.Error("GetListener should fail without a connection string")
	}
	if drv.PoolIsSet() {
		t.Error("PoolIsSet() = true with nil db")
	}
}

func TestIntegration_DatabaseSQL_Leases(t *testing.T) {
	ctx, drv := getTestDriver(t)
	leases := NewStore(drv)

	a := &storage.LeaseParams{Name: "maintenance", HolderID: "a", TTL: time.Minute}
	b := &storage.LeaseParams{Name: "maintenance", HolderID: "b", TTL: time.Minute}

	if ok, err := leases.LeaseAcquire(ctx, a); err != nil || !ok {
		t.Fatalf("LeaseAcquire(a) = %v, %v; want true", ok, err)
	}
	if ok, err := leases.LeaseAcquire(ctx, b); err != nil || ok {
		t.Fatalf("LeaseAcquire(b) = %v, %v; want false while a holds it", ok, err)
	}
	if ok, err := leases.LeaseRenew(ctx, a); err != nil || !ok {
		t.Fatalf("LeaseRenew(a) = %v, %v; want true", ok, err)
	}
	if err := leases.LeaseRelease(ctx, "maintenance", "a"); err != nil {
		t.Fatalf("LeaseRelease failed: %v", err)
	}
	if ok, err := leases.LeaseAcquire(ctx, b); err != nil || !ok {
		t.Fatalf("LeaseAcquire(b) after release = %v, %v; want true", ok, err)
	}
}
