package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/types"
)

func createMatch(t *testing.T, s *MemoryStore, gameType string, startedAt time.Time, players ...types.AgentID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := s.CreateMatch(context.Background(), &CreateMatchParams{
		ID:        id,
		GameType:  gameType,
		Players:   players,
		Selector:  types.AnyMatch(),
		StartedAt: startedAt,
	})
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	return id
}

func TestMemoryStore_MatchLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := createMatch(t, s, "Snake", time.Now(), 1, 2)

	deltas := []*Delta{
		{Seq: 1, Data: json.RawMessage(`{"kind":"dimensions","data":[3,4]}`), Replayed: true},
		{Seq: 2, Data: json.RawMessage(`{"kind":"upd","data":[[1,0,0]]}`)},
	}
	if err := s.AppendDeltas(ctx, id, deltas); err != nil {
		t.Fatalf("AppendDeltas failed: %v", err)
	}
	if err := s.FinishMatch(ctx, id, runstate.MatchStatusFinished, json.RawMessage(`"draw"`)); err != nil {
		t.Fatalf("FinishMatch failed: %v", err)
	}

	m, err := s.GetMatch(ctx, id)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if m.Status != runstate.MatchStatusFinished {
		t.Errorf("Status = %s, want finished", m.Status)
	}
	if m.DeltaCount != 2 {
		t.Errorf("DeltaCount = %d, want 2", m.DeltaCount)
	}
	if string(m.Summary) != `"draw"` {
		t.Errorf("Summary = %s", m.Summary)
	}
	if m.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	got, err := s.ListDeltas(ctx, id)
	if err != nil {
		t.Fatalf("ListDeltas failed: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 1 || !got[0].Replayed || got[1].Replayed {
		t.Fatalf("ListDeltas = %+v", got)
	}
	if got[0].MatchID != id || got[0].ReceivedAt.IsZero() {
		t.Errorf("delta not stamped: %+v", got[0])
	}
}

func TestMemoryStore_CreateMatchValidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tests := []struct {
		name   string
		params *CreateMatchParams
		want   error
	}{
		{"nil params", nil, ErrInvalidMatch},
		{"missing id", &CreateMatchParams{GameType: "Snake"}, ErrInvalidMatch},
		{"missing game type", &CreateMatchParams{ID: uuid.New()}, ErrInvalidMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.CreateMatch(ctx, tt.params); !errors.Is(err, tt.want) {
				t.Errorf("CreateMatch() error = %v, want %v", err, tt.want)
			}
		})
	}

	id := createMatch(t, s, "Snake", time.Now())
	err := s.CreateMatch(ctx, &CreateMatchParams{ID: id, GameType: "Snake"})
	if !errors.Is(err, ErrDuplicateMatch) {
		t.Errorf("duplicate CreateMatch() error = %v, want ErrDuplicateMatch", err)
	}
}

func TestMemoryStore_AppendDeltasOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := createMatch(t, s, "Tic Tac Toe", time.Now())

	err := s.AppendDeltas(ctx, id, []*Delta{{Seq: 2, Data: json.RawMessage(`{}`)}})
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("AppendDeltas(gap) error = %v, want ErrOutOfOrder", err)
	}

	// A rejected batch leaves nothing behind.
	got, _ := s.ListDeltas(ctx, id)
	if len(got) != 0 {
		t.Fatalf("rejected batch stored %d deltas", len(got))
	}

	if err := s.AppendDeltas(ctx, uuid.New(), nil); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("AppendDeltas(unknown) error = %v, want ErrMatchNotFound", err)
	}
}

func TestMemoryStore_FinishMatchRejectsLive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := createMatch(t, s, "Snake", time.Now())

	if err := s.FinishMatch(ctx, id, runstate.MatchStatusLive, nil); !errors.Is(err, ErrInvalidMatch) {
		t.Errorf("FinishMatch(live) error = %v, want ErrInvalidMatch", err)
	}
	if err := s.FinishMatch(ctx, uuid.New(), runstate.MatchStatusAbandoned, nil); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("FinishMatch(unknown) error = %v, want ErrMatchNotFound", err)
	}
}

func TestMemoryStore_ListMatches(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	oldest := createMatch(t, s, "Snake", base, 1, 2)
	middle := createMatch(t, s, "Tic Tac Toe", base.Add(time.Minute), 2, 3)
	newest := createMatch(t, s, "Snake", base.Add(2*time.Minute), 3, 4)
	_ = s.FinishMatch(ctx, oldest, runstate.MatchStatusFinished, nil)

	before := base.Add(2 * time.Minute)
	tests := []struct {
		name   string
		params *ListMatchesParams
		want   []uuid.UUID
	}{
		{"all newest first", nil, []uuid.UUID{newest, middle, oldest}},
		{"by game type", &ListMatchesParams{GameType: "Snake"}, []uuid.UUID{newest, oldest}},
		{"by status", &ListMatchesParams{Status: runstate.MatchStatusLive}, []uuid.UUID{newest, middle}},
		{"by player", &ListMatchesParams{PlayerID: 2}, []uuid.UUID{middle, oldest}},
		{"before", &ListMatchesParams{Before: &before}, []uuid.UUID{middle, oldest}},
		{"limit", &ListMatchesParams{Limit: 1}, []uuid.UUID{newest}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListMatches(ctx, tt.params)
			if err != nil {
				t.Fatalf("ListMatches failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListMatches returned %d matches, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("match %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryStore_DeleteMatchesBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	old := createMatch(t, s, "Snake", now.Add(-48*time.Hour))
	recent := createMatch(t, s, "Snake", now)
	_ = s.AppendDeltas(ctx, old, []*Delta{{Seq: 1, Data: json.RawMessage(`{}`)}})

	n, err := s.DeleteMatchesBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteMatchesBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := s.GetMatch(ctx, old); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("old match still present: %v", err)
	}
	if _, err := s.ListDeltas(ctx, old); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("old deltas still present: %v", err)
	}
	if _, err := s.GetMatch(ctx, recent); err != nil {
		t.Errorf("recent match removed: %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := createMatch(t, s, "Snake", time.Now(), 1, 2)

	m, _ := s.GetMatch(ctx, id)
	m.Players[0] = 99

	again, _ := s.GetMatch(ctx, id)
	if again.Players[0] != 1 {
		t.Error("GetMatch returned shared player slice")
	}
}

type recordingExecer struct {
	stmts  []string
	failAt int
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if len(r.stmts) == r.failAt {
		return 0, errors.New("boom")
	}
	r.stmts = append(r.stmts, sql)
	return 0, nil
}

func TestMigrate(t *testing.T) {
	exec := &recordingExecer{failAt: -1}
	if err := Migrate(context.Background(), exec); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if len(exec.stmts) != len(Schema) {
		t.Errorf("ran %d statements, want %d", len(exec.stmts), len(Schema))
	}

	failing := &recordingExecer{failAt: 1}
	if err := Migrate(context.Background(), failing); err == nil {
		t.Error("Migrate should surface statement errors")
	}
}

func TestMemoryStore_Leases(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	a := &LeaseParams{Name: "maintenance", HolderID: "a", TTL: 10 * time.Second}
	b := &LeaseParams{Name: "maintenance", HolderID: "b", TTL: 10 * time.Second}

	steps := []struct {
		name    string
		advance time.Duration
		op      func() (bool, error)
		want    bool
	}{
		{"a acquires", 0, func() (bool, error) { return s.LeaseAcquire(ctx, a) }, true},
		{"b blocked", 0, func() (bool, error) { return s.LeaseAcquire(ctx, b) }, false},
		{"b cannot renew", 0, func() (bool, error) { return s.LeaseRenew(ctx, b) }, false},
		{"a renews", 8 * time.Second, func() (bool, error) { return s.LeaseRenew(ctx, a) }, true},
		{"renewal holds", 8 * time.Second, func() (bool, error) { return s.LeaseAcquire(ctx, b) }, false},
		{"b takes over expired", 10 * time.Second, func() (bool, error) { return s.LeaseAcquire(ctx, b) }, true},
		{"a lost it", 0, func() (bool, error) { return s.LeaseRenew(ctx, a) }, false},
	}
	for _, st := range steps {
		now = now.Add(st.advance)
		got, err := st.op()
		if err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if got != st.want {
			t.Fatalf("%s: got %v, want %v", st.name, got, st.want)
		}
	}

	// Only the holder can release.
	if err := s.LeaseRelease(ctx, "maintenance", "a"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.LeaseAcquire(ctx, a); ok {
		t.Fatal("release by a non-holder freed the lease")
	}
	if err := s.LeaseRelease(ctx, "maintenance", "b"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.LeaseAcquire(ctx, a); !ok {
		t.Fatal("lease not free after release")
	}
}
