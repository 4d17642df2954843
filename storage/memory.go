package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/runstate"
)

// MemoryStore is a Store kept in process memory. It is safe for
// concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[uuid.UUID]*Match
	deltas  map[uuid.UUID][]*Delta
	leases  map[string]*Lease
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[uuid.UUID]*Match),
		deltas:  make(map[uuid.UUID][]*Delta),
		leases:  make(map[string]*Lease),
		now:     time.Now,
	}
}

// CreateMatch stores a new live match.
func (s *MemoryStore) CreateMatch(ctx context.Context, params *CreateMatchParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[params.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMatch, params.ID)
	}

	startedAt := params.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	s.matches[params.ID] = &Match{
		ID:        params.ID,
		GameType:  params.GameType,
		Players:   slices.Clone(params.Players),
		Selector:  params.Selector,
		Status:    runstate.MatchStatusLive,
		StartedAt: startedAt,
	}
	return nil
}

// AppendDeltas appends deltas to a match. Seqs must continue the match's
// sequence without gaps.
func (s *MemoryStore) AppendDeltas(ctx context.Context, matchID uuid.UUID, deltas []*Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}

	next := m.DeltaCount + 1
	for i, d := range deltas {
		if d.Seq != next+i {
			return fmt.Errorf("%w: got seq %d, want %d", ErrOutOfOrder, d.Seq, next+i)
		}
	}

	for _, d := range deltas {
		stored := *d
		stored.MatchID = matchID
		stored.Data = slices.Clone(d.Data)
		if stored.ReceivedAt.IsZero() {
			stored.ReceivedAt = s.now()
		}
		s.deltas[matchID] = append(s.deltas[matchID], &stored)
	}
	m.DeltaCount += len(deltas)
	return nil
}

// FinishMatch records the final status and summary.
func (s *MemoryStore) FinishMatch(ctx context.Context, matchID uuid.UUID, status runstate.MatchStatus, summary json.RawMessage) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: cannot finish with status %q", ErrInvalidMatch, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}

	finishedAt := s.now()
	m.Status = status
	m.Summary = slices.Clone(summary)
	m.FinishedAt = &finishedAt
	return nil
}

// GetMatch returns a copy of a match.
func (s *MemoryStore) GetMatch(ctx context.Context, matchID uuid.UUID) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return copyMatch(m), nil
}

// ListMatches returns matches newest first.
func (s *MemoryStore) ListMatches(ctx context.Context, params *ListMatchesParams) ([]*Match, error) {
	if params == nil {
		params = &ListMatchesParams{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Match
	for _, m := range s.matches {
		if params.GameType != "" && m.GameType != params.GameType {
			continue
		}
		if params.Status != "" && m.Status != params.Status {
			continue
		}
		if params.PlayerID != 0 && !slices.Contains(m.Players, params.PlayerID) {
			continue
		}
		if params.Before != nil && !m.StartedAt.Before(*params.Before) {
			continue
		}
		out = append(out, copyMatch(m))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit := params.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListDeltas returns a match's deltas in seq order.
func (s *MemoryStore) ListDeltas(ctx context.Context, matchID uuid.UUID) ([]*Delta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.matches[matchID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}

	stored := s.deltas[matchID]
	out := make([]*Delta, len(stored))
	for i, d := range stored {
		c := *d
		c.Data = slices.Clone(d.Data)
		out[i] = &c
	}
	return out, nil
}

// DeleteMatchesBefore removes matches started before the cutoff, with
// their deltas.
func (s *MemoryStore) DeleteMatchesBefore(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, m := range s.matches {
		if m.StartedAt.Before(before) {
			delete(s.matches, id)
			delete(s.deltas, id)
			deleted++
		}
	}
	return deleted, nil
}

func copyMatch(m *Match) *Match {
	c := *m
	c.Players = slices.Clone(m.Players)
	c.Summary = slices.Clone(m.Summary)
	if m.FinishedAt != nil {
		t := *m.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// LeaseAcquire takes the lease if it is free or expired.
func (s *MemoryStore) LeaseAcquire(ctx context.Context, params *LeaseParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if l, ok := s.leases[params.Name]; ok && now.Before(l.ExpiresAt) {
		return false, nil
	}
	s.leases[params.Name] = &Lease{
		Name:       params.Name,
		HolderID:   params.HolderID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(params.TTL),
	}
	return true, nil
}

// LeaseRenew extends a lease still held by params.HolderID.
func (s *MemoryStore) LeaseRenew(ctx context.Context, params *LeaseParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	l, ok := s.leases[params.Name]
	if !ok || l.HolderID != params.HolderID || !now.Before(l.ExpiresAt) {
		return false, nil
	}
	l.ExpiresAt = now.Add(params.TTL)
	return true, nil
}

// LeaseRelease drops a lease held by holderID.
func (s *MemoryStore) LeaseRelease(ctx context.Context, name, holderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.leases[name]; ok && l.HolderID == holderID {
		delete(s.leases, name)
	}
	return nil
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ LeaseStore = (*MemoryStore)(nil)
)
