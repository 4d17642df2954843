package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch"
	"github.com/youssefsiam38/arenawatch/hooks"
	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/storage"
)

// Source is a live view. *arenawatch.Spectator satisfies it.
type Source interface {
	Snapshot(ctx context.Context) (*render.Element, error)
	Match(ctx context.Context) (*hooks.MatchInfo, error)
	State() runstate.SessionState
	Version() uint64
}

// Service provides the data behind the web view.
type Service struct {
	source Source
	store  storage.Store
	replay arenawatch.ReplayConfig
}

// New creates a Service. Either source or store may be nil; the matching
// operations then return ErrNoSource or ErrArchiveDisabled.
func New(source Source, store storage.Store, replay *arenawatch.ReplayConfig) *Service {
	s := &Service{source: source, store: store}
	if replay != nil {
		s.replay = *replay
	}
	return s
}

// Store returns the archive store, or nil.
func (s *Service) Store() storage.Store {
	return s.store
}

// Version returns the live view's version, or 0 without a source.
func (s *Service) Version() uint64 {
	if s.source == nil {
		return 0
	}
	return s.source.Version()
}

// Live returns a consistent picture of the live view.
func (s *Service) Live(ctx context.Context) (*LiveView, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	// Version first: a change racing the snapshot shows up on the next poll.
	version := s.source.Version()
	root, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	match, err := s.source.Match(ctx)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}

	return &LiveView{
		Version: version,
		State:   s.source.State(),
		Match:   match,
		Root:    root,
	}, nil
}

// ListMatches lists archived matches, newest first.
func (s *Service) ListMatches(ctx context.Context, params MatchListParams) ([]*storage.Match, error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}

	listParams := &storage.ListMatchesParams{
		GameType: params.GameType,
		PlayerID: params.PlayerID,
		Limit:    ValidateLimit(params.Limit),
	}
	if params.Status != "" {
		status := runstate.MatchStatus(params.Status)
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: status %q", ErrInvalidParams, params.Status)
		}
		listParams.Status = status
	}
	if params.Before != nil {
		listParams.Before = params.Before
	}

	return s.store.ListMatches(ctx, listParams)
}

// GetMatch returns an archived match with its deltas.
func (s *Service) GetMatch(ctx context.Context, id uuid.UUID) (*MatchDetail, error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}

	match, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	deltas, err := s.store.ListDeltas(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &MatchDetail{Match: match, Deltas: deltas}, nil
}

// ReplayMatch redraws an archived match.
func (s *Service) ReplayMatch(ctx context.Context, id uuid.UUID) (*ReplayView, error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}

	cfg := s.replay
	cfg.Container = render.NewContainer()
	result, err := arenawatch.Replay(ctx, s.store, id, &cfg)
	if err != nil {
		return nil, notFound(err)
	}

	view := &ReplayView{
		Match:    result.Match,
		State:    result.State,
		Duration: result.Duration,
		Root:     result.Container.Snapshot(),
	}
	for _, err := range result.Errors {
		view.Errors = append(view.Errors, err.Error())
	}
	return view, nil
}

func notFound(err error) error {
	if errors.Is(err, storage.ErrMatchNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// ValidateLimit clamps a page size to [1, MaxLimit].
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
