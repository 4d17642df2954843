// Package runstate provides the state machines for spectator sessions and
// archived matches.
//
// Session state machine:
//
//	idle -> connecting                   (Connect)
//	connecting -> live                   (connect envelope received)
//	connecting -> cooling_down           (dial failed)
//	live -> ended                        (end envelope released by the pacer)
//	live -> cooling_down                 (stream dropped)
//	live -> connecting                   (Connect with a new selector)
//	ended -> cooling_down                (reconnect scheduled)
//	cooling_down -> connecting           (cooldown elapsed)
//	connecting, live -> failed           (unknown game or renderer error)
//	failed -> live                       (next connect envelope renders)
//	failed -> cooling_down, connecting
//	* -> closed                          (Stop)
//
// Closed is the only terminal session state.
package runstate

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrInvalidStateTransition is returned when a transition is not allowed.
var ErrInvalidStateTransition = errors.New("runstate: invalid state transition")

// SessionState is the state of a spectator session.
type SessionState string

const (
	// SessionStateIdle is the state before the first Connect.
	SessionStateIdle SessionState = "idle"

	// SessionStateConnecting indicates a stream is being opened.
	SessionStateConnecting SessionState = "connecting"

	// SessionStateLive indicates a match is being rendered.
	SessionStateLive SessionState = "live"

	// SessionStateEnded indicates the match's end was rendered.
	SessionStateEnded SessionState = "ended"

	// SessionStateCoolingDown indicates a reconnect is scheduled.
	SessionStateCoolingDown SessionState = "cooling_down"

	// SessionStateFailed indicates the current match cannot be rendered.
	// The stream is drained until it ends or sends a renderable match.
	SessionStateFailed SessionState = "failed"

	// SessionStateClosed indicates the session was stopped.
	SessionStateClosed SessionState = "closed"
)

// AllSessionStates returns every session state.
func AllSessionStates() []SessionState {
	return []SessionState{
		SessionStateIdle,
		SessionStateConnecting,
		SessionStateLive,
		SessionStateEnded,
		SessionStateCoolingDown,
		SessionStateFailed,
		SessionStateClosed,
	}
}

// IsValid reports whether s is a known state.
func (s SessionState) IsValid() bool {
	switch s {
	case SessionStateIdle, SessionStateConnecting, SessionStateLive, SessionStateEnded,
		SessionStateCoolingDown, SessionStateFailed, SessionStateClosed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateClosed
}

// IsStreaming reports whether a stream is open in s.
func (s SessionState) IsStreaming() bool {
	switch s {
	case SessionStateConnecting, SessionStateLive, SessionStateFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s may move to target.
func (s SessionState) CanTransitionTo(target SessionState) bool {
	if s.IsTerminal() || s == target || !target.IsValid() {
		return false
	}
	if target == SessionStateClosed {
		return true
	}

	switch s {
	case SessionStateIdle:
		return target == SessionStateConnecting
	case SessionStateConnecting:
		return target == SessionStateLive || target == SessionStateCoolingDown || target == SessionStateFailed
	case SessionStateLive:
		return target == SessionStateEnded || target == SessionStateCoolingDown ||
			target == SessionStateConnecting || target == SessionStateFailed
	case SessionStateEnded:
		return target == SessionStateCoolingDown || target == SessionStateConnecting
	case SessionStateCoolingDown:
		return target == SessionStateConnecting
	case SessionStateFailed:
		return target == SessionStateLive || target == SessionStateCoolingDown ||
			target == SessionStateConnecting
	}
	return false
}

// String returns the state name.
func (s SessionState) String() string {
	return string(s)
}

// Transition is a session state change.
type Transition struct {
	From SessionState
	To   SessionState
}

// Validate returns ErrInvalidStateTransition if the change is not allowed.
func (t Transition) Validate() error {
	if !t.From.IsValid() {
		return fmt.Errorf("%w: unknown source state %q", ErrInvalidStateTransition, t.From)
	}
	if !t.From.CanTransitionTo(t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.From, t.To)
	}
	return nil
}

// MatchStatus is the status of an archived match.
type MatchStatus string

const (
	// MatchStatusLive indicates the match is still being recorded.
	MatchStatusLive MatchStatus = "live"

	// MatchStatusFinished indicates the end envelope was recorded.
	MatchStatusFinished MatchStatus = "finished"

	// MatchStatusAbandoned indicates the stream dropped before the end.
	MatchStatusAbandoned MatchStatus = "abandoned"
)

// IsValid reports whether s is a known status.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusLive, MatchStatusFinished, MatchStatusAbandoned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the match will receive no more deltas.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusFinished || s == MatchStatusAbandoned
}

// String returns the status name.
func (s MatchStatus) String() string {
	return string(s)
}

// Value implements driver.Valuer for database serialization.
func (s MatchStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner for database deserialization.
func (s *MatchStatus) Scan(src any) error {
	var v string
	switch src := src.(type) {
	case string:
		v = src
	case []byte:
		v = string(src)
	default:
		return fmt.Errorf("runstate: cannot scan type %T into MatchStatus", src)
	}

	status := MatchStatus(v)
	if !status.IsValid() {
		return fmt.Errorf("runstate: invalid match status %q", v)
	}
	*s = status
	return nil
}
