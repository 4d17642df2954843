// Package streaming decodes the match stream: SSE frames off the wire and
// the envelopes they carry.
package streaming

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/youssefsiam38/arenawatch/types"
)

// ProtocolVersion is the highest envelope version this package understands.
// Envelopes without a "v" field are treated as version 1.
const ProtocolVersion = 1

// Errors returned by Decode.
var (
	// ErrMalformedEnvelope is returned when a payload is not a well-formed envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrUnknownKind is returned when an envelope carries an unrecognised kind tag.
	ErrUnknownKind = errors.New("unknown envelope kind")

	// ErrUnsupportedVersion is returned for envelopes newer than ProtocolVersion.
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
)

// Kind is the envelope tag.
type Kind string

const (
	// KindConnect starts a match view and carries the history so far.
	KindConnect Kind = "connect"

	// KindUpdate carries one delta.
	KindUpdate Kind = "update"

	// KindUpd is an alias of KindUpdate sent by some server builds.
	KindUpd Kind = "upd"

	// KindEnd closes the match. Data is an optional summary.
	KindEnd Kind = "end"
)

// IsUpdate reports whether the kind carries a delta.
func (k Kind) IsUpdate() bool {
	return k == KindUpdate || k == KindUpd
}

// ConnectData is the payload of a connect envelope.
type ConnectData struct {
	// GameType selects the renderer, e.g. "Tic Tac Toe".
	GameType string

	// Players are the participating agents, in seat order.
	Players []types.AgentID

	// History holds every delta sent before the spectator joined, decoded.
	History []json.RawMessage
}

// Envelope is one decoded message from the match stream.
type Envelope struct {
	Kind Kind

	// Connect is set for KindConnect.
	Connect *ConnectData

	// Delta is set for update kinds.
	Delta json.RawMessage

	// Summary is the optional data of an end envelope. Nil when absent or null.
	Summary json.RawMessage
}

type rawEnvelope struct {
	Version *int            `json:"v,omitempty"`
	Kind    Kind            `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

type rawConnect struct {
	Kind    string            `json:"kind"`
	Players []types.AgentID   `json:"players"`
	History []json.RawMessage `json:"history"`
}

// Decode parses a single stream payload into an Envelope.
//
// The returned error wraps ErrMalformedEnvelope, ErrUnknownKind or
// ErrUnsupportedVersion.
func Decode(payload []byte) (*Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if raw.Version != nil && *raw.Version > ProtocolVersion {
		return nil, fmt.Errorf("%w: v%d", ErrUnsupportedVersion, *raw.Version)
	}

	switch raw.Kind {
	case KindConnect:
		return decodeConnect(raw.Data)

	case KindUpdate, KindUpd:
		if isNull(raw.Data) {
			return nil, fmt.Errorf("%w: %s without data", ErrMalformedEnvelope, raw.Kind)
		}
		return &Envelope{Kind: KindUpdate, Delta: raw.Data}, nil

	case KindEnd:
		env := &Envelope{Kind: KindEnd}
		if !isNull(raw.Data) {
			env.Summary = raw.Data
		}
		return env, nil

	case "":
		return nil, fmt.Errorf("%w: missing kind", ErrMalformedEnvelope)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, raw.Kind)
	}
}

func decodeConnect(data json.RawMessage) (*Envelope, error) {
	if isNull(data) {
		return nil, fmt.Errorf("%w: connect without data", ErrMalformedEnvelope)
	}

	var rc rawConnect
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("%w: connect data: %v", ErrMalformedEnvelope, err)
	}
	if rc.Kind == "" {
		return nil, fmt.Errorf("%w: connect without game type", ErrMalformedEnvelope)
	}

	history := make([]json.RawMessage, 0, len(rc.History))
	for i, entry := range rc.History {
		delta, err := DecodeHistoryEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: history[%d]: %v", ErrMalformedEnvelope, i, err)
		}
		history = append(history, delta)
	}

	return &Envelope{
		Kind: KindConnect,
		Connect: &ConnectData{
			GameType: rc.Kind,
			Players:  rc.Players,
			History:  history,
		},
	}, nil
}

// DecodeHistoryEntry normalises one history entry. The server stores
// history as serialised JSON strings, so a string entry is parsed a second
// time; any other JSON value is returned as is.
func DecodeHistoryEntry(entry json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(entry)
	if len(trimmed) == 0 {
		return nil, errors.New("empty entry")
	}
	if trimmed[0] != '"' {
		return trimmed, nil
	}

	var encoded string
	if err := json.Unmarshal(trimmed, &encoded); err != nil {
		return nil, err
	}
	inner := bytes.TrimSpace([]byte(encoded))
	if !json.Valid(inner) {
		return nil, fmt.Errorf("entry is not JSON: %.40q", encoded)
	}
	return inner, nil
}

// Encode builds the wire form of an envelope. History entries are written
// as JSON-encoded strings, the way the server sends them.
func Encode(env *Envelope) ([]byte, error) {
	raw := rawEnvelope{Kind: env.Kind}

	switch env.Kind {
	case KindConnect:
		if env.Connect == nil {
			return nil, fmt.Errorf("%w: connect without data", ErrMalformedEnvelope)
		}
		history := make([]json.RawMessage, len(env.Connect.History))
		for i, delta := range env.Connect.History {
			s, err := json.Marshal(string(delta))
			if err != nil {
				return nil, err
			}
			history[i] = s
		}
		data, err := json.Marshal(rawConnect{
			Kind:    env.Connect.GameType,
			Players: env.Connect.Players,
			History: history,
		})
		if err != nil {
			return nil, err
		}
		raw.Data = data

	case KindUpdate, KindUpd:
		raw.Data = env.Delta

	case KindEnd:
		raw.Data = env.Summary
		if raw.Data == nil {
			raw.Data = json.RawMessage("null")
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}

	return json.Marshal(raw)
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
