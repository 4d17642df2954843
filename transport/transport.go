// Package transport opens match streams from the platform.
//
// Two transports are provided: SSE, the platform's default browser stream,
// and WebSocket, the game reporter's spectator socket. Both yield one
// envelope payload per Next call.
package transport

import (
	"context"
	"errors"

	"github.com/youssefsiam38/arenawatch/types"
)

// Errors returned by transports.
var (
	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("transport: connection closed")

	// ErrHandshake is returned when the server refuses a stream.
	ErrHandshake = errors.New("transport: handshake failed")
)

// Conn is one open match stream.
type Conn interface {
	// Next blocks until the next payload arrives. It returns io.EOF when
	// the server ends the stream.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer opens a stream for the matches a selector picks.
type Dialer interface {
	Dial(ctx context.Context, sel types.Selector) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, sel types.Selector) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, sel types.Selector) (Conn, error) {
	return f(ctx, sel)
}

type result struct {
	payload []byte
	err     error
}

// pump moves payloads from a blocking read loop onto a channel so Next can
// honour its context.
type pump struct {
	results chan result
	done    chan struct{}
}

func newPump() *pump {
	return &pump{
		results: make(chan result),
		done:    make(chan struct{}),
	}
}

// send delivers one result. It reports false once the pump is closed.
func (p *pump) send(r result) bool {
	select {
	case p.results <- r:
		return true
	case <-p.done:
		return false
	}
}

func (p *pump) next(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}

	select {
	case r := <-p.results:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrClosed
	}
}
