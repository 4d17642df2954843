package pgxv5

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/arenawatch/driver"
)

// ErrListenerClosed is returned by a closed Listener.
var ErrListenerClosed = errors.New("listener closed")

// Listener implements driver.Listener on a connection held out of the
// pool for its whole life.
type Listener struct {
	mu     sync.Mutex
	conn   *pgxpool.Conn
	closed bool
}

func (l *Listener) acquired() (*pgxpool.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.conn == nil {
		return nil, ErrListenerClosed
	}
	return l.conn, nil
}

// Listen subscribes to channel.
func (l *Listener) Listen(ctx context.Context, channel string) error {
	conn, err := l.acquired()
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

// Unlisten drops a subscription.
func (l *Listener) Unlisten(ctx context.Context, channel string) error {
	conn, err := l.acquired()
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, "UNLISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

// UnlistenAll drops every subscription.
func (l *Listener) UnlistenAll(ctx context.Context) error {
	conn, err := l.acquired()
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, "UNLISTEN *")
	return err
}

// WaitForNotification blocks until a notification arrives.
func (l *Listener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	conn, err := l.acquired()
	if err != nil {
		return nil, err
	}
	n, err := conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return nil, err
	}
	return &driver.Notification{Channel: n.Channel, Payload: n.Payload}, nil
}

// Ping checks the connection.
func (l *Listener) Ping(ctx context.Context) error {
	conn, err := l.acquired()
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

// Close returns the connection to the pool. Subscriptions are dropped
// first so the pooled connection does not keep receiving notifications.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.conn == nil {
		return nil
	}
	_, err := l.conn.Exec(ctx, "UNLISTEN *")
	l.conn.Release()
	l.conn = nil
	return err
}

// IsClosed returns true after Close.
func (l *Listener) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

var _ driver.Listener = (*Listener)(nil)
