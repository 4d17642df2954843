package databasesql

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/youssefsiam38/arenawatch/driver"
)

// ErrListenerClosed is returned by a closed Listener.
var ErrListenerClosed = errors.New("listener closed")

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
)

// Listener implements driver.Listener on a pq.Listener. pq reconnects on
// its own and re-issues LISTEN for every subscribed channel.
type Listener struct {
	mu     sync.Mutex
	pql    *pq.Listener
	closed bool
}

// NewListener opens a listener on connStr.
func NewListener(connStr string) *Listener {
	return &Listener{
		pql: pq.NewListener(connStr, minReconnectInterval, maxReconnectInterval, nil),
	}
}

func (l *Listener) open() (*pq.Listener, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrListenerClosed
	}
	return l.pql, nil
}

// Listen subscribes to channel.
func (l *Listener) Listen(ctx context.Context, channel string) error {
	pql, err := l.open()
	if err != nil {
		return err
	}
	err = pql.Listen(channel)
	if errors.Is(err, pq.ErrChannelAlreadyOpen) {
		return nil
	}
	return err
}

// Unlisten drops a subscription.
func (l *Listener) Unlisten(ctx context.Context, channel string) error {
	pql, err := l.open()
	if err != nil {
		return err
	}
	err = pql.Unlisten(channel)
	if errors.Is(err, pq.ErrChannelNotOpen) {
		return nil
	}
	return err
}

// UnlistenAll drops every subscription.
func (l *Listener) UnlistenAll(ctx context.Context) error {
	pql, err := l.open()
	if err != nil {
		return err
	}
	return pql.UnlistenAll()
}

// WaitForNotification blocks until a notification arrives. pq sends a nil
// notification after reconnecting; those are skipped.
func (l *Listener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	pql, err := l.open()
	if err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case n, ok := <-pql.Notify:
			if !ok {
				return nil, ErrListenerClosed
			}
			if n == nil {
				continue
			}
			return &driver.Notification{Channel: n.Channel, Payload: n.Extra}, nil
		}
	}
}

// Ping checks the connection.
func (l *Listener) Ping(ctx context.Context) error {
	pql, err := l.open()
	if err != nil {
		return err
	}
	return pql.Ping()
}

// Close closes the listener connection.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.pql.Close()
}

// IsClosed returns true after Close.
func (l *Listener) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Notifier implements driver.Notifier using database/sql.
type Notifier struct {
	db *sql.DB
}

// Notify sends a notification on the specified channel.
func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

var (
	_ driver.Listener = (*Listener)(nil)
	_ driver.Notifier = (*Notifier)(nil)
)
