package driver

import "context"

// Notification is one PostgreSQL NOTIFY.
type Notification struct {
	Channel string
	Payload string
}

// Listener holds a dedicated LISTEN connection.
type Listener interface {
	// Listen subscribes to a channel.
	Listen(ctx context.Context, channel string) error

	// Unlisten drops a channel subscription.
	Unlisten(ctx context.Context, channel string) error

	// UnlistenAll drops every subscription.
	UnlistenAll(ctx context.Context) error

	// WaitForNotification blocks until a notification arrives, ctx is
	// done or the connection fails.
	WaitForNotification(ctx context.Context) (*Notification, error)

	// Ping checks the connection.
	Ping(ctx context.Context) error

	// Close releases the connection. The listener cannot be reused.
	Close(ctx context.Context) error

	IsClosed() bool
}

// Notifier sends NOTIFY through the pool.
type Notifier interface {
	Notify(ctx context.Context, channel, payload string) error
}

// Notification channels used by the archive. Payloads are match IDs.
const (
	// ChannelMatchStarted is notified when a match is first recorded.
	ChannelMatchStarted = "arenawatch_match_started"

	// ChannelMatchArchived is notified once a match is finished and all of
	// its deltas are stored.
	ChannelMatchArchived = "arenawatch_match_archived"
)
