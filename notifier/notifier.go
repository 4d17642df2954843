// Package notifier delivers archive events over PostgreSQL LISTEN/NOTIFY.
//
// The recorder NOTIFYs when a match is first stored and again once it is
// archived; a Notifier turns those into typed events for subscribers on
// any process sharing the database. A lost listener connection is
// re-established after ReconnectDelay.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/driver"
)

// EventType represents the type of event.
type EventType string

// Event types that can be subscribed to.
const (
	EventMatchStarted  EventType = "match_started"
	EventMatchArchived EventType = "match_archived"
)

// Event is one received notification.
type Event struct {
	Type EventType

	// MatchID is parsed from the notification payload.
	MatchID uuid.UUID

	ReceivedAt time.Time
}

// Handler is called when an event is received.
type Handler func(event *Event)

// Config holds configuration for the notifier.
type Config struct {
	// ReconnectDelay is how long to wait before reconnecting after a disconnect.
	// Default: 5 seconds
	ReconnectDelay time.Duration

	// OnError is called when an error occurs.
	OnError func(err error)

	// OnReconnect is called when the listener reconnects.
	OnReconnect func()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ReconnectDelay: 5 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
}

var channels = map[EventType]string{
	EventMatchStarted:  driver.ChannelMatchStarted,
	EventMatchArchived: driver.ChannelMatchArchived,
}

func eventForChannel(channel string) (EventType, bool) {
	for t, c := range channels {
		if c == channel {
			return t, true
		}
	}
	return "", false
}

type subscription struct {
	id      int64
	handler Handler
}

// Notifier sends and receives archive events.
type Notifier struct {
	getListener func(ctx context.Context) (driver.Listener, error)
	sender      driver.Notifier
	config      Config

	mu     sync.RWMutex
	subs   map[EventType][]subscription
	nextID int64

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewNotifier creates a notifier. A nil getListener makes it send-only; a
// nil sender makes Notify return ErrNotifyNotSupported.
func NewNotifier(
	getListener func(ctx context.Context) (driver.Listener, error),
	sender driver.Notifier,
	config *Config,
) *Notifier {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.applyDefaults()

	return &Notifier{
		getListener: getListener,
		sender:      sender,
		config:      cfg,
		subs:        make(map[EventType][]subscription),
	}
}

// FromDriver builds a notifier over a driver's listener and notifier.
func FromDriver[TTx any](d driver.Driver[TTx], config *Config) *Notifier {
	var getListener func(ctx context.Context) (driver.Listener, error)
	if d.SupportsListener() {
		getListener = d.GetListener
	}
	var sender driver.Notifier
	if d.SupportsNotify() {
		sender = d.GetNotifier()
	}
	return NewNotifier(getListener, sender, config)
}

// Start begins listening for notifications.
func (n *Notifier) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	n.done = make(chan struct{})
	ctx, n.cancel = context.WithCancel(ctx)
	go n.run(ctx)

	return nil
}

// Stop stops the notifier.
func (n *Notifier) Stop(ctx context.Context) error {
	if !n.started.Load() {
		return ErrNotStarted
	}

	n.cancel()
	select {
	case <-n.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	n.started.Store(false)
	return nil
}

// Subscribe registers a handler for eventType and returns a function that
// removes it.
func (n *Notifier) Subscribe(eventType EventType, handler Handler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.subs[eventType] = append(n.subs[eventType], subscription{id: id, handler: handler})

	return func() {
		n.unsubscribe(eventType, id)
	}
}

func (n *Notifier) unsubscribe(eventType EventType, id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subs[eventType]
	for i, sub := range subs {
		if sub.id == id {
			n.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Notify sends an event for matchID.
func (n *Notifier) Notify(ctx context.Context, eventType EventType, matchID uuid.UUID) error {
	if n.sender == nil {
		return ErrNotifyNotSupported
	}

	channel, ok := channels[eventType]
	if !ok {
		return ErrUnknownEventType
	}

	return n.sender.Notify(ctx, channel, matchID.String())
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)

	for {
		err := n.listenLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil && n.config.OnError != nil {
			n.config.OnError(err)
		}

		timer := time.NewTimer(n.config.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if n.config.OnReconnect != nil {
				n.config.OnReconnect()
			}
		}
	}
}

// listenLoop holds one listener and dispatches its notifications until it
// fails.
func (n *Notifier) listenLoop(ctx context.Context) error {
	if n.getListener == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	listener, err := n.getListener(ctx)
	if err != nil {
		return fmt.Errorf("notifier: get listener: %w", err)
	}
	if listener == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	defer func() { _ = listener.Close(context.WithoutCancel(ctx)) }()

	for _, channel := range channels {
		if err := listener.Listen(ctx, channel); err != nil {
			return fmt.Errorf("notifier: listen %s: %w", channel, err)
		}
	}

	for {
		notification, err := listener.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		eventType, ok := eventForChannel(notification.Channel)
		if !ok {
			continue
		}
		matchID, err := uuid.Parse(notification.Payload)
		if err != nil {
			if n.config.OnError != nil {
				n.config.OnError(fmt.Errorf("%w: %q on %s", ErrInvalidPayload, notification.Payload, notification.Channel))
			}
			continue
		}

		n.dispatch(&Event{
			Type:       eventType,
			MatchID:    matchID,
			ReceivedAt: time.Now(),
		})
	}
}

// dispatch calls handlers synchronously in subscription order.
func (n *Notifier) dispatch(event *Event) {
	n.mu.RLock()
	subs := n.subs[event.Type]
	n.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(event)
	}
}

// IsRunning returns true if the notifier is running.
func (n *Notifier) IsRunning() bool {
	return n.started.Load()
}
