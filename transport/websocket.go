package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/youssefsiam38/arenawatch/types"
)

// DefaultWebSocketPort is the game reporter's spectator port.
const DefaultWebSocketPort = 42070

// WebSocket dials the game reporter's spectator socket. The selector is
// sent as the first text message; every later text message is a payload.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
}

// NewWebSocket creates a dialer for the socket at url (ws:// or wss://).
// A nil dialer uses websocket.DefaultDialer.
func NewWebSocket(url string, dialer *websocket.Dialer) *WebSocket {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebSocket{url: url, dialer: dialer}
}

// Dial opens the socket and sends the selector.
func (w *WebSocket) Dial(ctx context.Context, sel types.Selector) (Conn, error) {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrHandshake, resp.Status, err)
		}
		return nil, fmt.Errorf("dial spectator socket: %w", err)
	}

	req, err := json.Marshal(sel)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("encode selector: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send selector: %w", err)
	}

	c := &wsConn{pump: newPump(), conn: conn}
	go c.read()
	return c, nil
}

type wsConn struct {
	*pump
	conn *websocket.Conn
	once sync.Once
}

func (c *wsConn) read() {
	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = io.EOF
			}
			c.send(result{err: err})
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if !c.send(result{payload: payload}) {
			return
		}
	}
}

func (c *wsConn) Next(ctx context.Context) ([]byte, error) {
	return c.next(ctx)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}
