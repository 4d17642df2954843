package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/youssefsiam38/arenawatch/types"
)

func TestSSE_URL(t *testing.T) {
	s := NewSSE("http://arena.test/", nil)

	tests := []struct {
		sel  types.Selector
		want string
	}{
		{types.AnyMatch(), "http://arena.test/bruh?req=%22Any%22"},
		{types.WithPlayer(12), "http://arena.test/bruh?req=%7B%22WithPlayer%22%3A12%7D"},
	}
	for _, tt := range tests {
		got, err := s.URL(tt.sel)
		if err != nil {
			t.Fatalf("URL() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("URL(%s) = %q, want %q", tt.sel, got, tt.want)
		}
	}
}

func TestSSE_DialAndRead(t *testing.T) {
	gotReq := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq <- r.URL.Query().Get("req")
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: {\"kind\":\"update\",\n")
		fmt.Fprint(w, "data: \"data\":1}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "event: ping\ndata: {\"kind\":\"end\",\"data\":\"ping\"}\n\n")
		fmt.Fprint(w, "event: message\nid: 2\ndata: {\"kind\":\"end\",\"data\":null}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewSSE(srv.URL, srv.Client()).Dial(ctx, types.WithPlayer(3))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if req := <-gotReq; req != `{"WithPlayer":3}` {
		t.Errorf("server got req = %q", req)
	}

	want := []string{
		"{\"kind\":\"update\",\n\"data\":1}",
		`{"kind":"end","data":null}`,
	}
	for i, w := range want {
		payload, err := conn.Next(ctx)
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if string(payload) != w {
			t.Errorf("Next() #%d = %q, want %q", i, payload, w)
		}
	}

	if _, err := conn.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestSSE_DialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewSSE(srv.URL, srv.Client()).Dial(context.Background(), types.AnyMatch())
	if !errors.Is(err, ErrHandshake) {
		t.Errorf("Dial() error = %v, want ErrHandshake", err)
	}
}

func TestSSE_NextHonoursContextAndClose(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	conn, err := NewSSE(srv.URL, srv.Client()).Dial(context.Background(), types.AnyMatch())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := conn.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want DeadlineExceeded", err)
	}

	conn.Close()
	conn.Close()
	if _, err := conn.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() after Close = %v, want ErrClosed", err)
	}
}

func TestWebSocket_DialAndRead(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotSel := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		gotSel <- string(msg)

		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"update","data":1}`))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := NewWebSocket(wsURL, nil).Dial(ctx, types.AnyMatch())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if sel := <-gotSel; sel != `"Any"` {
		t.Errorf("server got selector %q", sel)
	}

	payload, err := conn.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(payload) != `{"kind":"update","data":1}` {
		t.Errorf("Next() = %q", payload)
	}

	if _, err := conn.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after close frame = %v, want io.EOF", err)
	}
}

func TestDialerFunc(t *testing.T) {
	called := false
	d := DialerFunc(func(ctx context.Context, sel types.Selector) (Conn, error) {
		called = true
		return nil, errors.New("nope")
	})
	if _, err := d.Dial(context.Background(), types.AnyMatch()); err == nil || !called {
		t.Errorf("DialerFunc did not call through: err = %v", err)
	}
}
