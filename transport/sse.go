package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/youssefsiam38/arenawatch/streaming"
	"github.com/youssefsiam38/arenawatch/types"
)

// DefaultSSEPath is the platform's match stream endpoint.
const DefaultSSEPath = "/bruh"

// SSE dials match streams over server-sent events.
type SSE struct {
	baseURL      string
	path         string
	client       *http.Client
	maxFrameSize int
}

// SSEOption configures an SSE dialer.
type SSEOption func(*SSE)

// WithSSEPath overrides the stream endpoint path.
func WithSSEPath(path string) SSEOption {
	return func(s *SSE) { s.path = path }
}

// WithMaxFrameSize bounds a single SSE line.
func WithMaxFrameSize(n int) SSEOption {
	return func(s *SSE) {
		if n > 0 {
			s.maxFrameSize = n
		}
	}
}

// NewSSE creates an SSE dialer for the platform at baseURL. A nil client
// uses http.DefaultClient.
func NewSSE(baseURL string, client *http.Client, opts ...SSEOption) *SSE {
	if client == nil {
		client = http.DefaultClient
	}
	s := &SSE{
		baseURL:      strings.TrimRight(baseURL, "/"),
		path:         DefaultSSEPath,
		client:       client,
		maxFrameSize: streaming.DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the stream URL for a selector.
func (s *SSE) URL(sel types.Selector) (string, error) {
	req, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	return s.baseURL + s.path + "?req=" + url.QueryEscape(string(req)), nil
}

// Dial opens the stream. The connection lives until Close or until ctx is
// cancelled.
func (s *SSE) Dial(ctx context.Context, sel types.Selector) (Conn, error) {
	target, err := s.URL(sel)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrHandshake, resp.Status)
	}

	c := &sseConn{
		pump:   newPump(),
		cancel: cancel,
		body:   resp.Body,
	}
	go c.read(streaming.NewReaderSize(resp.Body, s.maxFrameSize))
	return c, nil
}

type sseConn struct {
	*pump
	cancel context.CancelFunc
	body   io.Closer
	once   sync.Once
}

func (c *sseConn) read(r *streaming.Reader) {
	for {
		frame, err := r.Next()
		if err != nil {
			c.send(result{err: err})
			return
		}
		// Named events other than "message" never reach an EventSource's
		// onmessage handler.
		if len(frame.Data) == 0 || (frame.Event != "" && frame.Event != "message") {
			continue
		}
		if !c.send(result{payload: frame.Data}) {
			return
		}
	}
}

func (c *sseConn) Next(ctx context.Context) ([]byte, error) {
	return c.next(ctx)
}

func (c *sseConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		c.body.Close()
	})
	return nil
}
