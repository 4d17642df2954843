package streaming

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxFrameSize bounds a single SSE line. Connect envelopes carry the
// whole match history, so this is generous.
const DefaultMaxFrameSize = 4 << 20

// Frame is one dispatched server-sent event.
type Frame struct {
	Event string
	ID    string
	Data  []byte

	// Retry is the reconnection time requested by the server, if any.
	Retry time.Duration
}

// Accumulator accumulates SSE lines into complete frames.
//
// Lines are fed one at a time without their terminator. A blank line
// dispatches the pending frame.
type Accumulator struct {
	event   string
	id      string
	retry   time.Duration
	data    bytes.Buffer
	hasData bool
}

// NewAccumulator creates a new frame accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Feed processes one line. It returns a frame when the line completes one.
func (a *Accumulator) Feed(line string) (*Frame, bool) {
	if line == "" {
		return a.dispatch()
	}

	// Comment
	if strings.HasPrefix(line, ":") {
		return nil, false
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if a.hasData {
			a.data.WriteByte('\n')
		}
		a.data.WriteString(value)
		a.hasData = true
	case "event":
		a.event = value
	case "id":
		if !strings.ContainsRune(value, 0) {
			a.id = value
		}
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			a.retry = time.Duration(ms) * time.Millisecond
		}
	}

	return nil, false
}

// Reset discards any partially accumulated frame.
func (a *Accumulator) Reset() {
	a.event = ""
	a.retry = 0
	a.data.Reset()
	a.hasData = false
}

func (a *Accumulator) dispatch() (*Frame, bool) {
	if !a.hasData {
		a.event = ""
		return nil, false
	}

	frame := &Frame{
		Event: a.event,
		ID:    a.id,
		Data:  bytes.Clone(a.data.Bytes()),
		Retry: a.retry,
	}
	a.Reset()
	return frame, true
}

// Reader reads SSE frames from a stream.
type Reader struct {
	scanner *bufio.Scanner
	acc     *Accumulator
}

// NewReader creates a frame reader over r with the default line limit.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultMaxFrameSize)
}

// NewReaderSize creates a frame reader whose lines may be up to maxLine bytes.
// A non-positive maxLine means DefaultMaxFrameSize.
func NewReaderSize(r io.Reader, maxLine int) *Reader {
	if maxLine <= 0 {
		maxLine = DefaultMaxFrameSize
	}
	scanner := bufio.NewScanner(r)
	// The scanner accepts tokens up to the larger of cap(buf) and max.
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)
	return &Reader{scanner: scanner, acc: NewAccumulator()}
}

// Next returns the next complete frame. It returns io.EOF when the stream
// ends; a frame left incomplete at end of stream is discarded.
func (r *Reader) Next() (*Frame, error) {
	for r.scanner.Scan() {
		if frame, ok := r.acc.Feed(r.scanner.Text()); ok {
			return frame, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
