package streaming

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestAccumulator_Feed(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		wantData  string
		wantEvent string
		wantFrame bool
	}{
		{
			name:      "single data line",
			lines:     []string{`data: {"kind":"end","data":null}`, ""},
			wantData:  `{"kind":"end","data":null}`,
			wantFrame: true,
		},
		{
			name:      "multi-line data joined with newline",
			lines:     []string{"data: a", "data: b", ""},
			wantData:  "a\nb",
			wantFrame: true,
		},
		{
			name:      "no space after colon",
			lines:     []string{"data:x", ""},
			wantData:  "x",
			wantFrame: true,
		},
		{
			name:      "event name kept",
			lines:     []string{"event: stats", "data: 1", ""},
			wantData:  "1",
			wantEvent: "stats",
			wantFrame: true,
		},
		{
			name:      "comments ignored",
			lines:     []string{": keepalive", ""},
			wantFrame: false,
		},
		{
			name:      "blank line without data does not dispatch",
			lines:     []string{"event: ping", ""},
			wantFrame: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator()
			var got *Frame
			for _, line := range tt.lines {
				if f, ok := acc.Feed(line); ok {
					got = f
				}
			}

			if (got != nil) != tt.wantFrame {
				t.Fatalf("frame dispatched = %v, want %v", got != nil, tt.wantFrame)
			}
			if got == nil {
				return
			}
			if string(got.Data) != tt.wantData {
				t.Errorf("Data = %q, want %q", got.Data, tt.wantData)
			}
			if got.Event != tt.wantEvent {
				t.Errorf("Event = %q, want %q", got.Event, tt.wantEvent)
			}
		})
	}
}

func TestAccumulator_Retry(t *testing.T) {
	acc := NewAccumulator()
	acc.Feed("retry: 1500")
	acc.Feed("data: x")
	f, ok := acc.Feed("")
	if !ok {
		t.Fatal("expected frame")
	}
	if f.Retry != 1500*time.Millisecond {
		t.Errorf("Retry = %v, want 1.5s", f.Retry)
	}
}

func TestReader_Next(t *testing.T) {
	stream := "data: one\n\n: comment\r\ndata: two\r\n\r\ndata: partial\n"
	r := NewReader(strings.NewReader(stream))

	f, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(f.Data) != "one" {
		t.Errorf("first frame = %q, want one", f.Data)
	}

	f, err = r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(f.Data) != "two" {
		t.Errorf("second frame = %q, want two", f.Data)
	}

	// The trailing frame never saw its blank line.
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestReader_LineTooLong(t *testing.T) {
	stream := "data: " + strings.Repeat("x", 128) + "\n\n"
	r := NewReaderSize(strings.NewReader(stream), 32)

	if _, err := r.Next(); !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("Next() error = %v, want bufio.ErrTooLong", err)
	}
}

func TestReader_LineWithinLimit(t *testing.T) {
	stream := "data: " + strings.Repeat("x", 20) + "\n\n"
	r := NewReaderSize(strings.NewReader(stream), 32)

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(frame.Data) != strings.Repeat("x", 20) {
		t.Errorf("Data = %q", frame.Data)
	}
}
