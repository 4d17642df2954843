package pacer

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type release struct {
	entry Entry
	at    time.Time
}

// recordingDispatcher records every dispatch with the clock time.
type recordingDispatcher struct {
	clock    Clock
	noWait   map[string]bool
	failOn   map[string]error
	releases []release
}

func newRecordingDispatcher(clock Clock) *recordingDispatcher {
	return &recordingDispatcher{
		clock:  clock,
		noWait: make(map[string]bool),
		failOn: make(map[string]error),
	}
}

func (d *recordingDispatcher) ShouldWait(e Entry) bool {
	return !d.noWait[string(e.Data)]
}

func (d *recordingDispatcher) Dispatch(e Entry) error {
	d.releases = append(d.releases, release{entry: e, at: d.clock.Now()})
	return d.failOn[string(e.Data)]
}

func update(s string) Entry {
	return Entry{Kind: EntryUpdate, Data: json.RawMessage(strconv.Quote(s))}
}

func TestPacer_ReleasesInOrderAtMinDelay(t *testing.T) {
	clock := NewManualClock(epoch)
	d := newRecordingDispatcher(clock)
	p := New(clock, d, &Config{MinDelay: 250 * time.Millisecond})

	p.Enqueue(update("a"))
	p.Enqueue(update("b"))
	p.Enqueue(update("c"))

	clock.Advance(0)
	if len(d.releases) != 0 {
		t.Fatalf("released %d entries before min delay", len(d.releases))
	}

	clock.Advance(time.Second)

	if len(d.releases) != 3 {
		t.Fatalf("released %d entries, want 3", len(d.releases))
	}
	wantAt := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 750 * time.Millisecond}
	for i, r := range d.releases {
		if string(r.entry.Data) != strconv.Quote(string(rune('a'+i))) {
			t.Errorf("release %d = %s, out of order", i, r.entry.Data)
		}
		if got := r.at.Sub(epoch); got != wantAt[i] {
			t.Errorf("release %d at %v, want %v", i, got, wantAt[i])
		}
	}
}

func TestPacer_NoWaitEntriesBypassDelay(t *testing.T) {
	clock := NewManualClock(epoch)
	d := newRecordingDispatcher(clock)
	d.noWait[`"grid"`] = true
	p := New(clock, d, nil)

	p.Enqueue(update("grid"))
	p.Enqueue(update("grid"))
	p.Enqueue(update("grid"))

	clock.Advance(0)

	if len(d.releases) != 3 {
		t.Fatalf("released %d entries, want 3 immediately", len(d.releases))
	}
	for _, r := range d.releases {
		if !r.at.Equal(epoch) {
			t.Errorf("released at %v, want %v", r.at, epoch)
		}
	}
}

func TestPacer_EndEntriesAlwaysWait(t *testing.T) {
	clock := NewManualClock(epoch)
	d := newRecordingDispatcher(clock)
	d.noWait[""] = true
	p := New(clock, d, nil)

	p.Enqueue(Entry{Kind: EntryEnd})
	clock.Advance(0)
	if len(d.releases) != 0 {
		t.Fatal("end entry released before min delay")
	}

	clock.Advance(DefaultMinDelay)
	if len(d.releases) != 1 || d.releases[0].entry.Kind != EntryEnd {
		t.Fatalf("releases = %+v, want one end entry", d.releases)
	}
}

func TestPacer_EmptyTickDoesNotReschedule(t *testing.T) {
	clock := NewManualClock(epoch)
	d := newRecordingDispatcher(clock)
	p := New(clock, d, nil)

	if err := p.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if p.Pending() || clock.Pending() != 0 {
		t.Error("empty tick scheduled another tick")
	}

	p.Enqueue(update("a"))
	clock.Advance(time.Second)
	if clock.Pending() != 0 {
		t.Errorf("pending timers after drain = %d, want 0", clock.Pending())
	}

	// Idle long enough that the next entry goes out straight away.
	clock.Advance(time.Second)
	p.Enqueue(update("b"))
	clock.Advance(0)
	if len(d.releases) != 2 {
		t.Fatalf("released %d entries, want 2", len(d.releases))
	}
	if got := d.releases[1].at.Sub(epoch); got != 2*time.Second {
		t.Errorf("second release at %v, want 2s", got)
	}
}

func TestPacer_DispatchErrorConsumesEntry(t *testing.T) {
	clock := NewManualClock(epoch)
	d := newRecordingDispatcher(clock)
	boom := errors.New("boom")
	d.failOn[`"bad"`] = boom

	var reported []error
	p := New(clock, d, &Config{
		MinDelay: 100 * time.Millisecond,
		OnError:  func(err error) { reported = append(reported, err) },
	})

	p.Enqueue(update("bad"))
	p.Enqueue(update("good"))
	clock.Advance(time.Second)

	if len(reported) != 1 || !errors.Is(reported[0], boom) {
		t.Fatalf("reported = %v, want [boom]", reported)
	}
	if len(d.releases) != 2 {
		t.Fatalf("released %d entries, want 2 (no retry)", len(d.releases))
	}
	if string(d.releases[1].entry.Data) != `"good"` {
		t.Errorf("second release = %s, want good", d.releases[1].entry.Data)
	}
}

func TestPacer_ResetDropsQueueAndTimer(t *testing.T) {
	clock := NewManualClock(epoch)
	d := newRecordingDispatcher(clock)
	p := New(clock, d, nil)

	p.Enqueue(update("a"))
	p.Enqueue(update("b"))
	clock.Advance(0)

	p.Reset()
	if p.Len() != 0 {
		t.Errorf("Len() after Reset = %d", p.Len())
	}
	clock.Advance(time.Second)
	if len(d.releases) != 0 {
		t.Errorf("released %d entries after Reset", len(d.releases))
	}
}

func TestPacer_StopIgnoresEnqueue(t *testing.T) {
	clock := NewManualClock(epoch)
	d := newRecordingDispatcher(clock)
	p := New(clock, d, nil)

	p.Stop()
	p.Enqueue(update("a"))
	clock.Advance(time.Second)

	if len(d.releases) != 0 {
		t.Error("stopped pacer released an entry")
	}
	if err := p.Tick(); !errors.Is(err, ErrStopped) {
		t.Errorf("Tick() error = %v, want ErrStopped", err)
	}
}

// Randomised arrivals and wait hints: releases stay FIFO, and a waiting
// entry never follows the previous release by less than the minimum delay.
func TestPacer_PacingProperty(t *testing.T) {
	const minDelay = 250 * time.Millisecond
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 20; run++ {
		clock := NewManualClock(epoch)
		d := newRecordingDispatcher(clock)
		p := New(clock, d, &Config{MinDelay: minDelay})

		n := 5 + rng.Intn(30)
		for i := 0; i < n; i++ {
			name := strconv.Itoa(i)
			if rng.Intn(3) == 0 {
				d.noWait[strconv.Quote(name)] = true
			}
			p.Enqueue(update(name))
			clock.Advance(time.Duration(rng.Intn(300)) * time.Millisecond)
		}
		clock.Advance(time.Duration(n) * minDelay)

		if len(d.releases) != n {
			t.Fatalf("run %d: released %d of %d", run, len(d.releases), n)
		}
		for i, r := range d.releases {
			if string(r.entry.Data) != strconv.Quote(strconv.Itoa(i)) {
				t.Fatalf("run %d: release %d = %s, out of order", run, i, r.entry.Data)
			}
			if i == 0 || d.noWait[string(r.entry.Data)] {
				continue
			}
			if gap := r.at.Sub(d.releases[i-1].at); gap < minDelay {
				t.Fatalf("run %d: release %d only %v after previous", run, i, gap)
			}
		}
	}
}
