package pacer

import (
	"testing"
	"time"
)

func TestManualClock_FiresInDeadlineOrder(t *testing.T) {
	clock := NewManualClock(epoch)
	var order []string

	clock.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	clock.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	clock.AfterFunc(100*time.Millisecond, func() { order = append(order, "b") })

	clock.Advance(200 * time.Millisecond)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order after 200ms = %v, want [a b]", order)
	}
	if got := clock.Now().Sub(epoch); got != 200*time.Millisecond {
		t.Errorf("Now() = +%v, want +200ms", got)
	}

	clock.Advance(200 * time.Millisecond)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("order = %v, want [a b c]", order)
	}
}

func TestManualClock_CallbackSeesDeadline(t *testing.T) {
	clock := NewManualClock(epoch)
	var seen time.Time

	clock.AfterFunc(150*time.Millisecond, func() { seen = clock.Now() })
	clock.Advance(time.Second)

	if !seen.Equal(epoch.Add(150 * time.Millisecond)) {
		t.Errorf("callback saw %v, want deadline", seen)
	}
}

func TestManualClock_ChainedTimersWithinWindow(t *testing.T) {
	clock := NewManualClock(epoch)
	count := 0

	var step func()
	step = func() {
		count++
		if count < 4 {
			clock.AfterFunc(100*time.Millisecond, step)
		}
	}
	clock.AfterFunc(0, step)

	clock.Advance(250 * time.Millisecond)
	if count != 3 {
		t.Errorf("count = %d, want 3 (0ms, 100ms, 200ms)", count)
	}
	if _, ok := clock.NextDeadline(); !ok {
		t.Error("expected the 300ms timer to remain pending")
	}
}

func TestManualClock_Stop(t *testing.T) {
	clock := NewManualClock(epoch)
	fired := false

	timer := clock.AfterFunc(time.Millisecond, func() { fired = true })
	if !timer.Stop() {
		t.Error("Stop() = false for pending timer")
	}
	if timer.Stop() {
		t.Error("second Stop() = true")
	}

	clock.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if clock.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clock.Pending())
	}
}
