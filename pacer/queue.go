package pacer

import (
	"encoding/json"
)

// EntryKind distinguishes queued deltas from the end of a match.
type EntryKind string

const (
	// EntryUpdate is a renderer delta.
	EntryUpdate EntryKind = "update"

	// EntryEnd closes the match.
	EntryEnd EntryKind = "end"
)

// Entry is one queued item.
type Entry struct {
	Kind EntryKind
	Data json.RawMessage

	// Replayed marks entries taken from a connect history.
	Replayed bool
}

// Queue is a FIFO of entries.
type Queue struct {
	items []Entry
	head  int
}

// Push appends an entry.
func (q *Queue) Push(e Entry) {
	q.items = append(q.items, e)
}

// Peek returns the front entry without removing it.
func (q *Queue) Peek() (Entry, bool) {
	if q.head >= len(q.items) {
		return Entry{}, false
	}
	return q.items[q.head], true
}

// Pop removes and returns the front entry.
func (q *Queue) Pop() (Entry, bool) {
	e, ok := q.Peek()
	if !ok {
		return Entry{}, false
	}
	q.items[q.head] = Entry{}
	q.head++

	// Compact once the consumed prefix dominates.
	if q.head > 32 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return e, true
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// Clear drops every entry.
func (q *Queue) Clear() {
	q.items = nil
	q.head = 0
}
