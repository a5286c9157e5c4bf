// Package flowlog holds the ordered state-entry history of a single ticket.
package flowlog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidEvent    = errors.New("invalid status event")
	ErrUnknownSequence = errors.New("unknown event sequence")
	ErrDurationSet     = errors.New("event duration already set")
)

// ValidationError reports the field and value that caused Append to reject
// an event.
type ValidationError struct {
	Field string
	Value any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s %v", ErrInvalidEvent, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEvent
}

// StatusEvent records the moment a ticket entered a state. Duration stays
// nil until the following entry, or the current time, is known.
type StatusEvent struct {
	EnteredAt time.Time `json:"enteredAt"`
	State     string    `json:"state"`
	Duration  *int64    `json:"duration,omitempty"`
}

type entry struct {
	StatusEvent
	seq int
}

// FlowLog is an append-only sequence of StatusEvents kept in ascending
// EnteredAt order. Entries with equal timestamps keep their append order.
type FlowLog struct {
	entries []entry
	nextSeq int
}

// New returns an empty log.
func New() *FlowLog {
	return &FlowLog{}
}

// Append validates e, inserts it and re-sorts the log. The returned
// sequence number identifies the entry for SetDuration.
func (l *FlowLog) Append(e StatusEvent) (int, error) {
	if e.EnteredAt.IsZero() {
		return 0, &ValidationError{Field: "enteredAt", Value: e.EnteredAt}
	}
	state := strings.TrimSpace(e.State)
	if state == "" {
		return 0, &ValidationError{Field: "state", Value: fmt.Sprintf("%q", e.State)}
	}

	seq := l.nextSeq
	l.nextSeq++

	ev := StatusEvent{EnteredAt: e.EnteredAt, State: state}
	if e.Duration != nil {
		d := *e.Duration
		ev.Duration = &d
	}
	l.entries = append(l.entries, entry{StatusEvent: ev, seq: seq})
	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].EnteredAt.Before(l.entries[j].EnteredAt)
	})
	return seq, nil
}

// SetDuration fixes the duration of the entry identified by seq. A duration
// can only be set once.
func (l *FlowLog) SetDuration(seq int, d int64) error {
	for i := range l.entries {
		if l.entries[i].seq != seq {
			continue
		}
		if l.entries[i].Duration != nil {
			return fmt.Errorf("%w: %s at %s", ErrDurationSet, l.entries[i].State, l.entries[i].EnteredAt.Format(time.RFC3339))
		}
		l.entries[i].Duration = &d
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
}

// Len returns the number of entries.
func (l *FlowLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Entries returns a copy of the log in chronological order.
func (l *FlowLog) Entries() []StatusEvent {
	if l == nil {
		return nil
	}
	out := make([]StatusEvent, len(l.entries))
	for i, e := range l.entries {
		out[i] = copyEvent(e.StatusEvent)
	}
	return out
}

// Last returns the most recent entry.
func (l *FlowLog) Last() (StatusEvent, bool) {
	if l.Len() == 0 {
		return StatusEvent{}, false
	}
	return copyEvent(l.entries[len(l.entries)-1].StatusEvent), true
}

// LastEntered returns the most recent entry for state. States are compared
// exactly.
func (l *FlowLog) LastEntered(state string) (StatusEvent, bool) {
	for i := l.Len() - 1; i >= 0; i-- {
		if l.entries[i].State == state {
			return copyEvent(l.entries[i].StatusEvent), true
		}
	}
	return StatusEvent{}, false
}

// DurationMap sums durations per state. Entries whose duration is not yet
// known count as zero.
func (l *FlowLog) DurationMap() map[string]int64 {
	out := make(map[string]int64)
	for i := 0; i < l.Len(); i++ {
		e := l.entries[i]
		var d int64
		if e.Duration != nil {
			d = *e.Duration
		}
		out[e.State] += d
	}
	return out
}

// Clone returns an independent copy of the log.
func (l *FlowLog) Clone() *FlowLog {
	if l == nil {
		return New()
	}
	c := &FlowLog{entries: make([]entry, len(l.entries)), nextSeq: l.nextSeq}
	for i, e := range l.entries {
		c.entries[i] = entry{StatusEvent: copyEvent(e.StatusEvent), seq: e.seq}
	}
	return c
}

func copyEvent(e StatusEvent) StatusEvent {
	if e.Duration != nil {
		d := *e.Duration
		e.Duration = &d
	}
	return e
}
