// Package progress implements the pipeline's append-and-broadcast event bus.
//
// Every pipeline stage reports through a single Bus: Log appends a structured
// entry, UpdateProgress replaces the current stage/step/percentage snapshot
// (and also logs it). Each write goes three ways:
//
//   - a console sink (io.Writer) with a level-specific marker,
//   - a capped ring of the most recent entries, returned with the final
//     pipeline result,
//   - every registered subscriber, invoked synchronously with the current
//     snapshot.
//
// The pipeline is the only writer. Subscribers must be cheap and
// non-blocking; the bus owns no backpressure of its own, so a subscriber
// forwarding to a sink that can stall must decouple itself (e.g. a bounded
// queue). Subscriber registration/removal is synchronized so a streaming
// surface can attach and detach while a run is in flight.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level classifies a log entry.
type Level string

const (
	LevelInfo     Level = "info"
	LevelSuccess  Level = "success"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelProgress Level = "progress"
	LevelData     Level = "data"
)

// marker returns the console prefix for a level.
func (l Level) marker() string {
	switch l {
	case LevelSuccess:
		return "[ok]"
	case LevelWarning:
		return "[warn]"
	case LevelError:
		return "[error]"
	case LevelProgress:
		return "[>>]"
	case LevelData:
		return "[data]"
	default:
		return "[info]"
	}
}

// Event is one structured log/status entry.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	Stage      string    `json:"stage"`
	Step       string    `json:"step"`
	Percentage int       `json:"percentage"`
}

// Snapshot is the current progress state handed to subscribers alongside the
// entry that produced it.
type Snapshot struct {
	Stage      string
	Step       string
	Percentage int
	Detail     string
	Latest     Event
}

// Subscriber receives every event synchronously, in emission order.
type Subscriber func(Snapshot)

// RingSize is the number of entries retained for the final result. Forwarding
// to subscribers is unbounded; only the returned log is capped.
const RingSize = 100

// Bus is the single-writer, multi-reader progress log.
//
// The zero value is not usable; construct with NewBus.
type Bus struct {
	console io.Writer
	now     func() time.Time

	mu    sync.Mutex
	ring  []Event
	start int // ring head when full
	full  bool

	stage      string
	step       string
	percentage int
	detail     string

	subs   map[int]Subscriber
	nextID int
}

// NewBus creates a Bus writing console output to w. A nil w discards console
// output (entries are still retained and broadcast).
func NewBus(w io.Writer) *Bus {
	if w == nil {
		w = io.Discard
	}
	return &Bus{
		console: w,
		now:     time.Now,
		ring:    make([]Event, 0, RingSize),
		subs:    make(map[int]Subscriber),
	}
}

// Subscribe registers fn and returns a handle for Unsubscribe. Safe to call
// while a run is emitting.
func (b *Bus) Subscribe(fn Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return id
}

// Unsubscribe removes a previously registered subscriber. Unknown handles are
// ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Log appends one entry at the given level, stamped with the current
// stage/step/percentage snapshot.
func (b *Bus) Log(level Level, message, detail string) {
	b.mu.Lock()
	ev := Event{
		Timestamp:  b.now(),
		Level:      level,
		Message:    message,
		Detail:     detail,
		Stage:      b.stage,
		Step:       b.step,
		Percentage: b.percentage,
	}
	b.appendLocked(ev)
	snap, subs := b.snapshotLocked(ev)
	b.mu.Unlock()

	b.emit(ev, snap, subs)
}

// UpdateProgress replaces the snapshot and logs the transition at
// LevelProgress. Percentage is clamped to 0..100.
func (b *Bus) UpdateProgress(stage, step string, percentage int, detail string) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	b.mu.Lock()
	b.stage = stage
	b.step = step
	b.percentage = percentage
	b.detail = detail

	ev := Event{
		Timestamp:  b.now(),
		Level:      LevelProgress,
		Message:    step,
		Detail:     detail,
		Stage:      stage,
		Step:       step,
		Percentage: percentage,
	}
	b.appendLocked(ev)
	snap, subs := b.snapshotLocked(ev)
	b.mu.Unlock()

	b.emit(ev, snap, subs)
}

// Entries returns the retained entries, oldest first, never more than
// RingSize.
func (b *Bus) Entries() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]Event(nil), b.ring...)
	}
	out := make([]Event, 0, RingSize)
	out = append(out, b.ring[b.start:]...)
	out = append(out, b.ring[:b.start]...)
	return out
}

// Current returns the latest snapshot without appending anything.
func (b *Bus) Current() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Stage:      b.stage,
		Step:       b.step,
		Percentage: b.percentage,
		Detail:     b.detail,
	}
	if n := len(b.ring); n > 0 {
		if b.full {
			idx := b.start - 1
			if idx < 0 {
				idx = RingSize - 1
			}
			snap.Latest = b.ring[idx]
		} else {
			snap.Latest = b.ring[n-1]
		}
	}
	return snap
}

func (b *Bus) appendLocked(ev Event) {
	if len(b.ring) < RingSize {
		b.ring = append(b.ring, ev)
		return
	}
	b.full = true
	b.ring[b.start] = ev
	b.start = (b.start + 1) % RingSize
}

func (b *Bus) snapshotLocked(ev Event) (Snapshot, []Subscriber) {
	snap := Snapshot{
		Stage:      b.stage,
		Step:       b.step,
		Percentage: b.percentage,
		Detail:     b.detail,
		Latest:     ev,
	}
	subs := make([]Subscriber, 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	return snap, subs
}

// emit writes console output and invokes subscribers outside the lock so a
// subscriber cannot deadlock the bus by calling back into it.
func (b *Bus) emit(ev Event, snap Snapshot, subs []Subscriber) {
	if ev.Detail != "" {
		fmt.Fprintf(b.console, "%s %s (%s)\n", ev.Level.marker(), ev.Message, ev.Detail)
	} else {
		fmt.Fprintf(b.console, "%s %s\n", ev.Level.marker(), ev.Message)
	}
	for _, fn := range subs {
		fn(snap)
	}
}
