package watcher

import (
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. Events added within delay
// of each other are delivered as one batch, deduplicated by path with the
// latest event kept and first-seen order preserved.
type Debouncer struct {
	delay   time.Duration
	flushFn func(events []ChangeEvent)
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
	stopped bool
}

// NewDebouncer creates a debouncer that calls fn with each batch.
func NewDebouncer(delay time.Duration, fn func(events []ChangeEvent)) *Debouncer {
	return &Debouncer{delay: delay, flushFn: fn}
}

// Add queues an event and restarts the quiet period.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// Stop drops pending events and prevents further flushes.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mutex.Unlock()
		return
	}
	events := dedupe(d.pending)
	d.pending = nil
	d.mutex.Unlock()

	d.flushFn(events)
}

func dedupe(pending []ChangeEvent) []ChangeEvent {
	index := make(map[string]int, len(pending))
	events := make([]ChangeEvent, 0, len(pending))
	for _, event := range pending {
		if i, ok := index[event.Path]; ok {
			events[i] = event
			continue
		}
		index[event.Path] = len(events)
		events = append(events, event)
	}
	return events
}
