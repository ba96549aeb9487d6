package watch

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/sitepipe/internal/watcher"
)

// worker runs one binding serially. Its queue is unbounded so the watch
// loop never blocks and no trigger is dropped.
type worker struct {
	binding Binding
	exec    func(ctx context.Context, b Binding, trigger string)

	mu      sync.Mutex
	queue   []string
	running bool
	closed  bool
	wake    chan struct{}
	idleC   *sync.Cond

	debouncer *watcher.Debouncer
}

func newWorker(b Binding, exec func(context.Context, Binding, string), debounce time.Duration) *worker {
	w := &worker{
		binding: b,
		exec:    exec,
		wake:    make(chan struct{}, 1),
	}
	w.idleC = sync.NewCond(&w.mu)
	if debounce > 0 {
		w.debouncer = watcher.NewDebouncer(debounce, func(events []watcher.ChangeEvent) {
			w.push(events[len(events)-1].Path)
		})
	}
	return w
}

func (w *worker) enqueue(event watcher.ChangeEvent) {
	if w.debouncer != nil {
		w.debouncer.Add(event)
		return
	}
	w.push(event.Path)
}

func (w *worker) push(trigger string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, trigger)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) loop(ctx context.Context) {
	for {
		w.mu.Lock()
		if w.closed {
			w.running = false
			w.idleC.Broadcast()
			w.mu.Unlock()
			return
		}
		if len(w.queue) == 0 {
			w.running = false
			w.idleC.Broadcast()
			w.mu.Unlock()

			select {
			case <-w.wake:
				continue
			case <-ctx.Done():
				w.close()
				continue
			}
		}
		trigger := w.queue[0]
		w.queue = w.queue[1:]
		w.running = true
		w.mu.Unlock()

		w.exec(ctx, w.binding, trigger)
	}
}

// idle blocks until the queue is drained and no run is in progress.
func (w *worker) idle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for (w.running || len(w.queue) > 0) && !w.closed {
		w.idleC.Wait()
	}
}

func (w *worker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.queue = nil
	if w.debouncer != nil {
		w.debouncer.Stop()
	}
	w.idleC.Broadcast()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
