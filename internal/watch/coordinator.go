// Package watch maps file changes to task graph nodes. Each binding pairs a
// set of glob patterns with the node to run when a matching file changes.
// Runs of one binding are serialized in event order; different bindings run
// independently of each other.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

// StageName is the name the coordinator runs under in the task graph.
const StageName = "watch-coordinator"

// Binding ties glob patterns to the node rebuilt when a matching file
// changes.
type Binding struct {
	Name     string
	Patterns []string
	Node     *graph.Node
}

// Matches reports whether path matches one of the binding's patterns.
func (b Binding) Matches(path string) bool {
	path = filepath.Clean(path)
	for _, pattern := range b.Patterns {
		if ok, _ := doublestar.PathMatch(filepath.Clean(pattern), path); ok {
			return true
		}
	}
	return false
}

// Runner executes graph nodes.
type Runner interface {
	Run(ctx context.Context, n *graph.Node) error
}

// Options tune a Coordinator.
type Options struct {
	// Debounce coalesces events of one binding arriving within the window
	// into a single run. Zero runs once per event.
	Debounce time.Duration
	// Status receives run results; nil creates a private board.
	Status *Status
}

// Coordinator watches the bindings' directories and dispatches runs. It
// implements graph.Stage so it can sit in the watch node next to the dev
// server.
type Coordinator struct {
	bindings []Binding
	runner   Runner
	handler  *errors.ErrorHandler
	logger   logging.Logger
	status   *Status
	opts     Options

	mu      sync.Mutex
	workers map[string]*worker
	stopped bool
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator. Bindings are fixed for its lifetime.
func NewCoordinator(bindings []Binding, runner Runner, logger logging.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("watch")
	status := opts.Status
	if status == nil {
		status = NewStatus()
	}
	return &Coordinator{
		bindings: bindings,
		runner:   runner,
		handler:  errors.NewErrorHandler(logger),
		logger:   logger,
		status:   status,
		opts:     opts,
		workers:  make(map[string]*worker),
	}
}

func (c *Coordinator) Name() string { return StageName }

// Outputs is empty; the nodes the coordinator runs declare their own.
func (c *Coordinator) Outputs() []graph.Output { return nil }

// Status returns the board of last results.
func (c *Coordinator) Status() *Status { return c.status }

// Run watches until ctx is cancelled. Node failures are logged and recorded
// and never end the run; only a watcher setup failure does.
func (c *Coordinator) Run(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(c.logger)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "create file watcher", err)
	}
	defer fw.Stop()

	// missing roots are created so outputs that appear later are observed
	for _, dir := range c.roots() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewIOError("", dir, err)
		}
		if err := fw.AddRecursive(dir); err != nil {
			return errors.NewIOError("", dir, err)
		}
	}

	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddHandler(func(event watcher.ChangeEvent) {
		c.Dispatch(ctx, event)
	})

	if err := fw.Start(ctx); err != nil {
		return err
	}
	c.logger.Info(ctx, "Watching for changes", "bindings", len(c.bindings))

	<-ctx.Done()
	c.stop()
	return nil
}

// roots returns the static directory prefix of every pattern, deduplicated.
func (c *Coordinator) roots() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, b := range c.bindings {
		for _, pattern := range b.Patterns {
			// a literal file path splits into its directory
			base, _ := doublestar.SplitPattern(filepath.ToSlash(filepath.Clean(pattern)))
			dir := filepath.FromSlash(base)
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// Dispatch queues a run for every binding the event's path matches.
func (c *Coordinator) Dispatch(ctx context.Context, event watcher.ChangeEvent) {
	for _, b := range c.bindings {
		if b.Matches(event.Path) {
			c.worker(ctx, b).enqueue(event)
		}
	}
}

// Wait blocks until every queued run has finished. It is meant for tests
// and shutdown.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	workers := make([]*worker, 0, len(c.workers))
	for _, w := range c.workers {
		workers = append(workers, w)
	}
	c.mu.Unlock()

	for _, w := range workers {
		w.idle()
	}
}

func (c *Coordinator) worker(ctx context.Context, b Binding) *worker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.workers[b.Name]; ok {
		return w
	}
	w := newWorker(b, c.execute, c.opts.Debounce)
	if c.stopped {
		// events racing shutdown are dropped
		w.close()
		return w
	}
	c.workers[b.Name] = w
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		w.loop(ctx)
	}()
	return w
}

func (c *Coordinator) stop() {
	c.mu.Lock()
	c.stopped = true
	for _, w := range c.workers {
		w.close()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// execute runs the binding's node once.
func (c *Coordinator) execute(ctx context.Context, b Binding, trigger string) {
	started := time.Now()
	op := logging.StartOperation(c.logger.With("binding", b.Name, "trigger", trigger), "rebuild")
	err := c.runner.Run(ctx, b.Node)
	op.Finish(ctx, err)

	if err != nil {
		err = fmt.Errorf("watch %s: %w", b.Name, err)
		c.handler.Handle(ctx, err, "binding", b.Name, "trigger", trigger)
	}
	c.status.Record(Result{
		Binding:  b.Name,
		Trigger:  trigger,
		Started:  started,
		Duration: time.Since(started),
		Err:      err,
	})
}
