package graph

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Runner executes nodes and keeps the table of named top-level nodes.
type Runner struct {
	logger logging.Logger

	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewRunner creates a runner that logs through logger.
func NewRunner(logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runner{
		logger: logger.WithComponent("graph"),
		nodes:  make(map[string]*Node),
	}
}

// Register makes n invocable by name. Registering a name twice replaces the
// earlier node.
func (r *Runner) Register(nodes ...*Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range nodes {
		r.nodes[n.name] = n
	}
}

// Lookup returns the registered node called name.
func (r *Runner) Lookup(name string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	if !ok {
		return nil, errors.NewValidationError(errors.ErrCodeUnknownNode, fmt.Sprintf("unknown node %q", name))
	}
	return n, nil
}

// Names returns the registered node names in sorted order.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNamed runs the registered node called name.
func (r *Runner) RunNamed(ctx context.Context, name string) error {
	n, err := r.Lookup(name)
	if err != nil {
		return err
	}
	return r.Run(ctx, n)
}

// Run executes n and reports the first failure of a sequence or every
// failure of a parallel group.
func (r *Runner) Run(ctx context.Context, n *Node) error {
	switch n.kind {
	case KindStage:
		return r.runStage(ctx, n)
	case KindSequence:
		return r.runSequence(ctx, n)
	case KindParallel:
		return r.runParallel(ctx, n)
	default:
		return errors.NewInternalError(errors.ErrCodeInternal, "unknown node kind "+n.kind.String(), nil)
	}
}

func (r *Runner) runStage(ctx context.Context, n *Node) error {
	op := logging.StartOperation(r.logger.With("stage", n.name), "stage")
	op.Debug(ctx, "Stage started")

	err := n.stage.Run(ctx)
	if err != nil {
		err = errors.Wrap(err, n.name)
	}
	op.Finish(ctx, err)

	return err
}

func (r *Runner) runSequence(ctx context.Context, n *Node) error {
	for _, child := range n.children {
		if err := r.Run(ctx, child); err != nil {
			return fmt.Errorf("%s: %w", n.name, err)
		}
	}
	return nil
}

func (r *Runner) runParallel(ctx context.Context, n *Node) error {
	// a plain Group: one failing child must not cancel its siblings
	var g errgroup.Group
	errs := make([]error, len(n.children))

	for i, child := range n.children {
		i, child := i, child
		g.Go(func() error {
			errs[i] = r.Run(ctx, child)
			return errs[i]
		})
	}
	_ = g.Wait()

	if joined := stderrors.Join(errs...); joined != nil {
		return fmt.Errorf("%s: %w", n.name, joined)
	}
	return nil
}
