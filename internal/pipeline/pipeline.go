// Package pipeline assembles sitepipe's task graph from the configuration:
// the stage catalogue, the named nodes compile, build and watch, and the
// watch bindings that map source subtrees to the nodes they rebuild.
package pipeline

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/state"
	"github.com/conneroisu/sitepipe/internal/transform"
	"github.com/tdewolff/minify/v2"
)

// Named nodes.
const (
	NodeStyleCompile    = "style-compile"
	NodeMarkupCompile   = "markup-compile"
	NodeScriptAggregate = "script-aggregate"
	NodeCompile         = "compile"
	NodeBuild           = "build"
	NodeWatch           = "watch"
)

// Reloader is the reload operation of the development server.
type Reloader interface {
	Reload(ctx context.Context, scope server.Scope, binding string) error
}

type tools struct {
	sass     *transform.Tool
	tailwind *transform.Tool
	lint     *transform.Tool
}

// Pipeline holds the task graph built for one configuration and project
// root.
type Pipeline struct {
	cfg      *config.Config
	paths    config.PathsConfig
	tools    tools
	logger   logging.Logger
	runner   *graph.Runner
	minifier *minify.M
	state    *lazyState

	leaves map[string]*graph.Node
}

// New builds and validates the task graph. Relative paths in cfg resolve
// against root.
func New(cfg *config.Config, root string, logger logging.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	p := &Pipeline{
		cfg:      cfg,
		paths:    cfg.Paths.Rooted(root),
		logger:   logger.WithComponent("pipeline"),
		runner:   graph.NewRunner(logger),
		minifier: transform.NewMinifier(),
		state:    &lazyState{dir: filepath.Join(root, cfg.Build.StateDir)},
	}

	var err error
	if p.tools.sass, err = transform.ParseTool(cfg.Tools.Sass); err != nil {
		return nil, err
	}
	if p.tools.tailwind, err = transform.ParseTool(cfg.Tools.Tailwind); err != nil {
		return nil, err
	}
	if cfg.Lint.Enabled {
		if p.tools.lint, err = transform.ParseTool(cfg.Tools.Lint); err != nil {
			return nil, err
		}
	}

	p.leaves = p.stages()
	nodes := p.nodes()
	for _, n := range nodes {
		if err := graph.Validate(n); err != nil {
			return nil, err
		}
	}
	p.runner.Register(nodes...)

	return p, nil
}

// leaf returns the catalogue leaf called name, or nil for a disabled stage.
func (p *Pipeline) leaf(name string) *graph.Node {
	return p.leaves[name]
}

func (p *Pipeline) nodes() []*graph.Node {
	style := graph.Sequence(NodeStyleCompile,
		graph.Parallel("style-sources",
			p.leaf(StageSassCompile),
			p.leaf(StageTemplateCSSCompile),
		),
		p.leaf(StagePurgeTemplateCSS),
		p.leaf(StageConcatStyles),
	)
	markup := graph.Sequence(NodeMarkupCompile,
		p.leaf(StageTemplateToHTML),
	)
	scripts := graph.Sequence(NodeScriptAggregate,
		graph.Parallel("script-sources",
			p.leaf(StageConcatCustomScripts),
			p.leaf(StageConcatVendorScripts),
		),
		p.leaf(StageConcatAllScripts),
	)
	compile := graph.Parallel(NodeCompile,
		markup,
		scripts,
		p.leaf(StageLintScripts),
		style,
		p.leaf(StageCopyImages),
	)
	build := graph.Sequence(NodeBuild,
		compile,
		p.leaf(StageCopyHTML),
		p.leaf(StageCopyScripts),
		p.leaf(StageCopyStyles),
		p.leaf(StagePurgeFinalCSS),
		p.leaf(StageMinifyFinalCSS),
		p.leaf(StageOptimizeImages),
	)

	return []*graph.Node{style, markup, scripts, compile, build}
}

// Paths returns the rooted path configuration.
func (p *Pipeline) Paths() config.PathsConfig { return p.paths }

// Runner returns the runner holding the named nodes.
func (p *Pipeline) Runner() *graph.Runner { return p.runner }

// Node returns the named node.
func (p *Pipeline) Node(name string) (*graph.Node, error) {
	return p.runner.Lookup(name)
}

// Run runs the named node.
func (p *Pipeline) Run(ctx context.Context, name string) error {
	op := logging.StartOperation(p.logger.With("node", name), "run")
	err := p.runner.RunNamed(ctx, name)
	op.Finish(ctx, err)
	return err
}

// WatchNode composes the coordinator and the dev server into the watch
// node and registers it.
func (p *Pipeline) WatchNode(coordinator, devServer graph.Stage) (*graph.Node, error) {
	n := graph.Parallel(NodeWatch, graph.Leaf(coordinator), graph.Leaf(devServer))
	if err := graph.Validate(n); err != nil {
		return nil, err
	}
	p.runner.Register(n)
	return n, nil
}

// Close releases the image state store.
func (p *Pipeline) Close() error {
	return p.state.Close()
}

// lazyState opens the state store on first use so commands that never
// optimize images leave no database behind.
type lazyState struct {
	dir string

	mu    sync.Mutex
	store *state.Store
}

func (l *lazyState) open() (*state.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		store, err := state.Open(l.dir)
		if err != nil {
			return nil, err
		}
		l.store = store
	}
	return l.store, nil
}

func (l *lazyState) Fingerprint(ctx context.Context, path string) (string, error) {
	s, err := l.open()
	if err != nil {
		return "", err
	}
	return s.Fingerprint(ctx, path)
}

func (l *lazyState) Record(ctx context.Context, path, sum string) error {
	s, err := l.open()
	if err != nil {
		return err
	}
	return s.Record(ctx, path, sum)
}

func (l *lazyState) Forget(ctx context.Context, path string) error {
	s, err := l.open()
	if err != nil {
		return err
	}
	return s.Forget(ctx, path)
}

func (l *lazyState) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}
