package pipeline

import (
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/watch"
)

// Binding names.
const (
	BindingStyles             = "styles"
	BindingMarkup             = "markup"
	BindingImages             = "images"
	BindingIntermediateScript = "intermediate-scripts"
	BindingScripts            = "scripts"
	BindingVendorScripts      = "vendor-scripts"
)

// Bindings returns one watch binding per source subtree. Every binding but
// the intermediate-script lint runs reload after its node succeeds; a
// failed node skips the reload because both sit in one sequence.
func (p *Pipeline) Bindings(r Reloader) ([]watch.Binding, error) {
	paths := p.paths

	styleScope := server.ScopePage
	if p.cfg.Development.CSSInjection {
		styleScope = server.ScopeCSS
	}

	reloading := func(name string, node *graph.Node, scope server.Scope, patterns ...string) watch.Binding {
		return watch.Binding{
			Name:     name,
			Patterns: patterns,
			Node:     graph.Sequence("watch:"+name, node, reloadStage(r, scope, name)),
		}
	}

	style, err := p.Node(NodeStyleCompile)
	if err != nil {
		return nil, err
	}
	markup, err := p.Node(NodeMarkupCompile)
	if err != nil {
		return nil, err
	}
	scripts, err := p.Node(NodeScriptAggregate)
	if err != nil {
		return nil, err
	}

	bindings := []watch.Binding{
		reloading(BindingStyles, style, styleScope,
			filepath.Join(paths.Src.Sass, "**", "*.sass"),
			filepath.Join(paths.Src.Sass, "**", "*.scss"),
			paths.Src.Tailwind,
		),
		reloading(BindingMarkup, markup, server.ScopePage,
			filepath.Join(paths.Src.Markup, "**", "*.html"),
			paths.Src.Data,
		),
		reloading(BindingImages, p.leaf(StageCopyImages), server.ScopePage,
			filepath.Join(paths.Src.Images, "*"),
		),
	}

	if lint := p.leaf(StageLintScripts); lint != nil {
		bindings = append(bindings, watch.Binding{
			Name:     BindingIntermediateScript,
			Patterns: []string{filepath.Join(paths.Temp.JS, "*.js")},
			Node:     graph.Sequence("watch:"+BindingIntermediateScript, lint),
		})
	}

	bindings = append(bindings,
		reloading(BindingScripts, scripts, server.ScopePage,
			filepath.Join(paths.Src.Scripts, "*.js"),
		),
		reloading(BindingVendorScripts, scripts, server.ScopePage,
			filepath.Join(paths.Src.Vendor, "*.js"),
		),
	)

	for _, b := range bindings {
		if err := graph.Validate(b.Node); err != nil {
			return nil, err
		}
	}
	return bindings, nil
}
