package pipeline

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/stage"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// Stage names.
const (
	StageSassCompile         = "sass-compile"
	StageTemplateCSSCompile  = "template-css-compile"
	StagePurgeTemplateCSS    = "purge-template-css"
	StageConcatStyles        = "concat-styles"
	StageTemplateToHTML      = "template-to-html"
	StageConcatCustomScripts = "concat-custom-scripts"
	StageConcatVendorScripts = "concat-vendor-scripts"
	StageConcatAllScripts    = "concat-all-scripts"
	StageLintScripts         = "lint-scripts"
	StageCopyImages          = "copy-images"
	StageCopyHTML            = "copy-html"
	StageCopyScripts         = "copy-scripts"
	StageCopyStyles          = "copy-styles"
	StagePurgeFinalCSS       = "purge-final-css"
	StageMinifyFinalCSS      = "minify-final-css"
	StageOptimizeImages      = "optimize-images"
	StageReload              = "reload"
)

// Fixed artifact names inside the configured directories.
const (
	compiledSass     = "style.css"
	compiledTailwind = "tailwind.css"
	styleBundle      = "main.css"
	scriptBundle     = "main.js"
	customScripts    = "custom.js"
	vendorScripts    = "vendor.js"
)

func file(dir, name string) graph.Output {
	return graph.Output{Dir: dir, Pattern: name}
}

// stages builds every leaf of the catalogue, keyed by stage name. The lint
// stage is absent when linting is disabled.
func (p *Pipeline) stages() map[string]*graph.Node {
	paths := p.paths
	safelist := p.cfg.Purge.Safelist

	tailwindOut := filepath.Join(paths.Temp.CSSCompiled, compiledTailwind)
	sassOut := filepath.Join(paths.Temp.CSSCompiled, compiledSass)
	styleOut := filepath.Join(paths.Temp.CSS, styleBundle)
	scriptOut := filepath.Join(paths.Temp.JS, scriptBundle)
	finalCSS := filepath.Join(paths.Build.CSS, styleBundle)

	specs := []stage.Spec{
		{
			Name:      StageSassCompile,
			Inputs:    []string{paths.SassEntry()},
			Outputs:   []graph.Output{file(paths.Temp.CSSCompiled, compiledSass)},
			Transform: transform.Compile(p.tools.sass, sassOut),
		},
		{
			Name:      StageTemplateCSSCompile,
			Inputs:    []string{paths.Src.Tailwind},
			Outputs:   []graph.Output{file(paths.Temp.CSSCompiled, compiledTailwind)},
			Transform: transform.Compile(p.tools.tailwind, tailwindOut),
		},
		{
			Name:      StagePurgeTemplateCSS,
			Inputs:    []string{tailwindOut},
			Outputs:   []graph.Output{file(paths.Temp.CSSCompiled, compiledTailwind)},
			Transform: transform.Purge([]string{filepath.Join(paths.Temp.Root, "*.html")}, safelist),
		},
		{
			Name:      StageConcatStyles,
			Inputs:    []string{tailwindOut, sassOut},
			Outputs:   []graph.Output{file(paths.Temp.CSS, styleBundle)},
			Transform: transform.ConcatStyles(styleOut),
		},
		{
			Name:      StageTemplateToHTML,
			Inputs:    []string{filepath.Join(paths.Src.Markup, "*.html")},
			Outputs:   []graph.Output{file(paths.Temp.Root, "*.html")},
			Transform: transform.Markup(paths.Src.Markup, paths.Src.Data, paths.Temp.Root),
		},
		{
			Name:      StageConcatCustomScripts,
			Inputs:    []string{filepath.Join(paths.Src.Scripts, "*.js")},
			Outputs:   []graph.Output{file(paths.Src.Concat, customScripts)},
			Transform: transform.ConcatScripts(filepath.Join(paths.Src.Concat, customScripts)),
		},
		{
			Name:      StageConcatVendorScripts,
			Inputs:    []string{filepath.Join(paths.Src.Vendor, "*.js")},
			Outputs:   []graph.Output{file(paths.Src.Concat, vendorScripts)},
			Transform: transform.ConcatScripts(filepath.Join(paths.Src.Concat, vendorScripts)),
		},
		{
			Name:      StageConcatAllScripts,
			Inputs:    []string{filepath.Join(paths.Src.Concat, "*.js")},
			Outputs:   []graph.Output{file(paths.Temp.JS, scriptBundle)},
			Transform: transform.ConcatScripts(scriptOut),
		},
		{
			Name:      StageCopyImages,
			Inputs:    []string{filepath.Join(paths.Src.Images, "*")},
			Outputs:   []graph.Output{file(paths.Temp.Images, "*")},
			Transform: transform.Copy(paths.Temp.Images),
		},
		{
			Name:      StageCopyHTML,
			Inputs:    []string{filepath.Join(paths.Temp.Root, "*.html")},
			Outputs:   []graph.Output{file(paths.Build.Root, "*.html")},
			Transform: transform.Copy(paths.Build.Root),
		},
		{
			Name:      StageCopyScripts,
			Inputs:    []string{filepath.Join(paths.Temp.JS, "*.js")},
			Outputs:   []graph.Output{file(paths.Build.JS, "*.js")},
			Transform: transform.Copy(paths.Build.JS),
		},
		{
			Name:      StageCopyStyles,
			Inputs:    []string{styleOut},
			Outputs:   []graph.Output{file(paths.Build.CSS, styleBundle)},
			Transform: transform.Copy(paths.Build.CSS),
		},
		{
			Name:      StagePurgeFinalCSS,
			Inputs:    []string{finalCSS},
			Outputs:   []graph.Output{file(paths.Build.CSS, styleBundle)},
			Transform: transform.Purge([]string{filepath.Join(paths.Build.Root, "*.html")}, safelist),
		},
		{
			Name:      StageMinifyFinalCSS,
			Inputs:    []string{finalCSS},
			Outputs:   []graph.Output{file(paths.Build.CSS, styleBundle)},
			Transform: transform.MinifyCSS(p.minifier),
		},
		{
			Name:      StageOptimizeImages,
			Inputs:    []string{filepath.Join(paths.Temp.Images, "*")},
			Outputs:   []graph.Output{file(paths.Build.Images, "*")},
			Transform: transform.NewImageOptimizer(paths.Build.Images, p.minifier, p.state, p.logger).Transform(),
		},
	}

	if p.tools.lint != nil {
		specs = append(specs, stage.Spec{
			Name:      StageLintScripts,
			Inputs:    []string{filepath.Join(paths.Temp.JS, "*.js")},
			Transform: transform.Lint(p.tools.lint, paths.LintConfig),
		})
	}

	leaves := make(map[string]*graph.Node, len(specs))
	for _, spec := range specs {
		leaves[spec.Name] = graph.Leaf(stage.New(spec))
	}
	return leaves
}

// reloadStage notifies the reloader once the binding's node succeeded.
func reloadStage(r Reloader, scope server.Scope, binding string) *graph.Node {
	return graph.Leaf(stage.Func(StageReload, func(ctx context.Context) error {
		return r.Reload(ctx, scope, binding)
	}))
}
