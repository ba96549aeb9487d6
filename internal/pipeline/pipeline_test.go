package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/state"
)

// fixture is a small project: tools are replaced by cp and true so the
// graph runs without sass, tailwind or eslint installed.
var fixture = map[string]string{
	"src/markup/index.html":        `<html><body>{{template "partials/nav.html" .}}<h1 class="used">{{.Site.title}}</h1></body></html>`,
	"src/markup/partials/nav.html": `<nav id="top">{{.Page}}</nav>`,
	"src/data.yaml":                "title: Demo\n",
	"src/tailwind.css":             ".used { color: blue }\n.unused { color: green }\n#top { margin: 0 }\n",
	"src/sass/style.sass":          "h1 { font-weight: bold }\n",
	"src/js/app.js":                "console.log('app');",
	"src/js/vendors/lib.js":        "var lib = 1;",
	"src/img/logo.svg":             `<svg xmlns="http://www.w3.org/2000/svg"   width="1" height="1"></svg>`,
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func testConfig(t *testing.T, overrides map[string]interface{}) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("tools.sass", "cp {in} {out}")
	v.Set("tools.tailwind", "cp {in} {out}")
	v.Set("tools.lint", "true {in}")
	for key, value := range overrides {
		v.Set(key, value)
	}
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

func newPipeline(t *testing.T, overrides map[string]interface{}) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, fixture)

	p, err := New(testConfig(t, overrides), root, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, root
}

func childNames(n *graph.Node) []string {
	var names []string
	for _, c := range n.Children() {
		names = append(names, c.Name())
	}
	return names
}

func TestDefaultGraph(t *testing.T) {
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	p, err := New(cfg, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{NodeBuild, NodeCompile, NodeMarkupCompile, NodeScriptAggregate, NodeStyleCompile},
		p.Runner().Names())

	compile, err := p.Node(NodeCompile)
	require.NoError(t, err)
	assert.Equal(t, graph.KindParallel, compile.Kind())
	assert.Equal(t,
		[]string{NodeMarkupCompile, NodeScriptAggregate, StageLintScripts, NodeStyleCompile, StageCopyImages},
		childNames(compile))

	build, err := p.Node(NodeBuild)
	require.NoError(t, err)
	assert.Equal(t, graph.KindSequence, build.Kind())
	assert.Equal(t,
		[]string{NodeCompile, StageCopyHTML, StageCopyScripts, StageCopyStyles, StagePurgeFinalCSS, StageMinifyFinalCSS, StageOptimizeImages},
		childNames(build))

	style, err := p.Node(NodeStyleCompile)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"style-sources", StagePurgeTemplateCSS, StageConcatStyles},
		childNames(style))
	assert.Equal(t, []string{StageSassCompile, StageTemplateCSSCompile}, childNames(style.Children()[0]))

	for _, name := range p.Runner().Names() {
		n, err := p.Node(name)
		require.NoError(t, err)
		assert.NoError(t, graph.Validate(n), name)
	}
}

func TestLintDisabled(t *testing.T) {
	p, _ := newPipeline(t, map[string]interface{}{"lint.enabled": false, "tools.lint": ""})

	compile, err := p.Node(NodeCompile)
	require.NoError(t, err)
	assert.NotContains(t, childNames(compile), StageLintScripts)

	bindings, err := p.Bindings(&recordingReloader{})
	require.NoError(t, err)
	for _, b := range bindings {
		assert.NotEqual(t, BindingIntermediateScript, b.Name)
	}
}

func TestBadToolCommand(t *testing.T) {
	cfg := testConfig(t, map[string]interface{}{"tools.sass": "sass {in} {out};rm"})
	_, err := New(cfg, t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestCompile(t *testing.T) {
	p, root := newPipeline(t, nil)
	ctx := context.Background()

	require.NoError(t, p.Run(ctx, NodeCompile))

	temp := filepath.Join(root, "___Temp")
	index := read(t, filepath.Join(temp, "index.html"))
	assert.Contains(t, index, `<nav id="top">index</nav>`)
	assert.Contains(t, index, "<h1 class=\"used\">Demo</h1>")

	assert.Equal(t, "console.log('app');", read(t, filepath.Join(root, "src/js/concats/custom.js")))
	assert.Equal(t, "var lib = 1;", read(t, filepath.Join(root, "src/js/concats/vendor.js")))
	assert.Equal(t, "console.log('app');\nvar lib = 1;", read(t, filepath.Join(temp, "js/main.js")))

	assert.Contains(t, read(t, filepath.Join(temp, "css/main.css")), "font-weight: bold")

	assert.FileExists(t, filepath.Join(temp, "img/logo.svg"))
	assert.NoDirExists(t, filepath.Join(root, ".sitepipe"))
}

func TestCompileIsIdempotent(t *testing.T) {
	p, root := newPipeline(t, nil)
	ctx := context.Background()

	snapshot := func() map[string]string {
		files := map[string]string{}
		err := filepath.WalkDir(filepath.Join(root, "___Temp"), func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			files[path] = read(t, path)
			return nil
		})
		require.NoError(t, err)
		return files
	}

	// the purge inside compile may read pages markup-compile is still
	// writing; rendering them first pins the purge input
	require.NoError(t, p.Run(ctx, NodeMarkupCompile))
	require.NoError(t, p.Run(ctx, NodeCompile))
	first := snapshot()
	require.NoError(t, p.Run(ctx, NodeCompile))
	assert.Equal(t, first, snapshot())
}

func TestCompilePurgesTemplateCSS(t *testing.T) {
	p, root := newPipeline(t, nil)
	ctx := context.Background()

	// markup first so the purge sees the rendered pages
	require.NoError(t, p.Run(ctx, NodeMarkupCompile))
	require.NoError(t, p.Run(ctx, NodeStyleCompile))

	styles := read(t, filepath.Join(root, "___Temp/css/main.css"))
	assert.Contains(t, styles, ".used")
	assert.Contains(t, styles, "#top")
	assert.NotContains(t, styles, ".unused")
	require.Contains(t, styles, "font-weight")
	assert.Less(t, strings.Index(styles, ".used"), strings.Index(styles, "font-weight"),
		"tailwind output precedes the sass output")
}

func TestLintViolationFailsCompile(t *testing.T) {
	p, root := newPipeline(t, map[string]interface{}{"tools.lint": "false {in}"})
	writeTree(t, root, map[string]string{"___Temp/js/main.js": "var x"})

	err := p.Run(context.Background(), NodeCompile)
	require.Error(t, err)
	assert.True(t, errors.IsLintError(err))
	assert.Equal(t, StageLintScripts, errors.StageOf(err))

	// the other children of the parallel node still ran
	assert.FileExists(t, filepath.Join(root, "___Temp/index.html"))
}

func TestStageFailureNamesStage(t *testing.T) {
	p, root := newPipeline(t, map[string]interface{}{"tools.sass": "false {in} {out}"})

	err := p.Run(context.Background(), NodeStyleCompile)
	require.Error(t, err)
	assert.Equal(t, StageSassCompile, errors.StageOf(err))
	assert.NoFileExists(t, filepath.Join(root, "___Temp/css/main.css"),
		"later stages of the sequence do not run")
}

func TestBuild(t *testing.T) {
	p, root := newPipeline(t, map[string]interface{}{"purge.safelist": []string{"keep"}})
	writeTree(t, root, map[string]string{"src/tailwind.css": ".used { color: blue }\n.unused { color: green }\n.keep { color: red }\n"})
	ctx := context.Background()

	require.NoError(t, p.Run(ctx, NodeMarkupCompile))
	require.NoError(t, p.Run(ctx, NodeBuild))

	build := filepath.Join(root, "___Build")
	assert.FileExists(t, filepath.Join(build, "index.html"))
	assert.Equal(t, "console.log('app');\nvar lib = 1;", read(t, filepath.Join(build, "js/main.js")))

	css := read(t, filepath.Join(build, "css/main.css"))
	assert.Contains(t, css, ".used{color:blue}")
	assert.Contains(t, css, ".keep{color:red}")
	assert.NotContains(t, css, ".unused")
	assert.NotContains(t, css, "\n ")

	svg := read(t, filepath.Join(build, "img/logo.svg"))
	assert.Less(t, len(svg), len(fixture["src/img/logo.svg"]))

	require.NoError(t, p.Close())
	store, err := state.Open(filepath.Join(root, ".sitepipe"))
	require.NoError(t, err)
	defer store.Close()
	sum, err := store.Fingerprint(ctx, filepath.Join(build, "img/logo.svg"))
	require.NoError(t, err)
	assert.Equal(t, state.Sum([]byte(fixture["src/img/logo.svg"])), sum)
}

type reloadCall struct {
	scope   server.Scope
	binding string
}

type recordingReloader struct {
	mu    sync.Mutex
	calls []reloadCall
}

func (r *recordingReloader) Reload(_ context.Context, scope server.Scope, binding string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, reloadCall{scope, binding})
	return nil
}

func TestBindings(t *testing.T) {
	p, root := newPipeline(t, nil)
	bindings, err := p.Bindings(&recordingReloader{})
	require.NoError(t, err)

	var names []string
	for _, b := range bindings {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{
		BindingStyles, BindingMarkup, BindingImages,
		BindingIntermediateScript, BindingScripts, BindingVendorScripts,
	}, names)

	tests := []struct {
		path string
		want string
	}{
		{"src/sass/components/_button.scss", BindingStyles},
		{"src/sass/style.sass", BindingStyles},
		{"src/tailwind.css", BindingStyles},
		{"src/markup/index.html", BindingMarkup},
		{"src/markup/partials/nav.html", BindingMarkup},
		{"src/data.yaml", BindingMarkup},
		{"src/img/logo.svg", BindingImages},
		{"___Temp/js/main.js", BindingIntermediateScript},
		{"src/js/app.js", BindingScripts},
		{"src/js/vendors/lib.js", BindingVendorScripts},
		{"src/js/concats/custom.js", ""},
		{"___Temp/index.html", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var matched []string
			for _, b := range bindings {
				if b.Matches(filepath.Join(root, tt.path)) {
					matched = append(matched, b.Name)
				}
			}
			if tt.want == "" {
				assert.Empty(t, matched)
			} else {
				assert.Equal(t, []string{tt.want}, matched)
			}
		})
	}
}

func TestBindingReloadScopes(t *testing.T) {
	ctx := context.Background()

	for _, injection := range []bool{true, false} {
		p, _ := newPipeline(t, map[string]interface{}{"development.css_injection": injection})
		reloader := &recordingReloader{}
		bindings, err := p.Bindings(reloader)
		require.NoError(t, err)

		for _, b := range bindings {
			require.NoError(t, p.Runner().Run(ctx, b.Node), b.Name)
		}

		styleScope := server.ScopePage
		if injection {
			styleScope = server.ScopeCSS
		}
		assert.Equal(t, []reloadCall{
			{styleScope, BindingStyles},
			{server.ScopePage, BindingMarkup},
			{server.ScopePage, BindingImages},
			{server.ScopePage, BindingScripts},
			{server.ScopePage, BindingVendorScripts},
		}, reloader.calls)
	}
}

func TestFailedBindingSkipsReload(t *testing.T) {
	p, root := newPipeline(t, nil)
	writeTree(t, root, map[string]string{"src/markup/index.html": "{{ if }"})

	reloader := &recordingReloader{}
	bindings, err := p.Bindings(reloader)
	require.NoError(t, err)

	for _, b := range bindings {
		if b.Name != BindingMarkup {
			continue
		}
		err := p.Runner().Run(context.Background(), b.Node)
		require.Error(t, err)
		assert.Equal(t, StageTemplateToHTML, errors.StageOf(err))
	}
	assert.Empty(t, reloader.calls)
}

type stubStage string

func (s stubStage) Name() string                  { return string(s) }
func (s stubStage) Outputs() []graph.Output       { return nil }
func (s stubStage) Run(ctx context.Context) error { return nil }

func TestWatchNode(t *testing.T) {
	p, _ := newPipeline(t, nil)

	n, err := p.WatchNode(stubStage("watch-coordinator"), stubStage("dev-server-start"))
	require.NoError(t, err)
	assert.Equal(t, graph.KindParallel, n.Kind())
	assert.Equal(t, []string{"watch-coordinator", "dev-server-start"}, childNames(n))

	registered, err := p.Node(NodeWatch)
	require.NoError(t, err)
	assert.Same(t, n, registered)
}
