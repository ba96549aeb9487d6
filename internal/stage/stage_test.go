package stage

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestMatch(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"js/b.js":             "b",
		"js/a.js":             "a",
		"js/vendors/v.js":     "v",
		"sass/style.sass":     "s",
		"sass/parts/_x.sass":  "x",
		"img/logo.png":        "png",
		"img/nested/deep.png": "deep",
	})

	files, err := Match(filepath.Join(root, "js/*.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "js/a.js"), filepath.Join(root, "js/b.js")}, files)

	files, err = Match(filepath.Join(root, "sass/**/*.sass"))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	// directories never match, even with a bare star
	files, err = Match(filepath.Join(root, "img/*"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "img/logo.png")}, files)

	// pattern order wins over lexical order, duplicates collapse
	files, err = Match(filepath.Join(root, "js/b.js"), filepath.Join(root, "js/*.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "js/b.js"), filepath.Join(root, "js/a.js")}, files)

	files, err = Match(filepath.Join(root, "missing/*.js"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestStageSkipsWhenNothingMatches(t *testing.T) {
	called := false
	s := New(Spec{
		Name:   "concat-vendor-scripts",
		Inputs: []string{filepath.Join(t.TempDir(), "*.js")},
		Transform: func(ctx context.Context, files []string) error {
			called = true
			return nil
		},
	})

	require.NoError(t, s.Run(context.Background()))
	assert.False(t, called)
}

func TestStageWrapsTransformErrors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	boom := stderrors.New("boom")
	s := New(Spec{
		Name:    "copy-html",
		Inputs:  []string{filepath.Join(root, "*.txt")},
		Outputs: []graph.Output{{Dir: root, Pattern: "*.html"}},
		Transform: func(ctx context.Context, files []string) error {
			assert.Equal(t, []string{filepath.Join(root, "a.txt")}, files)
			return boom
		},
	})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "copy-html", errors.StageOf(err))
	assert.Equal(t, []graph.Output{{Dir: root, Pattern: "*.html"}}, s.Outputs())
}

func TestFuncStageAlwaysRuns(t *testing.T) {
	runs := 0
	s := Func("reload", func(ctx context.Context) error {
		runs++
		return nil
	})
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, runs)
	assert.Empty(t, s.Outputs())
}

func TestWriteFileCreatesParentsAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "css", "compiled", "style.css")

	require.NoError(t, WriteFile(path, []byte("a{}")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o644), info.Mode().Perm())

	require.NoError(t, WriteFile(path, []byte("b{}")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b{}", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCopyInto(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.png": "A", "src/b.gif": "B"})

	dst := filepath.Join(root, "out")
	require.NoError(t, CopyInto(dst, []string{filepath.Join(root, "src/a.png"), filepath.Join(root, "src/b.gif")}))
	assert.True(t, Exists(filepath.Join(dst, "a.png")))
	assert.True(t, Exists(filepath.Join(dst, "b.gif")))

	err := CopyInto(dst, []string{filepath.Join(root, "src/missing.png")})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
