package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryFingerprints map[string]string

func (m memoryFingerprints) Fingerprint(_ context.Context, path string) (string, error) {
	return m[path], nil
}

func (m memoryFingerprints) Record(_ context.Context, path, sum string) error {
	m[path] = sum
	return nil
}

func (m memoryFingerprints) Forget(_ context.Context, path string) error {
	delete(m, path)
	return nil
}

func uncompressedPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageOptimizer(t *testing.T) {
	root := t.TempDir()
	raw := uncompressedPNG(t)
	svg := `<svg xmlns="http://www.w3.org/2000/svg">   <rect width="10" height="10"/>   </svg>`
	writeFiles(t, root, map[string]string{
		"tmp/logo.png": string(raw),
		"tmp/icon.svg": svg,
		"tmp/anim.gif": "GIF89a",
	})

	dst := filepath.Join(root, "build/img")
	files := []string{
		filepath.Join(root, "tmp/anim.gif"),
		filepath.Join(root, "tmp/icon.svg"),
		filepath.Join(root, "tmp/logo.png"),
	}
	store := memoryFingerprints{}
	opt := NewImageOptimizer(dst, NewMinifier(), store, nil)

	require.NoError(t, opt.Transform()(context.Background(), files))

	logo := readFile(t, filepath.Join(dst, "logo.png"))
	assert.Less(t, len(logo), len(raw))
	assert.Less(t, len(readFile(t, filepath.Join(dst, "icon.svg"))), len(svg))
	assert.Equal(t, "GIF89a", readFile(t, filepath.Join(dst, "anim.gif")))
	assert.Len(t, store, 3)
}

func TestImageOptimizerSkipsUnchangedSources(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"tmp/a.gif": "one"})
	src := filepath.Join(root, "tmp/a.gif")
	dst := filepath.Join(root, "build/a.gif")

	opt := NewImageOptimizer(filepath.Join(root, "build"), nil, memoryFingerprints{}, nil)
	ctx := context.Background()
	require.NoError(t, opt.Transform()(ctx, []string{src}))

	// an unchanged source leaves the output alone
	require.NoError(t, os.WriteFile(dst, []byte("untouched"), 0o644))
	require.NoError(t, opt.Transform()(ctx, []string{src}))
	assert.Equal(t, "untouched", readFile(t, dst))

	// a removed output is produced again
	require.NoError(t, os.Remove(dst))
	require.NoError(t, opt.Transform()(ctx, []string{src}))
	assert.Equal(t, "one", readFile(t, dst))

	// a changed source is processed
	require.NoError(t, os.WriteFile(src, []byte("two"), 0o644))
	require.NoError(t, opt.Transform()(ctx, []string{src}))
	assert.Equal(t, "two", readFile(t, dst))
}

func TestImageOptimizerForgetsRemovedSources(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"tmp/a.gif": "one", "tmp/b.gif": "two"})
	dir := filepath.Join(root, "build")

	store := memoryFingerprints{}
	opt := NewImageOptimizer(dir, nil, store, nil)
	ctx := context.Background()
	require.NoError(t, opt.Transform()(ctx, []string{
		filepath.Join(root, "tmp/a.gif"),
		filepath.Join(root, "tmp/b.gif"),
	}))
	require.Len(t, store, 2)

	require.NoError(t, os.Remove(filepath.Join(root, "tmp/b.gif")))
	require.NoError(t, opt.Transform()(ctx, []string{filepath.Join(root, "tmp/a.gif")}))

	assert.Contains(t, store, filepath.Join(dir, "a.gif"))
	assert.NotContains(t, store, filepath.Join(dir, "b.gif"))
}

func TestImageOptimizerKeepsUndecodablePNG(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"tmp/bad.png": "not a png"})

	opt := NewImageOptimizer(filepath.Join(root, "out"), nil, nil, nil)
	require.NoError(t, opt.Transform()(context.Background(), []string{filepath.Join(root, "tmp/bad.png")}))
	assert.Equal(t, "not a png", readFile(t, filepath.Join(root, "out/bad.png")))
}
