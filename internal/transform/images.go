package transform

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/stage"
	"github.com/conneroisu/sitepipe/internal/state"
	"github.com/tdewolff/minify/v2"
)

// Fingerprints is the part of the state store the optimizer needs.
type Fingerprints interface {
	Fingerprint(ctx context.Context, path string) (string, error)
	Record(ctx context.Context, path, sum string) error
	Forget(ctx context.Context, path string) error
}

// ImageOptimizer writes optimized copies of images into a directory. PNGs
// are re-encoded at best compression when that makes them smaller, SVGs are
// minified and everything else is copied. With a fingerprint store, a
// source whose content matches the last recorded run is skipped if its
// output still exists, and outputs whose source is gone lose their
// fingerprint.
type ImageOptimizer struct {
	dir      string
	minifier *minify.M
	store    Fingerprints
	logger   logging.Logger
}

// NewImageOptimizer creates an optimizer writing into dir. store may be nil.
func NewImageOptimizer(dir string, m *minify.M, store Fingerprints, logger logging.Logger) *ImageOptimizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ImageOptimizer{dir: dir, minifier: m, store: store, logger: logger.WithComponent("images")}
}

// Transform returns the stage transform.
func (o *ImageOptimizer) Transform() stage.Transform {
	return func(ctx context.Context, files []string) error {
		skipped := 0
		for _, file := range files {
			done, err := o.optimize(ctx, file)
			if err != nil {
				return err
			}
			if !done {
				skipped++
			}
		}
		if err := o.prune(ctx, files); err != nil {
			return err
		}
		o.logger.Debug(ctx, "Images optimized", "total", len(files), "skipped", skipped)
		return nil
	}
}

// prune forgets the fingerprint of every output with no matching source.
func (o *ImageOptimizer) prune(ctx context.Context, files []string) error {
	if o.store == nil {
		return nil
	}
	sources := make(map[string]bool, len(files))
	for _, file := range files {
		sources[filepath.Base(file)] = true
	}

	entries, err := os.ReadDir(o.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewIOError("", o.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || sources[entry.Name()] {
			continue
		}
		if err := o.store.Forget(ctx, filepath.Join(o.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// optimize processes one image and reports whether it did any work.
func (o *ImageOptimizer) optimize(ctx context.Context, file string) (bool, error) {
	src, err := stage.ReadFile(file)
	if err != nil {
		return false, err
	}

	dst := filepath.Join(o.dir, filepath.Base(file))
	sum := state.Sum(src)
	if o.store != nil && stage.Exists(dst) {
		prev, err := o.store.Fingerprint(ctx, dst)
		if err != nil {
			return false, err
		}
		if prev == sum {
			return false, nil
		}
	}

	out := o.compress(ctx, file, src)
	if err := stage.WriteFile(dst, out); err != nil {
		return false, err
	}

	if o.store != nil {
		if err := o.store.Record(ctx, dst, sum); err != nil {
			return false, err
		}
	}
	return true, nil
}

// compress falls back to the original bytes whenever optimizing fails or
// does not help.
func (o *ImageOptimizer) compress(ctx context.Context, file string, src []byte) []byte {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png":
		out, err = recompressPNG(src)
	case ".svg":
		if o.minifier != nil {
			out, err = o.minifier.Bytes(mediaSVG, src)
		}
	}
	if err != nil {
		o.logger.Debug(ctx, "Image kept unoptimized", "file", file, "reason", err.Error())
		return src
	}
	if out == nil || len(out) >= len(src) {
		return src
	}
	return out
}

func recompressPNG(src []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
