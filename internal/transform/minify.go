package transform

import (
	"context"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/stage"
	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/svg"
)

const (
	mediaCSS = "text/css"
	mediaSVG = "image/svg+xml"
)

// NewMinifier returns a minifier for the media types sitepipe emits.
func NewMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mediaCSS, mincss.Minify)
	m.AddFunc(mediaSVG, svg.Minify)
	return m
}

// MinifyCSS minifies the matched stylesheets in place.
func MinifyCSS(m *minify.M) stage.Transform {
	return func(_ context.Context, files []string) error {
		for _, file := range files {
			src, err := stage.ReadFile(file)
			if err != nil {
				return err
			}
			out, err := m.Bytes(mediaCSS, src)
			if err != nil {
				return errors.NewStageError("", "minify failed", err).WithFile(file)
			}
			if err := stage.WriteFile(file, out); err != nil {
				return err
			}
		}
		return nil
	}
}
