package transform

import (
	"bytes"
	"context"

	"github.com/conneroisu/sitepipe/internal/stage"
)

// Copy copies the matched files into dir.
func Copy(dir string) stage.Transform {
	return func(_ context.Context, files []string) error {
		return stage.CopyInto(dir, files)
	}
}

// ConcatScripts joins the matched files in match order, separated by a
// newline, into out.
func ConcatScripts(out string) stage.Transform {
	return func(_ context.Context, files []string) error {
		parts := make([][]byte, 0, len(files))
		for _, file := range files {
			data, err := stage.ReadFile(file)
			if err != nil {
				return err
			}
			parts = append(parts, data)
		}
		return stage.WriteFile(out, bytes.Join(parts, []byte("\n")))
	}
}
