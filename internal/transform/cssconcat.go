package transform

import (
	"context"
	"strings"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/stage"
)

// JoinStyles concatenates stylesheets in order. The first @charset is moved
// to the top, followed by every @import in order of appearance; later
// @charset rules are dropped since they are only valid at the start of a
// file.
func JoinStyles(sources [][]byte) ([]byte, error) {
	var (
		charset string
		imports []string
		body    []string
	)

	for _, src := range sources {
		toks, err := tokenize(src)
		if err != nil {
			return nil, err
		}
		for _, r := range splitRules(toks) {
			switch {
			case r.atKeyword == "@charset" && !r.hasBlock:
				if charset == "" {
					charset = r.String()
				}
			case r.atKeyword == "@import" && !r.hasBlock:
				imports = append(imports, r.String())
			default:
				body = append(body, r.String())
			}
		}
	}

	var out []string
	if charset != "" {
		out = append(out, charset)
	}
	out = append(out, imports...)
	out = append(out, body...)

	return []byte(strings.Join(out, "\n") + "\n"), nil
}

// ConcatStyles joins the matched stylesheets into out.
func ConcatStyles(out string) stage.Transform {
	return func(_ context.Context, files []string) error {
		sources := make([][]byte, 0, len(files))
		for _, file := range files {
			data, err := stage.ReadFile(file)
			if err != nil {
				return err
			}
			sources = append(sources, data)
		}

		joined, err := JoinStyles(sources)
		if err != nil {
			return errors.NewStageError("", "invalid stylesheet", err)
		}
		return stage.WriteFile(out, joined)
	}
}
