// Package stage defines the file-based unit of work wrapped by graph nodes.
//
// A Stage matches its input globs, hands the matched files to its transform
// and writes results into its declared output location. Inputs that match
// nothing make the stage a successful no-op, the same way an empty glob
// source behaves in stream-based build tools.
package stage

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/graph"
)

// Transform processes the files matched by a stage.
type Transform func(ctx context.Context, files []string) error

// Spec declares a stage.
type Spec struct {
	Name string
	// Inputs are glob patterns ("**" allowed); matches keep pattern order
	// and are sorted within each pattern.
	Inputs  []string
	Outputs []graph.Output
	// RunEmpty calls Transform even when no input matched.
	RunEmpty  bool
	Transform Transform
}

// Stage implements graph.Stage for a Spec.
type Stage struct {
	spec Spec
}

// New creates a stage from spec.
func New(spec Spec) *Stage {
	return &Stage{spec: spec}
}

// Func creates an input-less stage around fn.
func Func(name string, fn func(ctx context.Context) error) *Stage {
	return New(Spec{
		Name:     name,
		RunEmpty: true,
		Transform: func(ctx context.Context, _ []string) error {
			return fn(ctx)
		},
	})
}

func (s *Stage) Name() string            { return s.spec.Name }
func (s *Stage) Outputs() []graph.Output { return s.spec.Outputs }

// Run matches the inputs and applies the transform.
func (s *Stage) Run(ctx context.Context) error {
	files, err := Match(s.spec.Inputs...)
	if err != nil {
		return errors.Wrap(err, s.spec.Name)
	}
	if len(files) == 0 && !s.spec.RunEmpty {
		return nil
	}
	if err := s.spec.Transform(ctx, files); err != nil {
		return errors.Wrap(err, s.spec.Name)
	}
	return nil
}

// Match expands glob patterns into regular files. Each pattern's matches are
// sorted; a file matched by several patterns appears once, at its first
// position.
func Match(patterns ...string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Clean(pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidPath, "bad glob "+pattern).WithContext("cause", err.Error())
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}
