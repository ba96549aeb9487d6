// Package transform holds the file transformations behind sitepipe's
// stages. Each constructor returns a stage.Transform; the stage supplies the
// matched input files.
package transform

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/stage"
	"github.com/conneroisu/sitepipe/internal/validation"
	"github.com/natefinch/atomic"
)

// Placeholders substituted in tool command lines.
const (
	PlaceholderIn     = "{in}"
	PlaceholderOut    = "{out}"
	PlaceholderConfig = "{config}"
)

// tempSuffix marks the file a tool writes before it replaces the output.
const tempSuffix = ".sitepipe-tmp"

// Tool is an external program invoked with a templated argument list.
type Tool struct {
	command string
	args    []string
}

// ParseTool splits a configured command line into a Tool. Arguments are
// split on whitespace and never interpreted by a shell.
func ParseTool(line string) (*Tool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "tool command is empty")
	}

	for _, field := range fields {
		if err := validation.ValidateArgument(field); err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("tool command %q: %v", line, err))
		}
	}

	return &Tool{command: fields[0], args: fields[1:]}, nil
}

// Name returns the program name.
func (t *Tool) Name() string {
	return t.command
}

// Args expands the placeholders. A standalone {in} becomes one argument per
// input; an embedded one becomes the space-joined list.
func (t *Tool) Args(in []string, out, config string) []string {
	args := make([]string, 0, len(t.args)+len(in))
	for _, arg := range t.args {
		if arg == PlaceholderIn {
			args = append(args, in...)
			continue
		}
		arg = strings.ReplaceAll(arg, PlaceholderIn, strings.Join(in, " "))
		arg = strings.ReplaceAll(arg, PlaceholderOut, out)
		arg = strings.ReplaceAll(arg, PlaceholderConfig, config)
		args = append(args, arg)
	}
	return args
}

// Run executes the tool and returns its combined output.
func (t *Tool) Run(ctx context.Context, in []string, out, config string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, t.command, t.Args(in, out, config)...)
	output, err := cmd.CombinedOutput()
	if err != nil && ctx.Err() != nil {
		return output, fmt.Errorf("%s interrupted: %w", t.command, ctx.Err())
	}
	return output, err
}

// Compile runs tool over the matched files and replaces out with what the
// tool wrote. The tool writes to a temporary sibling of out so a failed run
// leaves the previous output in place.
func Compile(tool *Tool, out string) stage.Transform {
	return func(ctx context.Context, files []string) error {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return errors.NewIOError("", filepath.Dir(out), err)
		}

		tmp := out + tempSuffix
		defer os.Remove(tmp)

		output, err := tool.Run(ctx, files, tmp, "")
		if err != nil {
			return errors.NewStageError("", tool.Name()+" failed", err).
				WithContext("diagnostics", string(bytes.TrimSpace(output)))
		}

		if _, err := os.Stat(tmp); err != nil {
			return errors.NewStageError("", tool.Name()+" did not write its output", err).WithFile(out)
		}
		if err := atomic.ReplaceFile(tmp, out); err != nil {
			return errors.NewIOError("", out, err)
		}
		return nil
	}
}

// Lint runs tool over the matched files with the rule set at config. A
// nonzero exit is a lint violation and fails the stage.
func Lint(tool *Tool, config string) stage.Transform {
	return func(ctx context.Context, files []string) error {
		output, err := tool.Run(ctx, files, "", config)
		if err == nil {
			return nil
		}

		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return errors.NewLintError("", string(bytes.TrimSpace(output)), err)
		}
		return errors.NewStageError("", tool.Name()+" could not run", err)
	}
}
