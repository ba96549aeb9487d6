package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSitepipeErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *SitepipeError
		contains []string
	}{
		{
			name:     "stage error",
			err:      NewStageError("sass-compile", "sass failed", fmt.Errorf("exit status 1")),
			contains: []string{"[ERR_STAGE_FAILED]", "stage:sass-compile", "sass failed", "exit status 1"},
		},
		{
			name:     "io error with file",
			err:      NewIOError("copy-html", "___Temp/index.html", fs.ErrPermission),
			contains: []string{"stage:copy-html", "___Temp/index.html", "permission denied"},
		},
		{
			name:     "config error",
			err:      NewConfigError(ErrCodeConfigInvalid, "port out of range"),
			contains: []string{"[ERR_CONFIG_INVALID]", "port out of range"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				assert.Contains(t, msg, want)
			}
		})
	}
}

func TestStageOfThroughWrapping(t *testing.T) {
	base := NewStageError("concat-styles", "boom", nil)
	wrapped := fmt.Errorf("style-compile: %w", fmt.Errorf("compile: %w", base))

	assert.Equal(t, "concat-styles", StageOf(wrapped))
	assert.Equal(t, "", StageOf(errors.New("plain")))
}

func TestIOErrorKeepsPathError(t *testing.T) {
	_, statErr := os.Stat("definitely/not/here")
	require.Error(t, statErr)

	err := Wrap(NewIOError("", "definitely/not/here", statErr), "copy-images")

	assert.True(t, errors.Is(err, fs.ErrNotExist))
	var pathErr *fs.PathError
	assert.True(t, errors.As(err, &pathErr))
	assert.Equal(t, "copy-images", StageOf(err))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))

	err := Wrap(errors.New("bad input"), "template-to-html")
	var se *SitepipeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrorTypeStage, se.Type)
	assert.Equal(t, "template-to-html", se.Stage)

	lint := NewLintError("lint-scripts", "main.js: 1:1 no-undef", errors.New("exit status 1"))
	rewrapped := Wrap(lint, "other")
	assert.True(t, IsLintError(rewrapped))
	assert.Equal(t, "lint-scripts", StageOf(rewrapped))
	assert.Equal(t, "main.js: 1:1 no-undef", Diagnostics(rewrapped))
}

func TestIs(t *testing.T) {
	a := NewStageError("a", "x", nil)
	b := NewStageError("b", "y", nil)
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, NewLintError("a", "", nil)))
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.warns = append(l.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)

	h.Handle(context.Background(), nil)
	h.Handle(context.Background(), NewLintError("lint-scripts", "", nil))
	h.Handle(context.Background(), NewStageError("sass-compile", "x", nil))
	h.Handle(context.Background(), errors.New("plain"))

	assert.Equal(t, []string{"Lint failed"}, logger.warns)
	assert.Equal(t, []string{"Stage failed", "Unhandled error occurred"}, logger.errors)
}
