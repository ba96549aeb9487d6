package errors

import (
	"errors"
)

// Wrap wraps an error as a stage failure, creating a SitepipeError if the
// input is not already one. An existing SitepipeError keeps its type and
// gains the stage name when it had none.
func Wrap(err error, stage string) error {
	if err == nil {
		return nil
	}

	var se *SitepipeError
	if errors.As(err, &se) {
		if se.Stage == "" {
			se.Stage = stage
		}
		return err
	}

	return NewStageError(stage, "", err)
}

// Diagnostics returns tool output attached to the error, if any.
func Diagnostics(err error) string {
	var se *SitepipeError
	if errors.As(err, &se) && se.Context != nil {
		if d, ok := se.Context["diagnostics"].(string); ok {
			return d
		}
	}

	return ""
}
