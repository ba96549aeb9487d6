package stage

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/natefinch/atomic"
)

// WriteFile atomically replaces path with data, creating parent directories.
// Readers see either the previous content or the new one, never a partial
// file.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("", filepath.Dir(path), err)
	}

	_, statErr := os.Stat(path)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return errors.NewIOError("", path, err)
	}
	if os.IsNotExist(statErr) {
		// atomic creates its temp file 0600
		if err := os.Chmod(path, 0o644); err != nil {
			return errors.NewIOError("", path, err)
		}
	}
	return nil
}

// ReadFile reads path, reporting failures as I/O errors.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("", path, err)
	}
	return data, nil
}

// CopyInto copies every file into dir under its base name.
func CopyInto(dir string, files []string) error {
	for _, file := range files {
		data, err := ReadFile(file)
		if err != nil {
			return err
		}
		if err := WriteFile(filepath.Join(dir, filepath.Base(file)), data); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
