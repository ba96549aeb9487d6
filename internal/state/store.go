// Package state persists content fingerprints between builds so stages can
// skip work whose source has not changed since the last run.
//
// The store is a single sqlite database under the configured state
// directory. The pure-Go driver is used by default; building with the
// cgo_sqlite tag switches to the cgo driver.
package state

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// FileName is the database file created inside the state directory.
const FileName = "state.db"

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	path       TEXT PRIMARY KEY,
	sum        TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store maps output paths to the fingerprint of the source they were last
// produced from.
type Store struct {
	db *sql.DB
	// serializes writers; sqlite allows one at a time
	mu sync.Mutex
}

// Open creates or opens the store in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIOError("", dir, err)
	}

	path := filepath.Join(dir, FileName)
	db, err := openDB(path)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternal, "open state store", err).WithFile(path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.NewInternalError(errors.ErrCodeInternal, "create state schema", err).WithFile(path)
	}

	return &Store{db: db}, nil
}

// Fingerprint returns the recorded fingerprint for path, or "" if none.
func (s *Store) Fingerprint(ctx context.Context, path string) (string, error) {
	var sum string
	err := s.db.QueryRowContext(ctx, "SELECT sum FROM fingerprints WHERE path = ?", path).Scan(&sum)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInternal, "read fingerprint", err).WithFile(path)
	}
	return sum, nil
}

// Record stores sum as the fingerprint of path.
func (s *Store) Record(ctx context.Context, path, sum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (path, sum, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET sum = excluded.sum, updated_at = excluded.updated_at`,
		path, sum, time.Now().Unix())
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "record fingerprint", err).WithFile(path)
	}
	return nil
}

// Forget drops the fingerprint of path.
func (s *Store) Forget(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE path = ?", path); err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "forget fingerprint", err).WithFile(path)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sum returns the hex sha256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
