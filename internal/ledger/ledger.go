// Package ledger persists the single piece of cross-cycle state: the
// timestamp of the last successful watering.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Ledger stores the last-watered timestamp. Get returns the zero time
// when nothing has been recorded yet.
type Ledger interface {
	Get() (time.Time, error)
	Set(t time.Time) error
}

// FileLedger keeps the timestamp as epoch seconds in a small state file,
// written atomically via a temp file and rename.
type FileLedger struct {
	mu   sync.Mutex
	path string
}

// NewFileLedger opens (or prepares to create) the state file at path.
func NewFileLedger(path string) (*FileLedger, error) {
	if path == "" {
		return nil, errors.New("ledger: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create dir: %w", err)
	}
	return &FileLedger{path: path}, nil
}

func (l *FileLedger) Get() (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Set records t. Writes that would move the timestamp backwards are
// refused: last-watered is monotonically non-decreasing.
func (l *FileLedger) Set(t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, err := l.read()
	if err != nil {
		return err
	}
	if t.Before(cur) {
		return fmt.Errorf("ledger: refusing to move last-watered backwards (%v < %v)", t.Unix(), cur.Unix())
	}

	tmp := l.path + ".tmp"
	data := strconv.FormatInt(t.Unix(), 10) + "\n"
	if err := os.WriteFile(tmp, []byte(data), 0o644); err != nil {
		return fmt.Errorf("ledger: write temp: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("ledger: rename: %w", err)
	}
	return nil
}

func (l *FileLedger) read() (time.Time, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("ledger: read: %w", err)
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("ledger: corrupt state %q: %w", s, err)
	}
	if sec <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0), nil
}
