package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/username/commissioncalc/backend/src/logger"
)

// DefaultFileName is the rules file inside DATA_DIR.
const DefaultFileName = "rules.txt"

// FileStore keeps the document in one file. Writes go to a temp file that is
// renamed over the target, so a reader sees either the old or the new text.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Current returns an empty snapshot when no rules were saved yet.
func (s *FileStore) Current(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading rules file %s: %w", s.path, err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat rules file %s: %w", s.path, err)
	}
	return NewSnapshot(string(data), info.ModTime().UTC()), nil
}

func (s *FileStore) Save(ctx context.Context, text string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("creating rules directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.tmp")
	if err != nil {
		return Snapshot{}, fmt.Errorf("creating temp rules file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return Snapshot{}, fmt.Errorf("writing temp rules file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Snapshot{}, fmt.Errorf("syncing temp rules file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Snapshot{}, fmt.Errorf("closing temp rules file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return Snapshot{}, fmt.Errorf("replacing rules file %s: %w", s.path, err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat rules file %s: %w", s.path, err)
	}
	snap := NewSnapshot(text, info.ModTime().UTC())
	logger.FromContext(ctx).Info("Rules document saved", "path", s.path, "version", snap.Version, "bytes", len(text))
	return snap, nil
}
