// Package rules holds the commission rules document.
package rules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrHistoryUnsupported is returned by stores that keep a single version only.
var ErrHistoryUnsupported = errors.New("rules history is not available for this store")

// Snapshot is one immutable version of the rules document.
type Snapshot struct {
	Text      string    `json:"rulesText"`
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSnapshot stamps text with its content hash.
func NewSnapshot(text string, updatedAt time.Time) Snapshot {
	return Snapshot{Text: text, Version: Version(text), UpdatedAt: updatedAt}
}

// Version is the hex SHA-256 of the document text; "" for an empty document.
func Version(text string) string {
	if text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Trimmed returns the text with surrounding whitespace removed.
func (s Snapshot) Trimmed() string {
	return strings.TrimSpace(s.Text)
}

func (s Snapshot) Empty() bool {
	return s.Trimmed() == ""
}

// Store is the single slot the rules document lives in.
type Store interface {
	Current(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, text string) (Snapshot, error)
}

// HistoryStore additionally lists earlier versions, newest first.
type HistoryStore interface {
	Store
	History(ctx context.Context, limit int) ([]Snapshot, error)
}

// MemoryStore keeps the document in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	current Snapshot
	now     func() time.Time
}

func NewMemoryStore(initial string) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	if initial != "" {
		s.current = NewSnapshot(initial, s.now().UTC())
	}
	return s
}

func (s *MemoryStore) Current(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *MemoryStore) Save(ctx context.Context, text string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = NewSnapshot(text, s.now().UTC())
	return s.current, nil
}
