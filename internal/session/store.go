package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Store persists a session's full message log under a session key. Save
// replaces the stored log wholesale; Load returns nil for a key that has
// never been saved.
type Store interface {
	Load(key string) ([]Message, error)
	Save(key string, messages []Message) error
}

// FileStore persists each session as a JSON file in a directory, guarded by
// an advisory file lock so concurrent processes do not interleave writes.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the persisted log for key. A missing file means a never-saved
// session and returns (nil, nil); unreadable or malformed content is an
// error so the caller can fall back to a fresh log.
func (s *FileStore) Load(key string) ([]Message, error) {
	lock := flock.New(s.lockPath(key))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock session file: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("corrupt session file: %w", err)
	}
	return messages, nil
}

// Save writes the full log for key. The write goes to a temp file first and
// renames into place so a crash never leaves a half-written log.
func (s *FileStore) Save(key string, messages []Message) error {
	lock := flock.New(s.lockPath(key))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock session file: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) lockPath(key string) string {
	return filepath.Join(s.dir, key+".lock")
}
