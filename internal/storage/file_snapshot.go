package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// FileSnapshot stores the user registry as a single JSON document.
type FileSnapshot struct {
	path string
}

// NewFileSnapshot creates a snapshot backed by the file at path.
func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{path: path}
}

// Path returns the filesystem path to the snapshot file.
func (s *FileSnapshot) Path() string {
	return s.path
}

// LoadUsers reads the snapshot. A missing file is an empty registry.
func (s *FileSnapshot) LoadUsers(_ context.Context) ([]models.User, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading user snapshot: %w", err)
	}

	var users []models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decoding user snapshot: %w", err)
	}
	return users, nil
}

// SaveUsers writes the snapshot through a temporary file and a rename, so a
// crash never leaves a truncated registry behind.
func (s *FileSnapshot) SaveUsers(_ context.Context, users []models.User) error {
	if users == nil {
		users = []models.User{}
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing user snapshot: %w", err)
	}
	return nil
}
