// Package images stores cover images and derives their placeholders.
package images

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when no image is stored for an ID.
var ErrNotFound = errors.New("image not found")

// Storage manages cover files under one directory.
// Safe for concurrent use.
type Storage struct {
	dir string
	mu  sync.RWMutex
}

// NewStorage creates dir if needed and returns a Storage rooted there.
func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save writes the image for id, replacing any previous one.
func (s *Storage) Save(id string, data []byte) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write then rename so readers never see a partial file.
	tmp := s.Path(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp, s.Path(id)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move image file: %w", err)
	}
	return nil
}

// Get reads the image for id.
func (s *Storage) Get(id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// Exists reports whether an image is stored for id.
func (s *Storage) Exists(id string) bool {
	if id == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Delete removes the image for id. Missing images are not an error.
func (s *Storage) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// Path returns the file path for id's image.
func (s *Storage) Path(id string) string {
	return filepath.Join(s.dir, id+".img")
}

// Hash returns the hex SHA-256 of data, used as the cover ETag.
func Hash(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
