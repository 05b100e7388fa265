package readerstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/booksy/booksy-server/internal/reader"
)

// Entry is the saved position of one book.
type Entry struct {
	Title       string    `toml:"title"`
	CurrentPage int       `toml:"current_page"`
	TotalPages  int       `toml:"total_pages"`
	Bookmarks   []int     `toml:"bookmarks"`
	UpdatedAt   time.Time `toml:"updated_at"`
}

type file struct {
	// Prefs are the display preferences last used for any book.
	Prefs *reader.Prefs `toml:"prefs,omitempty"`

	// Configured are the config file preferences seen on the last run.
	Configured *reader.Prefs `toml:"configured_prefs,omitempty"`

	Books map[string]Entry `toml:"books"`
}

// Store is the state file. Books are keyed by the SHA-256 of their content
// so renaming or moving a file keeps its position.
type Store struct {
	mu   sync.Mutex
	path string
	data file
}

// Open loads the state file at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: file{Books: map[string]Entry{}}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := toml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	if s.data.Books == nil {
		s.data.Books = map[string]Entry{}
	}
	return s, nil
}

// Session rebuilds the reading session for the book with the given content
// hash. Unknown books start at page 1. Preferences are the ones last used,
// except that a value changed in the config file since the last run replaces
// the saved one.
func (s *Store) Session(hash string, totalPages int, configured reader.Prefs) *reader.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := reader.State{BookID: hash, CurrentPage: 1, TotalPages: totalPages, Prefs: configured}
	if s.data.Prefs != nil {
		st.Prefs = *s.data.Prefs
		if seen := s.data.Configured; seen != nil {
			for _, k := range reader.PrefKeys() {
				if seen.Merge(k, configured) != *seen {
					st.Prefs = st.Prefs.Merge(k, configured)
				}
			}
		}
	}
	s.data.Configured = &configured
	if e, ok := s.data.Books[hash]; ok {
		st.CurrentPage = e.CurrentPage
		st.Bookmarks = e.Bookmarks
	}
	return reader.Restore(st)
}

// Entry returns the saved entry for hash.
func (s *Store) Entry(hash string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data.Books[hash]
	return e, ok
}

// Record stores the position of sess, whose BookID is the content hash.
func (s *Store) Record(sess *reader.Session, title string) {
	snap := sess.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Books[snap.BookID] = Entry{
		Title:       title,
		CurrentPage: snap.CurrentPage,
		TotalPages:  snap.TotalPages,
		Bookmarks:   snap.Bookmarks,
		UpdatedAt:   time.Now().UTC(),
	}
	prefs := snap.Prefs
	s.data.Prefs = &prefs
}

// Save writes the state file, replacing it atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	raw, err := toml.Marshal(s.data)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".reader-state-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
