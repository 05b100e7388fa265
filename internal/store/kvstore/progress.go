package kvstore

import (
	"context"
	"errors"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

// GetProgress returns the saved position of userID in bookID.
func (s *Store) GetProgress(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error) {
	p, err := s.progress.Get(ctx, domain.ReadingProgressID(userID, bookID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrProgressNotFound
	}
	return p, err
}

// SaveProgress creates or replaces a progress record.
func (s *Store) SaveProgress(ctx context.Context, progress *domain.ReadingProgress) error {
	return s.progress.Put(ctx, domain.ReadingProgressID(progress.UserID, progress.BookID), progress)
}

// DeleteProgress removes a progress record. Missing records are ignored.
func (s *Store) DeleteProgress(ctx context.Context, userID, bookID string) error {
	return s.progress.Delete(ctx, domain.ReadingProgressID(userID, bookID))
}

// ListUserProgress returns every progress record of a user.
func (s *Store) ListUserProgress(ctx context.Context, userID string) ([]*domain.ReadingProgress, error) {
	return s.progress.ListBy(ctx, "user", userID)
}

// DeleteBookProgress removes all progress for a book.
func (s *Store) DeleteBookProgress(ctx context.Context, bookID string) (int, error) {
	return s.deleteProgressBy(ctx, "book", bookID)
}

// DeleteUserProgress removes all progress of a user.
func (s *Store) DeleteUserProgress(ctx context.Context, userID string) (int, error) {
	return s.deleteProgressBy(ctx, "user", userID)
}

func (s *Store) deleteProgressBy(ctx context.Context, index, value string) (int, error) {
	records, err := s.progress.ListBy(ctx, index, value)
	if err != nil {
		return 0, err
	}
	for _, p := range records {
		if err := s.progress.Delete(ctx, domain.ReadingProgressID(p.UserID, p.BookID)); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

// GetReaderPreferences returns a user's saved display preferences.
func (s *Store) GetReaderPreferences(ctx context.Context, userID string) (*domain.ReaderPreferences, error) {
	p, err := s.prefs.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrPreferencesAbsent
	}
	return p, err
}

// SaveReaderPreferences creates or replaces a user's display preferences.
func (s *Store) SaveReaderPreferences(ctx context.Context, prefs *domain.ReaderPreferences) error {
	return s.prefs.Put(ctx, prefs.UserID, prefs)
}
