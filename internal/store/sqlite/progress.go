package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/reader"
	"github.com/booksy/booksy-server/internal/store"
)

const progressColumns = `user_id, book_id, current_page, total_pages, bookmarks,
	started_at, last_read_at, finished_at`

func scanProgress(scanner interface{ Scan(dest ...any) error }) (*domain.ReadingProgress, error) {
	var (
		p                     domain.ReadingProgress
		bookmarks             string
		startedAt, lastReadAt string
		finishedAt            sql.NullString
	)
	err := scanner.Scan(&p.UserID, &p.BookID, &p.CurrentPage, &p.TotalPages, &bookmarks,
		&startedAt, &lastReadAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	p.Bookmarks = []int{}
	if err := json.Unmarshal([]byte(bookmarks), &p.Bookmarks); err != nil {
		return nil, fmt.Errorf("decode bookmarks: %w", err)
	}
	if p.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if p.LastReadAt, err = parseTime(lastReadAt); err != nil {
		return nil, err
	}
	if p.FinishedAt, err = parseNullableTime(finishedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProgress returns the saved position of userID in bookID.
func (s *Store) GetProgress(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error) {
	p, err := scanProgress(s.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM reading_progress WHERE user_id = ? AND book_id = ?`, userID, bookID))
	if noRows(err) {
		return nil, store.ErrProgressNotFound
	}
	return p, err
}

// SaveProgress creates or replaces a progress record. Bookmarks keep their
// insertion order.
func (s *Store) SaveProgress(ctx context.Context, p *domain.ReadingProgress) error {
	bookmarks := p.Bookmarks
	if bookmarks == nil {
		bookmarks = []int{}
	}
	encoded, err := json.Marshal(bookmarks)
	if err != nil {
		return fmt.Errorf("encode bookmarks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reading_progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, book_id) DO UPDATE SET
			current_page = excluded.current_page,
			total_pages = excluded.total_pages,
			bookmarks = excluded.bookmarks,
			started_at = excluded.started_at,
			last_read_at = excluded.last_read_at,
			finished_at = excluded.finished_at`,
		p.UserID, p.BookID, p.CurrentPage, p.TotalPages, string(encoded),
		formatTime(p.StartedAt), formatTime(p.LastReadAt), nullTimeString(p.FinishedAt),
	)
	if isForeignKeyViolation(err) {
		return store.ErrInvalidInput.WithMessage("progress references an unknown user or book")
	}
	return err
}

// DeleteProgress removes a progress record. Missing records are ignored.
func (s *Store) DeleteProgress(ctx context.Context, userID, bookID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reading_progress WHERE user_id = ? AND book_id = ?`, userID, bookID)
	return err
}

// ListUserProgress returns every progress record of a user in book order.
func (s *Store) ListUserProgress(ctx context.Context, userID string) ([]*domain.ReadingProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM reading_progress WHERE user_id = ? ORDER BY book_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ReadingProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteBookProgress removes all progress for a book.
func (s *Store) DeleteBookProgress(ctx context.Context, bookID string) (int, error) {
	return s.deleteCount(ctx, `DELETE FROM reading_progress WHERE book_id = ?`, bookID)
}

// DeleteUserProgress removes all progress of a user.
func (s *Store) DeleteUserProgress(ctx context.Context, userID string) (int, error) {
	return s.deleteCount(ctx, `DELETE FROM reading_progress WHERE user_id = ?`, userID)
}

// GetReaderPreferences returns a user's saved display preferences.
func (s *Store) GetReaderPreferences(ctx context.Context, userID string) (*domain.ReaderPreferences, error) {
	var (
		p         domain.ReaderPreferences
		family    string
		mode      string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, font_size, font_family, line_height, reading_mode, updated_at
		FROM reader_preferences WHERE user_id = ?`, userID).Scan(
		&p.UserID, &p.Prefs.FontSize, &family, &p.Prefs.LineHeight, &mode, &updatedAt,
	)
	if noRows(err) {
		return nil, store.ErrPreferencesAbsent
	}
	if err != nil {
		return nil, err
	}
	p.Prefs.FontFamily = reader.FontFamily(family)
	p.Prefs.ReadingMode = reader.ReadingMode(mode)
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveReaderPreferences creates or replaces a user's display preferences.
func (s *Store) SaveReaderPreferences(ctx context.Context, p *domain.ReaderPreferences) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reader_preferences (user_id, font_size, font_family, line_height, reading_mode, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			font_size = excluded.font_size,
			font_family = excluded.font_family,
			line_height = excluded.line_height,
			reading_mode = excluded.reading_mode,
			updated_at = excluded.updated_at`,
		p.UserID, p.Prefs.FontSize, string(p.Prefs.FontFamily), p.Prefs.LineHeight,
		string(p.Prefs.ReadingMode), formatTime(p.UpdatedAt),
	)
	if isForeignKeyViolation(err) {
		return store.ErrUserNotFound
	}
	return err
}
