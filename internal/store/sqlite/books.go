package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

// bookColumns must match the scan order in scanBook.
const bookColumns = `id, created_at, updated_at, deleted_at, title, author, description,
	isbn, language, publisher, publish_year, slug, total_pages, word_count,
	format, file_path, file_size, content_hash,
	cover_format, cover_size, cover_hash, cover_blur_hash, active, added_by`

func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b                                domain.Book
		createdAt, updatedAt             string
		deletedAt                        sql.NullString
		description, isbn, language      sql.NullString
		publisher, publishYear           sql.NullString
		format                           string
		filePath, contentHash, addedBy   sql.NullString
		coverFormat, coverHash, blurHash sql.NullString
		coverSize                        sql.NullInt64
	)
	err := scanner.Scan(
		&b.ID, &createdAt, &updatedAt, &deletedAt, &b.Title, &b.Author, &description,
		&isbn, &language, &publisher, &publishYear, &b.Slug, &b.TotalPages, &b.WordCount,
		&format, &filePath, &b.FileSize, &contentHash,
		&coverFormat, &coverSize, &coverHash, &blurHash, &b.Active, &addedBy,
	)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if b.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	b.Description = description.String
	b.ISBN = isbn.String
	b.Language = language.String
	b.Publisher = publisher.String
	b.PublishYear = publishYear.String
	b.Format = domain.BookFormat(format)
	b.FilePath = filePath.String
	b.ContentHash = contentHash.String
	b.AddedBy = addedBy.String
	if coverFormat.Valid {
		b.CoverImage = &domain.ImageFileInfo{
			Format:   coverFormat.String,
			Size:     coverSize.Int64,
			Hash:     coverHash.String,
			BlurHash: blurHash.String,
		}
	}
	return &b, nil
}

func coverArgs(c *domain.ImageFileInfo) (format sql.NullString, size sql.NullInt64, hash, blur sql.NullString) {
	if c == nil {
		return
	}
	return nullString(c.Format), sql.NullInt64{Int64: c.Size, Valid: true}, nullString(c.Hash), nullString(c.BlurHash)
}

// CreateBook inserts a book. A content hash already in the catalog yields
// store.ErrDuplicateBook.
func (s *Store) CreateBook(ctx context.Context, b *domain.Book) error {
	coverFormat, coverSize, coverHash, blurHash := coverArgs(b.CoverImage)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, created_at, updated_at, deleted_at, title, author, description,
			isbn, language, publisher, publish_year, slug, total_pages, word_count,
			format, file_path, file_size, content_hash,
			cover_format, cover_size, cover_hash, cover_blur_hash, active, added_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, formatTime(b.CreatedAt), formatTime(b.UpdatedAt), nullTimeString(b.DeletedAt),
		b.Title, b.Author, nullString(b.Description),
		nullString(b.ISBN), nullString(b.Language), nullString(b.Publisher), nullString(b.PublishYear),
		b.Slug, b.TotalPages, b.WordCount,
		string(b.Format), nullString(b.FilePath), b.FileSize, nullString(b.ContentHash),
		coverFormat, coverSize, coverHash, blurHash, b.Active, nullString(b.AddedBy),
	)
	if err != nil {
		return bookWriteError(err)
	}
	s.indexBook(ctx, b)
	return nil
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if noRows(err) {
		return nil, store.ErrBookNotFound
	}
	return b, err
}

// GetBookByContentHash finds the book whose EPUB has the given SHA-256.
func (s *Store) GetBookByContentHash(ctx context.Context, hash string) (*domain.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE content_hash = ?`, hash))
	if noRows(err) {
		return nil, store.ErrBookNotFound
	}
	return b, err
}

// UpdateBook performs a full row update.
func (s *Store) UpdateBook(ctx context.Context, b *domain.Book) error {
	coverFormat, coverSize, coverHash, blurHash := coverArgs(b.CoverImage)
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			updated_at = ?, deleted_at = ?, title = ?, author = ?, description = ?,
			isbn = ?, language = ?, publisher = ?, publish_year = ?, slug = ?,
			total_pages = ?, word_count = ?, format = ?, file_path = ?, file_size = ?,
			content_hash = ?, cover_format = ?, cover_size = ?, cover_hash = ?,
			cover_blur_hash = ?, active = ?, added_by = ?
		WHERE id = ?`,
		formatTime(b.UpdatedAt), nullTimeString(b.DeletedAt), b.Title, b.Author, nullString(b.Description),
		nullString(b.ISBN), nullString(b.Language), nullString(b.Publisher), nullString(b.PublishYear), b.Slug,
		b.TotalPages, b.WordCount, string(b.Format), nullString(b.FilePath), b.FileSize,
		nullString(b.ContentHash), coverFormat, coverSize, coverHash,
		blurHash, b.Active, nullString(b.AddedBy),
		b.ID,
	)
	if err != nil {
		return bookWriteError(err)
	}
	if err := affected(res, store.ErrBookNotFound); err != nil {
		return err
	}
	s.indexBook(ctx, b)
	return nil
}

// DeleteBook removes a book and all reading progress for it.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reading_progress WHERE book_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := affected(res, store.ErrBookNotFound); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := s.indexer.DeleteBook(ctx, id); err != nil {
		s.logger.Warn("failed to remove book from search index", "book_id", id, "error", err)
	}
	return nil
}

// ListBooks returns one page of books in id order.
func (s *Store) ListBooks(ctx context.Context, filter domain.BookFilter, params store.PaginationParams) (*store.PaginatedResult[*domain.Book], error) {
	params.Normalize()
	after, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.ActiveOnly {
		where = append(where, "active = 1")
	}
	if filter.AddedBy != "" {
		where = append(where, "added_by = ?")
		args = append(args, filter.AddedBy)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+clause, args...).Scan(&total); err != nil {
		return nil, err
	}

	pageWhere := append(where, "id > ?")
	pageArgs := append(append([]any{}, args...), after, params.Limit+1)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE `+strings.Join(pageWhere, " AND ")+` ORDER BY id ASC LIMIT ?`,
		pageArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res := store.Paginate(books, total, params.Limit, func(b *domain.Book) string { return b.ID })
	return &res, nil
}

// ListAllBooks returns every book in id order.
func (s *Store) ListAllBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks counts all and active books.
func (s *Store) CountBooks(ctx context.Context) (domain.BookCounts, error) {
	var c domain.BookCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(active), 0) FROM books`).Scan(&c.Total, &c.Active)
	return c, err
}

func bookWriteError(err error) error {
	if isUniqueViolation(err) {
		if strings.Contains(err.Error(), "content_hash") {
			return store.ErrDuplicateBook
		}
		return store.ErrAlreadyExists
	}
	return err
}

func (s *Store) indexBook(ctx context.Context, b *domain.Book) {
	if err := s.indexer.IndexBook(ctx, b); err != nil {
		s.logger.Warn("failed to index book for search", "book_id", b.ID, "error", err)
	}
}
