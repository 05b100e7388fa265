package kvstore

import (
	"context"
	"errors"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

// CreateBook stores a new book. Books with content must have a unique
// content hash.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	err := s.books.Create(ctx, book.ID, book)
	if errors.Is(err, store.ErrAlreadyExists) && book.ContentHash != "" {
		if existing, lookupErr := s.books.GetBy(ctx, "hash", book.ContentHash); lookupErr == nil && existing.ID != book.ID {
			return store.ErrDuplicateBook
		}
	}
	if err != nil {
		return err
	}
	s.indexBook(ctx, book)
	return nil
}

// GetBook returns the book with id.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	b, err := s.books.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrBookNotFound
	}
	return b, err
}

// GetBookByContentHash finds the book whose EPUB has the given SHA-256.
func (s *Store) GetBookByContentHash(ctx context.Context, hash string) (*domain.Book, error) {
	b, err := s.books.GetBy(ctx, "hash", hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrBookNotFound
	}
	return b, err
}

// UpdateBook replaces a stored book.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	err := s.books.Update(ctx, book.ID, book)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.ErrBookNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return store.ErrDuplicateBook
	case err != nil:
		return err
	}
	s.indexBook(ctx, book)
	return nil
}

// DeleteBook removes a book and every reading progress record for it.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if _, err := s.GetBook(ctx, id); err != nil {
		return err
	}
	if _, err := s.DeleteBookProgress(ctx, id); err != nil {
		return err
	}
	if err := s.books.Delete(ctx, id); err != nil {
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
		page  []*domain.Book
		total int
	)
	for b, err := range s.books.List(ctx) {
		if err != nil {
			return nil, err
		}
		if !matches(b, filter) {
			continue
		}
		total++
		if b.ID > after && len(page) <= params.Limit {
			page = append(page, b)
		}
	}

	res := store.Paginate(page, total, params.Limit, func(b *domain.Book) string { return b.ID })
	return &res, nil
}

// ListAllBooks returns every book in id order.
func (s *Store) ListAllBooks(ctx context.Context) ([]*domain.Book, error) {
	var out []*domain.Book
	for b, err := range s.books.List(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// CountBooks counts all and active books.
func (s *Store) CountBooks(ctx context.Context) (domain.BookCounts, error) {
	var counts domain.BookCounts
	for b, err := range s.books.List(ctx) {
		if err != nil {
			return domain.BookCounts{}, err
		}
		counts.Total++
		if b.Active {
			counts.Active++
		}
	}
	return counts, nil
}

func matches(b *domain.Book, f domain.BookFilter) bool {
	if f.ActiveOnly && !b.Active {
		return false
	}
	if f.AddedBy != "" && b.AddedBy != f.AddedBy {
		return false
	}
	return true
}

func (s *Store) indexBook(ctx context.Context, book *domain.Book) {
	if err := s.indexer.IndexBook(ctx, book); err != nil {
		s.logger.Warn("failed to index book for search", "book_id", book.ID, "error", err)
	}
}
