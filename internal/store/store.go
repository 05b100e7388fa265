// Package store defines the persistence contract for Booksy. The kvstore
// (Badger) and sqlite subpackages implement it.
package store

import (
	"context"

	"github.com/booksy/booksy-server/internal/domain"
)

// Store is implemented by every persistence backend.
type Store interface {
	Close() error
	Ping(ctx context.Context) error
	SetSearchIndexer(indexer SearchIndexer)

	// Instance
	GetInstance(ctx context.Context) (*domain.Instance, error)
	SaveInstance(ctx context.Context, instance *domain.Instance) error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// Auth sessions
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListUserSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	DeleteUserSessions(ctx context.Context, userID string) (int, error)
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// Books
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	GetBookByContentHash(ctx context.Context, hash string) (*domain.Book, error)
	UpdateBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, id string) error
	ListBooks(ctx context.Context, filter domain.BookFilter, params PaginationParams) (*PaginatedResult[*domain.Book], error)
	ListAllBooks(ctx context.Context) ([]*domain.Book, error)
	CountBooks(ctx context.Context) (domain.BookCounts, error)

	// Reading progress, keyed by (user, book)
	GetProgress(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error)
	SaveProgress(ctx context.Context, progress *domain.ReadingProgress) error
	DeleteProgress(ctx context.Context, userID, bookID string) error
	ListUserProgress(ctx context.Context, userID string) ([]*domain.ReadingProgress, error)
	DeleteBookProgress(ctx context.Context, bookID string) (int, error)
	DeleteUserProgress(ctx context.Context, userID string) (int, error)

	// Reader preferences
	GetReaderPreferences(ctx context.Context, userID string) (*domain.ReaderPreferences, error)
	SaveReaderPreferences(ctx context.Context, prefs *domain.ReaderPreferences) error
}

// SearchIndexer keeps the search index in step with book writes. Backends
// call it after a successful commit; indexing failures are logged, not returned.
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, bookID string) error
}

// NoopSearchIndexer ignores all updates.
type NoopSearchIndexer struct{}

// IndexBook is a no-op.
func (NoopSearchIndexer) IndexBook(context.Context, *domain.Book) error { return nil }

// DeleteBook is a no-op.
func (NoopSearchIndexer) DeleteBook(context.Context, string) error { return nil }
