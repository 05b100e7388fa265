// Package kvstore implements store.Store on an embedded Badger database.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

const instanceKey = "server"

// Store wraps a Badger database.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	indexer store.SearchIndexer

	instance *Entity[domain.Instance]
	users    *Entity[domain.User]
	sessions *Entity[domain.Session]
	books    *Entity[domain.Book]
	progress *Entity[domain.ReadingProgress]
	prefs    *Entity[domain.ReaderPreferences]
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database directory at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{db: db, logger: logger, indexer: store.NoopSearchIndexer{}}
	s.instance = newEntity[domain.Instance](s, "instance")
	s.users = newEntity[domain.User](s, "user").
		WithUnique("email", func(u *domain.User) []string {
			return []string{domain.NormalizeEmail(u.Email)}
		}, domain.NormalizeEmail)
	s.sessions = newEntity[domain.Session](s, "session").
		WithUnique("refresh", func(x *domain.Session) []string { return []string{x.RefreshTokenHash} }, nil).
		WithGroup("user", func(x *domain.Session) []string { return []string{x.UserID} })
	s.books = newEntity[domain.Book](s, "book").
		WithUnique("hash", func(b *domain.Book) []string { return []string{b.ContentHash} }, nil)
	s.progress = newEntity[domain.ReadingProgress](s, "progress").
		WithGroup("user", func(p *domain.ReadingProgress) []string { return []string{p.UserID} }).
		WithGroup("book", func(p *domain.ReadingProgress) []string { return []string{p.BookID} })
	s.prefs = newEntity[domain.ReaderPreferences](s, "prefs")

	logger.Info("Badger database opened", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.logger.Info("Closing database connection")
	return s.db.Close()
}

// Ping verifies the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// SetSearchIndexer sets the indexer notified of book writes. It is set after
// construction because the search service itself reads from the store.
func (s *Store) SetSearchIndexer(indexer store.SearchIndexer) {
	if indexer == nil {
		indexer = store.NoopSearchIndexer{}
	}
	s.indexer = indexer
}

// GetInstance returns the server record or store.ErrInstanceNotFound.
func (s *Store) GetInstance(ctx context.Context) (*domain.Instance, error) {
	inst, err := s.instance.Get(ctx, instanceKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrInstanceNotFound
	}
	return inst, err
}

// SaveInstance creates or replaces the server record.
func (s *Store) SaveInstance(ctx context.Context, instance *domain.Instance) error {
	return s.instance.Put(ctx, instanceKey, instance)
}
