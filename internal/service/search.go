package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/search"
	"github.com/booksy/booksy-server/internal/store"
)

// MaxSearchLimit caps the page size of a search.
const MaxSearchLimit = 100

// SearchService runs catalog searches and keeps the index in step with the
// store.
type SearchService struct {
	index  *search.SearchIndex
	store  store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, store store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  store,
		logger: orDiscard(logger),
	}
}

// Search queries the catalog as user. Members only ever see active books.
func (s *SearchService) Search(ctx context.Context, user *domain.User, params search.SearchParams) (*search.SearchResult, error) {
	params.Query = strings.TrimSpace(params.Query)
	if len(params.Query) > 200 {
		return nil, domainerrors.Validation("query is too long")
	}
	if params.Limit <= 0 {
		params.Limit = search.DefaultSearchParams().Limit
	}
	params.Limit = min(params.Limit, MaxSearchLimit)
	params.Offset = max(params.Offset, 0)
	if !user.IsAdmin() {
		params.ActiveOnly = true
	}

	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// ReindexResult reports a full index rebuild.
type ReindexResult struct {
	Indexed  int   `json:"indexed"`
	Duration int64 `json:"duration_ms"`
}

// ReindexAll drops the index and rebuilds it from every stored book.
func (s *SearchService) ReindexAll(ctx context.Context) (*ReindexResult, error) {
	start := time.Now()

	books, err := s.store.ListAllBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if err := s.index.Rebuild(); err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}
	if err := s.index.IndexBooks(ctx, books); err != nil {
		return nil, fmt.Errorf("index books: %w", err)
	}

	res := &ReindexResult{Indexed: len(books), Duration: time.Since(start).Milliseconds()}
	s.logger.Info("Search index rebuilt", "books", res.Indexed, "duration_ms", res.Duration)
	return res, nil
}

// EnsureIndexed rebuilds the index when it holds fewer documents than the
// store has books, e.g. after a mapping change wiped it.
func (s *SearchService) EnsureIndexed(ctx context.Context) error {
	count, err := s.index.DocumentCount()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	counts, err := s.store.CountBooks(ctx)
	if err != nil {
		return fmt.Errorf("count books: %w", err)
	}
	if count >= uint64(counts.Total) {
		return nil
	}
	s.logger.Info("Search index out of date, rebuilding", "indexed", count, "books", counts.Total)
	_, err = s.ReindexAll(ctx)
	return err
}

// DocumentCount returns the number of indexed books.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}
