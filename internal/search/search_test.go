package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/domain"
)

func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func book(id, title, author string, active bool) *domain.Book {
	b := &domain.Book{Title: title, Author: author, Active: active}
	b.ID = id
	b.CreatedAt = time.Now()
	return b
}

func seed(t *testing.T, index *SearchIndex) {
	t.Helper()
	require.NoError(t, index.IndexBooks(context.Background(), []*domain.Book{
		book("book-1", "The Hobbit", "J.R.R. Tolkien", true),
		book("book-2", "The Lord of the Rings", "J.R.R. Tolkien", true),
		book("book-3", "Les Misérables", "Victor Hugo", true),
		book("book-4", "Unpublished Draft", "J.R.R. Tolkien", false),
	}))
}

func hitIDs(res *SearchResult) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexAndDeleteBook(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexBook(ctx, book("book-1", "Dune", "Frank Herbert", true)))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	require.NoError(t, index.DeleteBook(ctx, "book-1"))
	require.NoError(t, index.DeleteBook(ctx, "book-unknown"))
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexBook_Replaces(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexBook(ctx, book("book-1", "Dune", "Frank Herbert", true)))
	require.NoError(t, index.IndexBook(ctx, book("book-1", "Children of Dune", "Frank Herbert", true)))

	res, err := index.Search(ctx, SearchParams{Query: "children", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Children of Dune", res.Hits[0].Title)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_Search_ByAuthor(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{Query: "Tolkien", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.ElementsMatch(t, []string{"book-1", "book-2", "book-4"}, hitIDs(res))
}

func TestSearchIndex_Search_ActiveOnly(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{Query: "Tolkien", ActiveOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"book-1", "book-2"}, hitIDs(res))
	for _, h := range res.Hits {
		assert.True(t, h.Active)
	}
}

func TestSearchIndex_Search_MatchAllWithFilter(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{ActiveOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
}

func TestSearchIndex_Search_FoldsAccents(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	for _, q := range []string{"miserables", "Misérables"} {
		res, err := index.Search(context.Background(), SearchParams{Query: q, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"book-3"}, hitIDs(res), "query %q", q)
	}
}

func TestSearchIndex_Search_Prefix(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{Query: "hob", Limit: 10})
	require.NoError(t, err)
	assert.Contains(t, hitIDs(res), "book-1")
}

func TestSearchIndex_Search_SortByTitle(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{Query: "Tolkien", ActiveOnly: true, SortBy: "title", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	// "hobbit" sorts before "lord"
	assert.Equal(t, "book-1", res.Hits[0].ID)
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.Rebuild())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexBook(ctx, book("book-1", "Dune", "Frank Herbert", true)))
	require.NoError(t, index.Close())

	index, err = NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_MappingVersionChange(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexBook(ctx, book("book-1", "Dune", "Frank Herbert", true)))
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.version"), []byte("0"), 0o644))

	index, err = NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_LargeBatch(t *testing.T) {
	index := setupTestIndex(t)

	books := make([]*domain.Book, 1200)
	for i := range books {
		books[i] = book(fmt.Sprintf("book-%04d", i), "Volume", "Anon", true)
	}
	require.NoError(t, index.IndexBooks(context.Background(), books))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), count)
}

func TestNewBookDocument(t *testing.T) {
	b := book("book-1", "Les Misérables", "Victor Hugo", false)
	b.Format = domain.FormatEPUB
	b.FilePath = "/books/book-1.epub"
	b.TotalPages = 412

	doc := NewBookDocument(b)
	assert.Equal(t, "Les Miserables", doc.Title)
	assert.False(t, doc.Active)
	assert.True(t, doc.HasContent)
	assert.Equal(t, 412, doc.TotalPages)
	assert.NotContains(t, doc.toMap(), "description")
}

func TestDefaultSearchParams(t *testing.T) {
	p := DefaultSearchParams()
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, "relevance", p.SortBy)
	assert.True(t, p.Highlight)
}
