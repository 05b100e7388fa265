package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/reader"
	"github.com/booksy/booksy-server/internal/sse"
	"github.com/booksy/booksy-server/internal/store"
)

func openNovel(t *testing.T, env *testEnv, chapters int) (*domain.User, *domain.Book, *SessionView) {
	t.Helper()
	root := env.setupRoot(t)
	book := env.uploadBook(t, root, novel("Middlemarch", "George Eliot", chapters))
	view, err := env.reader.Open(context.Background(), root, book.ID)
	require.NoError(t, err)
	return root, book, view
}

func TestReaderService_OpenFresh(t *testing.T) {
	env := newTestEnv(t)
	_, book, view := openNovel(t, env, 2)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, book.ID, view.BookID)
	assert.Equal(t, "Middlemarch", view.Title)
	assert.Equal(t, 1, view.CurrentPage)
	assert.Equal(t, 4, view.TotalPages)
	assert.Equal(t, float64(25), view.Progress)
	assert.Empty(t, view.Bookmarks)
	assert.NotNil(t, view.Bookmarks)
	assert.Equal(t, reader.DefaultPrefs(), view.Prefs)
	assert.Equal(t, 1, env.reader.OpenSessions())
}

func TestReaderService_Navigation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, _, view := openNovel(t, env, 2)

	view, err := env.reader.PreviousPage(ctx, user, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentPage, "previous on page 1 is a no-op")

	view, err = env.reader.NextPage(ctx, user, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.CurrentPage)

	view, err = env.reader.GoToPage(ctx, user, view.ID, 150)
	require.NoError(t, err)
	assert.Equal(t, 4, view.CurrentPage)
	assert.Equal(t, float64(100), view.Progress)

	view, err = env.reader.NextPage(ctx, user, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, view.CurrentPage, "next on the last page is a no-op")

	view, err = env.reader.GoToPage(ctx, user, view.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentPage)
}

func TestReaderService_Bookmarks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, book, view := openNovel(t, env, 3)

	view, err := env.reader.GoToPage(ctx, user, view.ID, 5)
	require.NoError(t, err)
	view, err = env.reader.ToggleBookmark(ctx, user, view.ID)
	require.NoError(t, err)
	assert.True(t, view.IsBookmarked)
	assert.Equal(t, []int{5}, view.Bookmarks)

	view, err = env.reader.GoToPage(ctx, user, view.ID, 2)
	require.NoError(t, err)
	view, err = env.reader.ToggleBookmark(ctx, user, view.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2}, view.Bookmarks)
	assert.Equal(t, []int{2, 5}, view.SortedBookmarks)

	view, err = env.reader.ToggleBookmark(ctx, user, view.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, view.Bookmarks)
	assert.False(t, view.IsBookmarked)

	view, err = env.reader.JumpToBookmark(ctx, user, view.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, view.CurrentPage)

	saved, err := env.store.GetProgress(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.CurrentPage)
	assert.Equal(t, []int{5}, saved.Bookmarks)
}

func TestReaderService_CloseAndReopenRestores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, book, view := openNovel(t, env, 2)

	_, err := env.reader.GoToPage(ctx, user, view.ID, 3)
	require.NoError(t, err)
	_, err = env.reader.ToggleBookmark(ctx, user, view.ID)
	require.NoError(t, err)
	_, _, err = env.reader.UpdatePreference(ctx, user, view.ID, reader.KeyReadingMode, "sepia")
	require.NoError(t, err)

	require.NoError(t, env.reader.Close(ctx, user, view.ID))
	assert.Equal(t, 0, env.reader.OpenSessions())

	_, err = env.reader.Get(ctx, user, view.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	reopened, err := env.reader.Open(ctx, user, book.ID)
	require.NoError(t, err)
	assert.NotEqual(t, view.ID, reopened.ID)
	assert.Equal(t, 3, reopened.CurrentPage)
	assert.Equal(t, []int{3}, reopened.Bookmarks)
	assert.Equal(t, reader.ModeSepia, reopened.Prefs.ReadingMode)
}

func TestReaderService_OpenTwiceReturnsSameSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, book, view := openNovel(t, env, 1)

	again, err := env.reader.Open(ctx, user, book.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, again.ID)
	assert.Equal(t, 1, env.reader.OpenSessions())
}

func TestReaderService_UpdatePreference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, _, view := openNovel(t, env, 1)

	view, res, err := env.reader.UpdatePreference(ctx, user, view.ID, reader.KeyFontSize, 40)
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, reader.DefaultPrefs().FontSize, view.Prefs.FontSize)

	_, err = env.store.GetReaderPreferences(ctx, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "rejected updates are not saved")

	view, res, err = env.reader.UpdatePreference(ctx, user, view.ID, reader.KeyFontSize, float64(22))
	require.NoError(t, err)
	assert.False(t, res.Rejected)
	assert.Equal(t, 22, view.Prefs.FontSize)

	saved, err := env.store.GetReaderPreferences(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 22, saved.Prefs.FontSize)

	prefs, err := env.reader.Preferences(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 22, prefs.FontSize)
}

func TestReaderService_PreferencesFollowUserAcrossBooks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, _, view := openNovel(t, env, 1)

	_, _, err := env.reader.UpdatePreference(ctx, user, view.ID, reader.KeyFontFamily, "monospace")
	require.NoError(t, err)

	other := env.uploadBook(t, user, novel("Persuasion", "Jane Austen", 1))
	second, err := env.reader.Open(ctx, user, other.ID)
	require.NoError(t, err)
	assert.Equal(t, reader.FontMonospace, second.Prefs.FontFamily)
	assert.Equal(t, 1, second.CurrentPage)
}

func TestReaderService_Content(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, _, view := openNovel(t, env, 2)

	text, err := env.reader.Content(ctx, user, view.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ContentText, text.Format)
	assert.Equal(t, 1, text.Number)
	assert.True(t, strings.HasPrefix(text.Content, "c0p0w0 c0p0w1"))
	assert.NotContains(t, text.Content, "c0p2w0", "page 1 holds the first two paragraphs")

	_, err = env.reader.GoToPage(ctx, user, view.ID, 3)
	require.NoError(t, err)
	md, err := env.reader.Content(ctx, user, view.ID, ContentMarkdown)
	require.NoError(t, err)
	assert.Equal(t, 3, md.Number)
	assert.Contains(t, md.Content, "c1p0w0")

	_, err = env.reader.Content(ctx, user, view.ID, "pdf")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestReaderService_SessionsArePrivate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, view := openNovel(t, env, 1)
	intruder := env.member(t, "intruder@example.com")

	_, err := env.reader.Get(ctx, intruder, view.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = env.reader.NextPage(ctx, intruder, view.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.ErrorIs(t, env.reader.Close(ctx, intruder, view.ID), domainerrors.ErrNotFound)
}

func TestReaderService_OpenRequiresContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.setupRoot(t)

	book, err := env.books.CreateBook(ctx, root, CreateBookRequest{Title: "No File", Author: "A"})
	require.NoError(t, err)

	_, err = env.reader.Open(ctx, root, book.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestReaderService_Sweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, book, view := openNovel(t, env, 2)

	_, err := env.reader.NextPage(ctx, user, view.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, env.reader.Sweep(ctx), "fresh sessions survive")

	now := time.Now()
	env.reader.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.Equal(t, 1, env.reader.Sweep(ctx))
	assert.Equal(t, 0, env.reader.OpenSessions())

	saved, err := env.store.GetProgress(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.CurrentPage)
}

func TestReaderService_DeletedBookDropsSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, book, view := openNovel(t, env, 1)

	require.NoError(t, env.books.DeleteBook(ctx, user, book.ID))
	assert.Equal(t, 0, env.reader.OpenSessions())

	_, err := env.reader.NextPage(ctx, user, view.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestReaderService_ListProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, book, view := openNovel(t, env, 2)

	_, err := env.reader.GoToPage(ctx, user, view.ID, 4)
	require.NoError(t, err)

	list, err := env.reader.ListProgress(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, book.ID, list[0].BookID)
	assert.Equal(t, "Middlemarch", list[0].Title)
	assert.Equal(t, float64(100), list[0].Percent)
	assert.NotNil(t, list[0].FinishedAt)

	// Hidden books drop out of a member's list.
	member := env.member(t, "member@example.com")
	_, err = env.books.SetActive(ctx, user, book.ID, true)
	require.NoError(t, err)
	memberView, err := env.reader.Open(ctx, member, book.ID)
	require.NoError(t, err)
	_, err = env.reader.NextPage(ctx, member, memberView.ID)
	require.NoError(t, err)
	_, err = env.books.SetActive(ctx, user, book.ID, false)
	require.NoError(t, err)

	list, err = env.reader.ListProgress(ctx, member)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReaderService_RepaginatesOnPageSizeChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.setupRoot(t)
	book := env.uploadBook(t, root, novel("Resized", "A", 2))
	require.Equal(t, 4, book.TotalPages)

	env.reader.wordsPerPage = 100
	view, err := env.reader.Open(ctx, root, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalPages)

	stored, err := env.store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalPages)
}

// slowProgressStore delays progress lookups so concurrent opens overlap.
type slowProgressStore struct {
	store.Store
}

func (s slowProgressStore) GetProgress(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error) {
	time.Sleep(20 * time.Millisecond)
	return s.Store.GetProgress(ctx, userID, bookID)
}

func TestReaderService_ConcurrentOpensShareSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.setupRoot(t)
	book := env.uploadBook(t, user, novel("Middlemarch", "George Eliot", 3))

	rs, err := NewReaderService(slowProgressStore{env.store}, env.books, env.cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { rs.CloseAll(context.Background()) })

	const n = 8
	views := make([]*SessionView, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := rs.Open(ctx, user, book.ID)
			assert.NoError(t, err)
			views[i] = v
		}()
	}
	wg.Wait()

	for _, v := range views {
		require.NotNil(t, v)
		assert.Equal(t, views[0].ID, v.ID)
	}
	assert.Equal(t, 1, rs.OpenSessions())

	_, err = rs.GoToPage(ctx, user, views[0].ID, 3)
	require.NoError(t, err)
	_, err = rs.ToggleBookmark(ctx, user, views[1].ID)
	require.NoError(t, err)
	_, err = rs.GoToPage(ctx, user, views[n-1].ID, 5)
	require.NoError(t, err)

	saved, err := env.store.GetProgress(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.CurrentPage)
	assert.Equal(t, []int{3}, saved.Bookmarks)
}

func TestReaderService_PreferenceChangesMergeAcrossSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, _, first := openNovel(t, env, 1)

	other := env.uploadBook(t, user, novel("Persuasion", "Jane Austen", 1))
	second, err := env.reader.Open(ctx, user, other.ID)
	require.NoError(t, err)

	_, _, err = env.reader.UpdatePreference(ctx, user, first.ID, reader.KeyFontSize, 24)
	require.NoError(t, err)

	view, res, err := env.reader.UpdatePreference(ctx, user, second.ID, reader.KeyReadingMode, "dark")
	require.NoError(t, err)
	require.False(t, res.Rejected)
	assert.Equal(t, 24, view.Prefs.FontSize, "font size set in the other book is kept")
	assert.Equal(t, reader.ModeDark, view.Prefs.ReadingMode)

	prefs, err := env.reader.Preferences(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 24, prefs.FontSize)
	assert.Equal(t, reader.ModeDark, prefs.ReadingMode)
}

func TestReaderService_RejectedPreferenceChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, book, view := openNovel(t, env, 2)

	rec := &recorder{}
	env.reader.SetEventEmitter(rec)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.reader.now = func() time.Time { return start }

	_, err := env.reader.NextPage(ctx, user, view.ID)
	require.NoError(t, err)
	require.Equal(t, []sse.EventType{sse.EventReaderProgress}, rec.types())

	env.reader.now = func() time.Time { return start.Add(time.Hour) }
	_, res, err := env.reader.UpdatePreference(ctx, user, view.ID, reader.KeyFontSize, 40)
	require.NoError(t, err)
	require.True(t, res.Rejected)

	assert.Len(t, rec.types(), 1, "rejections are not broadcast")
	saved, err := env.store.GetProgress(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, saved.LastReadAt.Equal(start), "progress is not rewritten")
}
