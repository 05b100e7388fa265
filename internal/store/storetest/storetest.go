// Package storetest holds behaviour tests every store.Store backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/reader"
	"github.com/booksy/booksy-server/internal/store"
)

// Opener returns a fresh, empty store. The store is closed by the caller's
// t.Cleanup.
type Opener func(t *testing.T) store.Store

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("Instance", func(t *testing.T) { testInstance(t, open(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, open(t)) })
	t.Run("Books", func(t *testing.T) { testBooks(t, open(t)) })
	t.Run("BookPagination", func(t *testing.T) { testBookPagination(t, open(t)) })
	t.Run("Progress", func(t *testing.T) { testProgress(t, open(t)) })
	t.Run("Preferences", func(t *testing.T) { testPreferences(t, open(t)) })
	t.Run("SearchIndexer", func(t *testing.T) { testSearchIndexer(t, open(t)) })
	t.Run("Cascades", func(t *testing.T) { testCascades(t, open(t)) })
}

// NewUser builds an active member for tests.
func NewUser(id, email string) *domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.User{
		Syncable:    domain.Syncable{ID: id, CreatedAt: now, UpdatedAt: now},
		Email:       email,
		Role:        domain.RoleMember,
		Status:      domain.UserStatusActive,
		DisplayName: "Reader " + id,
		Permissions: domain.DefaultPermissions(),
	}
}

// NewBook builds an active EPUB-backed book for tests.
func NewBook(id, hash string) *domain.Book {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Book{
		Syncable:    domain.Syncable{ID: id, CreatedAt: now, UpdatedAt: now},
		Title:       "Title " + id,
		Author:      "Author " + id,
		Slug:        "title-" + id,
		TotalPages:  120,
		WordCount:   36000,
		Format:      domain.FormatEPUB,
		FilePath:    "/books/" + id + ".epub",
		FileSize:    4096,
		ContentHash: hash,
		Active:      true,
	}
}

func testInstance(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetInstance(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Millisecond)
	inst := &domain.Instance{ID: "server", Name: "Booksy", Version: "1.0.0", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.SaveInstance(ctx, inst))

	inst.SetRootUser("user-1")
	inst.SetOpenRegistration(true)
	require.NoError(t, s.SaveInstance(ctx, inst))

	got, err := s.GetInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.RootUserID)
	assert.True(t, got.OpenRegistration)
	assert.False(t, got.IsSetupRequired())
	assert.Equal(t, "Booksy", got.Name)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	alice := NewUser("user-a", "Alice@Example.com")
	require.NoError(t, s.CreateUser(ctx, alice))

	err := s.CreateUser(ctx, NewUser("user-b", "alice@example.com"))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := s.GetUserByEmail(ctx, "  ALICE@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "user-a", got.ID)
	assert.Equal(t, domain.DefaultPermissions(), got.Permissions)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	bob := NewUser("user-b", "bob@example.com")
	bob.CreatedAt = alice.CreatedAt.Add(time.Second)
	require.NoError(t, s.CreateUser(ctx, bob))

	bob.Email = "alice@example.com"
	assert.ErrorIs(t, s.UpdateUser(ctx, bob), store.ErrAlreadyExists)

	bob.Email = "robert@example.com"
	bob.Role = domain.RoleAdmin
	require.NoError(t, s.UpdateUser(ctx, bob))
	_, err = s.GetUserByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err = s.GetUserByEmail(ctx, "robert@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())

	assert.ErrorIs(t, s.UpdateUser(ctx, NewUser("user-z", "z@example.com")), store.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user-a", users[0].ID)
	assert.Equal(t, "user-b", users[1].ID)

	require.NoError(t, s.DeleteUser(ctx, "user-a"))
	_, err = s.GetUser(ctx, "user-a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, "user-a"), store.ErrNotFound)

	// The email is free again.
	require.NoError(t, s.CreateUser(ctx, NewUser("user-c", "alice@example.com")))
}

func newSession(id, userID, hash string, expires time.Time) *domain.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Session{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: hash,
		ExpiresAt:        expires.UTC().Truncate(time.Millisecond),
		CreatedAt:        now,
		LastSeenAt:       now,
		IPAddress:        "192.168.1.20",
		DeviceType:       "desktop",
		Platform:         "Linux",
		ClientName:       "booksy-web",
		ClientVersion:    "1.0.0",
	}
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("user-a", "a@example.com")))

	live := newSession("session-1", "user-a", "hash-1", time.Now().Add(time.Hour))
	require.NoError(t, s.CreateSession(ctx, live))
	require.NoError(t, s.CreateSession(ctx, newSession("session-2", "user-a", "hash-2", time.Now().Add(time.Hour))))
	require.NoError(t, s.CreateSession(ctx, newSession("session-3", "user-a", "hash-3", time.Now().Add(-time.Hour))))

	got, err := s.GetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "Linux", got.Platform)
	assert.True(t, live.ExpiresAt.Equal(got.ExpiresAt))

	got, err = s.GetSessionByRefreshToken(ctx, "hash-2")
	require.NoError(t, err)
	assert.Equal(t, "session-2", got.ID)

	_, err = s.GetSession(ctx, "session-3")
	assert.ErrorIs(t, err, store.ErrSessionExpired)
	_, err = s.GetSessionByRefreshToken(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Rotate the refresh token.
	live.RefreshTokenHash = "hash-1b"
	require.NoError(t, s.UpdateSession(ctx, live))
	_, err = s.GetSessionByRefreshToken(ctx, "hash-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err = s.GetSessionByRefreshToken(ctx, "hash-1b")
	require.NoError(t, err)
	assert.Equal(t, "session-1", got.ID)

	sessions, err := s.ListUserSessions(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	n, err := s.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteSession(ctx, "session-2"))
	require.NoError(t, s.DeleteSession(ctx, "session-2"))

	n, err = s.DeleteUserSessions(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sessions, err = s.ListUserSessions(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func testBooks(t *testing.T, s store.Store) {
	ctx := context.Background()

	book := NewBook("book-1", "hash-1")
	book.CoverImage = &domain.ImageFileInfo{Format: "jpeg", Size: 2048, Hash: "cover", BlurHash: "LEHV6nWB2yk8"}
	require.NoError(t, s.CreateBook(ctx, book))

	assert.ErrorIs(t, s.CreateBook(ctx, NewBook("book-2", "hash-1")), store.ErrAlreadyExists)

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, 120, got.TotalPages)
	require.NotNil(t, got.CoverImage)
	assert.Equal(t, "LEHV6nWB2yk8", got.CoverImage.BlurHash)
	assert.True(t, got.HasContent())

	got, err = s.GetBookByContentHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "book-1", got.ID)

	// Metadata-only books have no hash and never collide.
	plain := NewBook("book-3", "")
	plain.Format = domain.FormatNone
	plain.FilePath = ""
	require.NoError(t, s.CreateBook(ctx, plain))
	require.NoError(t, s.CreateBook(ctx, func() *domain.Book {
		b := NewBook("book-4", "")
		b.Format, b.FilePath = domain.FormatNone, ""
		b.Active = false
		return b
	}()))

	book.Title = "Renamed"
	require.NoError(t, s.UpdateBook(ctx, book))
	got, err = s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	assert.ErrorIs(t, s.UpdateBook(ctx, NewBook("book-9", "hash-9")), store.ErrNotFound)

	counts, err := s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BookCounts{Total: 3, Active: 2}, counts)

	all, err := s.ListAllBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.DeleteBook(ctx, "book-1"))
	_, err = s.GetBook(ctx, "book-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteBook(ctx, "book-1"), store.ErrNotFound)

	// The hash is free again.
	require.NoError(t, s.CreateBook(ctx, NewBook("book-5", "hash-1")))
}

func testBookPagination(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := range 7 {
		b := NewBook(fmt.Sprintf("book-%02d", i), fmt.Sprintf("hash-%02d", i))
		b.Active = i%2 == 0
		require.NoError(t, s.CreateBook(ctx, b))
	}

	var seen []string
	params := store.PaginationParams{Limit: 3}
	for {
		page, err := s.ListBooks(ctx, domain.BookFilter{}, params)
		require.NoError(t, err)
		assert.Equal(t, 7, page.Total)
		for _, b := range page.Items {
			seen = append(seen, b.ID)
		}
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		params.Cursor = page.NextCursor
	}
	assert.Equal(t, []string{"book-00", "book-01", "book-02", "book-03", "book-04", "book-05", "book-06"}, seen)

	page, err := s.ListBooks(ctx, domain.BookFilter{ActiveOnly: true}, store.PaginationParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Len(t, page.Items, 4)
	assert.False(t, page.HasMore)

	_, err = s.ListBooks(ctx, domain.BookFilter{}, store.PaginationParams{Cursor: "%%%"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	empty, err := s.ListBooks(ctx, domain.BookFilter{AddedBy: "nobody"}, store.PaginationParams{})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func testProgress(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("user-a", "a@example.com")))
	require.NoError(t, s.CreateBook(ctx, NewBook("book-1", "hash-1")))
	require.NoError(t, s.CreateBook(ctx, NewBook("book-2", "hash-2")))

	_, err := s.GetProgress(ctx, "user-a", "book-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Millisecond)
	p := &domain.ReadingProgress{UserID: "user-a", BookID: "book-1"}
	p.ApplyState(reader.State{BookID: "book-1", CurrentPage: 12, TotalPages: 120, Bookmarks: []int{40, 2, 17}}, now)
	require.NoError(t, s.SaveProgress(ctx, p))

	p.ApplyState(reader.State{BookID: "book-1", CurrentPage: 120, TotalPages: 120, Bookmarks: []int{40, 2}}, now.Add(time.Minute))
	require.NoError(t, s.SaveProgress(ctx, p))

	got, err := s.GetProgress(ctx, "user-a", "book-1")
	require.NoError(t, err)
	assert.Equal(t, 120, got.CurrentPage)
	assert.Equal(t, []int{40, 2}, got.Bookmarks)
	assert.True(t, got.IsFinished())
	assert.True(t, now.Equal(got.StartedAt))

	other := &domain.ReadingProgress{UserID: "user-a", BookID: "book-2"}
	other.ApplyState(reader.State{BookID: "book-2", CurrentPage: 1, TotalPages: 50}, now)
	require.NoError(t, s.SaveProgress(ctx, other))

	list, err := s.ListUserProgress(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err = s.GetProgress(ctx, "user-a", "book-2")
	require.NoError(t, err)
	assert.NotNil(t, got.Bookmarks)
	assert.Empty(t, got.Bookmarks)

	require.NoError(t, s.DeleteProgress(ctx, "user-a", "book-2"))
	require.NoError(t, s.DeleteProgress(ctx, "user-a", "book-2"))
	list, err = s.ListUserProgress(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testPreferences(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("user-a", "a@example.com")))

	_, err := s.GetReaderPreferences(ctx, "user-a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	prefs := reader.DefaultPrefs()
	prefs.ReadingMode = reader.ModeSepia
	prefs.FontSize = 22
	require.NoError(t, s.SaveReaderPreferences(ctx, &domain.ReaderPreferences{UserID: "user-a", Prefs: prefs, UpdatedAt: time.Now()}))

	prefs.LineHeight = 2.0
	require.NoError(t, s.SaveReaderPreferences(ctx, &domain.ReaderPreferences{UserID: "user-a", Prefs: prefs, UpdatedAt: time.Now()}))

	got, err := s.GetReaderPreferences(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, prefs, got.Prefs)
}

// recordingIndexer remembers which books were indexed and removed.
type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	deleted []string
}

func (r *recordingIndexer) IndexBook(_ context.Context, b *domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, b.ID)
	return nil
}

func (r *recordingIndexer) DeleteBook(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

func testSearchIndexer(t *testing.T, s store.Store) {
	ctx := context.Background()
	idx := &recordingIndexer{}
	s.SetSearchIndexer(idx)

	book := NewBook("book-1", "hash-1")
	require.NoError(t, s.CreateBook(ctx, book))
	book.Title = "Second Edition"
	require.NoError(t, s.UpdateBook(ctx, book))
	require.NoError(t, s.DeleteBook(ctx, "book-1"))

	assert.Equal(t, []string{"book-1", "book-1"}, idx.indexed)
	assert.Equal(t, []string{"book-1"}, idx.deleted)
}

func testCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("user-a", "a@example.com")))
	require.NoError(t, s.CreateUser(ctx, NewUser("user-b", "b@example.com")))
	require.NoError(t, s.CreateBook(ctx, NewBook("book-1", "hash-1")))
	require.NoError(t, s.CreateSession(ctx, newSession("session-1", "user-a", "hash-s1", time.Now().Add(time.Hour))))

	now := time.Now().UTC()
	for _, uid := range []string{"user-a", "user-b"} {
		p := &domain.ReadingProgress{UserID: uid, BookID: "book-1"}
		p.ApplyState(reader.State{BookID: "book-1", CurrentPage: 3, TotalPages: 120}, now)
		require.NoError(t, s.SaveProgress(ctx, p))
	}
	require.NoError(t, s.SaveReaderPreferences(ctx, &domain.ReaderPreferences{UserID: "user-a", Prefs: reader.DefaultPrefs(), UpdatedAt: now}))

	require.NoError(t, s.DeleteUser(ctx, "user-a"))
	_, err := s.GetSession(ctx, "session-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetProgress(ctx, "user-a", "book-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetReaderPreferences(ctx, "user-a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteBook(ctx, "book-1"))
	_, err = s.GetProgress(ctx, "user-b", "book-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
