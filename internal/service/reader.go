package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/ebook"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/reader"
	"github.com/booksy/booksy-server/internal/sse"
	"github.com/booksy/booksy-server/internal/store"
)

// Content formats served by ReaderService.Content.
const (
	ContentText     = "text"
	ContentMarkdown = "markdown"
)

// bookCacheBytes bounds the memory held by parsed books.
const bookCacheBytes = 256 << 20

// ReaderService keeps the open reader sessions of all users. Each session
// wraps a reader.Session and is persisted as ReadingProgress (position and
// bookmarks) and ReaderPreferences (display prefs) after every change.
type ReaderService struct {
	store  store.Store
	books  *BookService
	cache  *ristretto.Cache[string, *ebook.Book]
	logger *slog.Logger
	events EventEmitter

	wordsPerPage int
	idleTTL      time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*openSession

	// prefsMu serializes read-merge-write of stored preferences.
	prefsMu sync.Mutex
}

type openSession struct {
	mu         sync.Mutex
	id         string
	userID     string
	book       *domain.Book
	parsed     *ebook.Book
	session    *reader.Session
	progress   *domain.ReadingProgress
	lastActive time.Time
	closed     bool
}

// NewReaderService creates a reader service. Sessions idle for longer than
// cfg.Reader.SessionIdleTTL are dropped by Sweep.
func NewReaderService(store store.Store, books *BookService, cfg *config.Config, logger *slog.Logger) (*ReaderService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *ebook.Book]{
		NumCounters:        1e4,
		MaxCost:            bookCacheBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create book cache: %w", err)
	}

	s := &ReaderService{
		store:        store,
		books:        books,
		cache:        cache,
		logger:       orDiscard(logger),
		wordsPerPage: cfg.Reader.WordsPerPage,
		idleTTL:      cfg.Reader.SessionIdleTTL,
		now:          time.Now,
		sessions:     make(map[string]*openSession),
		events:       noopEmitter{},
	}
	books.OnDelete(s.ForgetBook)
	return s, nil
}

// SetEventEmitter sends every session change to the owner's other clients
// through e.
func (s *ReaderService) SetEventEmitter(e EventEmitter) {
	s.events = e
}

// SessionView is the client-facing state of an open session.
type SessionView struct {
	ID              string       `json:"id"`
	BookID          string       `json:"book_id"`
	Title           string       `json:"title"`
	Author          string       `json:"author"`
	CurrentPage     int          `json:"current_page"`
	TotalPages      int          `json:"total_pages"`
	Progress        float64      `json:"progress"`
	Chapter         string       `json:"chapter,omitempty"`
	Bookmarks       []int        `json:"bookmarks"`
	SortedBookmarks []int        `json:"sorted_bookmarks"`
	IsBookmarked    bool         `json:"is_bookmarked"`
	Prefs           reader.Prefs `json:"prefs"`
	LastActive      time.Time    `json:"last_active"`
}

// PageContent is the text of one page.
type PageContent struct {
	Number     int    `json:"number"`
	TotalPages int    `json:"total_pages"`
	Chapter    string `json:"chapter,omitempty"`
	Format     string `json:"format"`
	Content    string `json:"content"`
}

// ProgressView is a saved reading position joined with its book.
type ProgressView struct {
	BookID      string     `json:"book_id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	CurrentPage int        `json:"current_page"`
	TotalPages  int        `json:"total_pages"`
	Percent     float64    `json:"percent"`
	Bookmarks   []int      `json:"bookmarks"`
	StartedAt   time.Time  `json:"started_at"`
	LastReadAt  time.Time  `json:"last_read_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Open starts reading a book, restoring the saved position, bookmarks and
// the user's preferences. A user who already has the book open gets the
// existing session back.
func (s *ReaderService) Open(ctx context.Context, user *domain.User, bookID string) (*SessionView, error) {
	book, err := s.books.ContentBook(ctx, user, bookID)
	if err != nil {
		return nil, err
	}

	if sess := s.findOpen(user.ID, book.ID); sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.lastActive = s.now()
		return s.view(sess), nil
	}

	parsed, err := s.loadBook(book)
	if err != nil {
		return nil, err
	}
	if parsed.TotalPages() != book.TotalPages {
		s.logger.Warn("Page count changed, updating book",
			"book_id", book.ID,
			"stored", book.TotalPages,
			"parsed", parsed.TotalPages(),
			"words_per_page", s.wordsPerPage,
		)
		book.TotalPages = parsed.TotalPages()
		book.Touch()
		if err := s.store.UpdateBook(ctx, book); err != nil {
			return nil, fmt.Errorf("update page count: %w", err)
		}
	}

	progress, err := s.store.GetProgress(ctx, user.ID, book.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		progress = &domain.ReadingProgress{UserID: user.ID, BookID: book.ID}
	case err != nil:
		return nil, fmt.Errorf("load reading progress: %w", err)
	}

	prefs, err := s.Preferences(ctx, user)
	if err != nil {
		return nil, err
	}

	session := reader.Restore(reader.State{
		BookID:      book.ID,
		CurrentPage: progress.CurrentPage,
		TotalPages:  parsed.TotalPages(),
		Bookmarks:   progress.Bookmarks,
		Prefs:       prefs,
	})

	sess := &openSession{
		id:         uuid.NewString(),
		userID:     user.ID,
		book:       book,
		parsed:     parsed,
		session:    session,
		progress:   progress,
		lastActive: s.now(),
	}

	s.mu.Lock()
	if winner := s.findOpenLocked(user.ID, book.ID); winner != nil {
		s.mu.Unlock()
		winner.mu.Lock()
		defer winner.mu.Unlock()
		winner.lastActive = s.now()
		return s.view(winner), nil
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Debug("Reader session opened",
		"session_id", sess.id,
		"user_id", user.ID,
		"book_id", book.ID,
		"page", session.CurrentPage(),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(sess), nil
}

// Get returns the current state of a session.
func (s *ReaderService) Get(ctx context.Context, user *domain.User, sessionID string) (*SessionView, error) {
	return s.mutate(ctx, user, sessionID, nil)
}

// GoToPage moves to page, clamped into the book.
func (s *ReaderService) GoToPage(ctx context.Context, user *domain.User, sessionID string, page int) (*SessionView, error) {
	return s.mutate(ctx, user, sessionID, func(rs *reader.Session) edit {
		rs.GoToPage(page)
		return edit{}
	})
}

// NextPage advances one page.
func (s *ReaderService) NextPage(ctx context.Context, user *domain.User, sessionID string) (*SessionView, error) {
	return s.mutate(ctx, user, sessionID, func(rs *reader.Session) edit {
		rs.NextPage()
		return edit{}
	})
}

// PreviousPage goes back one page.
func (s *ReaderService) PreviousPage(ctx context.Context, user *domain.User, sessionID string) (*SessionView, error) {
	return s.mutate(ctx, user, sessionID, func(rs *reader.Session) edit {
		rs.PreviousPage()
		return edit{}
	})
}

// JumpToBookmark moves to page. The page does not have to be bookmarked.
func (s *ReaderService) JumpToBookmark(ctx context.Context, user *domain.User, sessionID string, page int) (*SessionView, error) {
	return s.mutate(ctx, user, sessionID, func(rs *reader.Session) edit {
		rs.JumpToBookmark(page)
		return edit{}
	})
}

// ToggleBookmark flips the bookmark on the current page.
func (s *ReaderService) ToggleBookmark(ctx context.Context, user *domain.User, sessionID string) (*SessionView, error) {
	return s.mutate(ctx, user, sessionID, func(rs *reader.Session) edit {
		rs.ToggleBookmark()
		return edit{}
	})
}

// UpdatePreference applies one display preference. An out-of-range value is
// not an error: the result reports the rejection and nothing changes.
func (s *ReaderService) UpdatePreference(ctx context.Context, user *domain.User, sessionID string, key reader.PrefKey, value any) (*SessionView, reader.UpdateResult, error) {
	var res reader.UpdateResult
	view, err := s.mutate(ctx, user, sessionID, func(rs *reader.Session) edit {
		res = rs.UpdatePreference(key, value)
		if res.Rejected {
			return edit{unchanged: true}
		}
		return edit{pref: key}
	})
	return view, res, err
}

// Content returns the current page as plain text or Markdown.
func (s *ReaderService) Content(ctx context.Context, user *domain.User, sessionID, format string) (*PageContent, error) {
	if format == "" {
		format = ContentText
	}
	if format != ContentText && format != ContentMarkdown {
		return nil, domainerrors.Validation("format must be %q or %q", ContentText, ContentMarkdown)
	}

	sess, err := s.lookup(user, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, domainerrors.NotFound("reader session not found")
	}
	sess.lastActive = s.now()

	n := sess.session.CurrentPage()
	page, err := sess.parsed.Page(n)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", n, err)
	}

	out := &PageContent{
		Number:     n,
		TotalPages: sess.session.TotalPages(),
		Format:     format,
		Content:    page.Text,
	}
	if ch, ok := sess.parsed.ChapterAt(n); ok {
		out.Chapter = ch.Title
	}
	if format == ContentMarkdown {
		out.Content = ebook.PageMarkdown(page)
	}
	return out, nil
}

// Close persists a session and forgets it.
func (s *ReaderService) Close(ctx context.Context, user *domain.User, sessionID string) error {
	sess, err := s.lookup(user, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil
	}
	sess.closed = true
	return s.saveProgress(ctx, sess)
}

// Preferences returns the user's saved display preferences, or the defaults.
func (s *ReaderService) Preferences(ctx context.Context, user *domain.User) (reader.Prefs, error) {
	return s.loadPrefs(ctx, user.ID)
}

func (s *ReaderService) loadPrefs(ctx context.Context, userID string) (reader.Prefs, error) {
	saved, err := s.store.GetReaderPreferences(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return reader.DefaultPrefs(), nil
	case err != nil:
		return reader.Prefs{}, fmt.Errorf("load reader preferences: %w", err)
	}
	return saved.Prefs.Sanitize(), nil
}

// ListProgress returns the user's saved positions, most recent first. Books
// the user can no longer see are skipped.
func (s *ReaderService) ListProgress(ctx context.Context, user *domain.User) ([]ProgressView, error) {
	records, err := s.store.ListUserProgress(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list reading progress: %w", err)
	}

	slices.SortFunc(records, func(a, b *domain.ReadingProgress) int {
		return b.LastReadAt.Compare(a.LastReadAt)
	})

	out := make([]ProgressView, 0, len(records))
	for _, p := range records {
		book, err := s.store.GetBook(ctx, p.BookID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get book %s: %w", p.BookID, err)
		}
		if !book.VisibleTo(user) {
			continue
		}
		out = append(out, ProgressView{
			BookID:      p.BookID,
			Title:       book.Title,
			Author:      book.Author,
			CurrentPage: p.CurrentPage,
			TotalPages:  p.TotalPages,
			Percent:     p.Percent(),
			Bookmarks:   p.Bookmarks,
			StartedAt:   p.StartedAt,
			LastReadAt:  p.LastReadAt,
			FinishedAt:  p.FinishedAt,
		})
	}
	return out, nil
}

// Sweep persists and drops sessions idle for longer than the idle TTL. It
// returns how many were dropped.
func (s *ReaderService) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var idle []*openSession
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if sess.lastActive.Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
		sess.mu.Unlock()
	}
	s.mu.Unlock()

	for _, sess := range idle {
		s.finish(ctx, sess)
	}
	if len(idle) > 0 {
		s.logger.Info("Closed idle reader sessions", "count", len(idle))
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *ReaderService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// CloseAll persists and drops every open session. It runs on shutdown.
func (s *ReaderService) CloseAll(ctx context.Context) {
	s.mu.Lock()
	all := make([]*openSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	clear(s.sessions)
	s.mu.Unlock()

	for _, sess := range all {
		s.finish(ctx, sess)
	}
	s.cache.Close()
}

// ForgetBook drops the open sessions and cached content of a deleted book
// without saving them.
func (s *ReaderService) ForgetBook(bookID string) {
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.book.ID == bookID {
			delete(s.sessions, id)
			sess.mu.Lock()
			sess.closed = true
			sess.mu.Unlock()
		}
	}
	s.mu.Unlock()
	s.cache.Del(bookID)
}

// OpenSessions returns the number of open sessions.
func (s *ReaderService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// edit reports what a session mutation changed.
type edit struct {
	unchanged bool           // nothing to persist or broadcast
	pref      reader.PrefKey // display preference that changed, if any
}

// mutate runs fn on the session under its lock and persists the result. A
// nil fn only reads.
func (s *ReaderService) mutate(ctx context.Context, user *domain.User, sessionID string, fn func(*reader.Session) edit) (*SessionView, error) {
	sess, err := s.lookup(user, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, domainerrors.NotFound("reader session not found")
	}
	sess.lastActive = s.now()

	if fn == nil {
		return s.view(sess), nil
	}

	e := fn(sess.session)
	if e.unchanged {
		return s.view(sess), nil
	}
	if e.pref != "" {
		if err := s.savePreference(ctx, sess, e.pref); err != nil {
			return nil, err
		}
	}
	if err := s.saveProgress(ctx, sess); err != nil {
		return nil, err
	}
	view := s.view(sess)
	s.events.Emit(sse.NewReaderProgressEvent(sess.userID, view))
	return view, nil
}

// savePreference writes the changed key on top of the stored preferences, so
// changes made from the user's other sessions survive. The session picks up
// the merged result. Callers hold sess.mu.
func (s *ReaderService) savePreference(ctx context.Context, sess *openSession, key reader.PrefKey) error {
	s.prefsMu.Lock()
	defer s.prefsMu.Unlock()

	stored, err := s.loadPrefs(ctx, sess.userID)
	if err != nil {
		return err
	}
	merged := stored.Merge(key, sess.session.Prefs())
	if err := s.store.SaveReaderPreferences(ctx, &domain.ReaderPreferences{
		UserID:    sess.userID,
		Prefs:     merged,
		UpdatedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("save reader preferences: %w", err)
	}
	sess.session.SetPrefs(merged)
	return nil
}

// lookup finds a session owned by user. Sessions of other users are
// reported as missing.
func (s *ReaderService) lookup(user *domain.User, sessionID string) (*openSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok || sess.userID != user.ID {
		return nil, domainerrors.NotFound("reader session not found")
	}
	return sess, nil
}

func (s *ReaderService) findOpen(userID, bookID string) *openSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOpenLocked(userID, bookID)
}

// findOpenLocked is findOpen for callers holding s.mu.
func (s *ReaderService) findOpenLocked(userID, bookID string) *openSession {
	for _, sess := range s.sessions {
		if sess.userID == userID && sess.book.ID == bookID {
			return sess
		}
	}
	return nil
}

// loadBook returns the parsed EPUB of book, from cache when its content and
// page size match.
func (s *ReaderService) loadBook(book *domain.Book) (*ebook.Book, error) {
	if parsed, ok := s.cache.Get(book.ID); ok && parsed.WordsPerPage() == s.wordsPerPage {
		return parsed, nil
	}

	parsed, err := ebook.Open(book.FilePath, s.wordsPerPage)
	if err != nil {
		return nil, fmt.Errorf("open book %s: %w", book.ID, err)
	}
	s.cache.Set(book.ID, parsed, int64(parsed.WordCount())*8+1)
	return parsed, nil
}

// saveProgress writes the session position. Callers hold sess.mu.
func (s *ReaderService) saveProgress(ctx context.Context, sess *openSession) error {
	sess.progress.ApplyState(sess.session.Snapshot(), s.now())
	if err := s.store.SaveProgress(ctx, sess.progress); err != nil {
		return fmt.Errorf("save reading progress: %w", err)
	}
	return nil
}

func (s *ReaderService) finish(ctx context.Context, sess *openSession) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	sess.closed = true
	if err := s.saveProgress(ctx, sess); err != nil {
		s.logger.Warn("Failed to save reader session", "session_id", sess.id, "error", err)
	}
}

// view snapshots sess. Callers hold sess.mu.
func (s *ReaderService) view(sess *openSession) *SessionView {
	rs := sess.session
	v := &SessionView{
		ID:              sess.id,
		BookID:          sess.book.ID,
		Title:           sess.book.Title,
		Author:          sess.book.Author,
		CurrentPage:     rs.CurrentPage(),
		TotalPages:      rs.TotalPages(),
		Progress:        rs.Progress(),
		Bookmarks:       rs.Bookmarks(),
		SortedBookmarks: rs.SortedBookmarks(),
		IsBookmarked:    rs.IsBookmarked(rs.CurrentPage()),
		Prefs:           rs.Prefs(),
		LastActive:      sess.lastActive,
	}
	if ch, ok := sess.parsed.ChapterAt(rs.CurrentPage()); ok {
		v.Chapter = ch.Title
	}
	return v
}
