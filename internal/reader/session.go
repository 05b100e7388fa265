// Package reader holds the state of one open book: the current page, the
// bookmark set and the display preferences.
//
// A Session is not safe for concurrent use. Callers serialize access, either
// through a UI event loop or a per-session lock.
package reader

import (
	"math"
	"slices"
)

// Session tracks reading position, bookmarks and display preferences for a
// single book. The current page always stays within [1, TotalPages].
type Session struct {
	bookID      string
	totalPages  int
	currentPage int

	// bookmarks is kept in insertion order and never holds duplicates.
	bookmarks []int

	prefs       Prefs
	overlayOpen bool
}

// New opens a session at page 1 with default preferences.
// A totalPages below 1 is treated as a single page.
func New(bookID string, totalPages int) *Session {
	return &Session{
		bookID:      bookID,
		totalPages:  max(totalPages, 1),
		currentPage: 1,
		prefs:       DefaultPrefs(),
	}
}

// BookID returns the identifier of the open book.
func (s *Session) BookID() string { return s.bookID }

// TotalPages returns the page count fixed at session start.
func (s *Session) TotalPages() int { return s.totalPages }

// CurrentPage returns the 1-indexed current page.
func (s *Session) CurrentPage() int { return s.currentPage }

// GoToPage moves to target, clamped into [1, TotalPages].
func (s *Session) GoToPage(target int) {
	s.currentPage = min(max(target, 1), s.totalPages)
}

// NextPage advances one page. It does nothing on the last page.
func (s *Session) NextPage() {
	if s.currentPage < s.totalPages {
		s.GoToPage(s.currentPage + 1)
	}
}

// PreviousPage goes back one page. It does nothing on page 1.
func (s *Session) PreviousPage() {
	if s.currentPage > 1 {
		s.GoToPage(s.currentPage - 1)
	}
}

// ToggleBookmark flips membership of the current page in the bookmark set
// and reports whether the page is bookmarked afterwards.
func (s *Session) ToggleBookmark() bool {
	if i := slices.Index(s.bookmarks, s.currentPage); i >= 0 {
		s.bookmarks = slices.Delete(s.bookmarks, i, i+1)
		return false
	}
	s.bookmarks = append(s.bookmarks, s.currentPage)
	return true
}

// IsBookmarked reports whether page is in the bookmark set.
func (s *Session) IsBookmarked(page int) bool {
	return slices.Contains(s.bookmarks, page)
}

// Bookmarks returns the bookmarked pages in insertion order.
func (s *Session) Bookmarks() []int {
	out := make([]int, len(s.bookmarks))
	copy(out, s.bookmarks)
	return out
}

// SortedBookmarks returns the bookmarked pages in ascending order.
func (s *Session) SortedBookmarks() []int {
	out := s.Bookmarks()
	slices.Sort(out)
	return out
}

// JumpToBookmark goes to page and closes the navigation overlay.
func (s *Session) JumpToBookmark(page int) {
	s.GoToPage(page)
	s.overlayOpen = false
}

// OverlayOpen reports whether the bookmarks/contents overlay is shown.
func (s *Session) OverlayOpen() bool { return s.overlayOpen }

// ToggleOverlay shows or hides the navigation overlay.
func (s *Session) ToggleOverlay() { s.overlayOpen = !s.overlayOpen }

// CloseOverlay hides the navigation overlay.
func (s *Session) CloseOverlay() { s.overlayOpen = false }

// Prefs returns the current display preferences.
func (s *Session) Prefs() Prefs { return s.prefs }

// SetPrefs replaces the display preferences. Invalid fields fall back to
// their defaults.
func (s *Session) SetPrefs(p Prefs) { s.prefs = p.Sanitize() }

// UpdatePreference validates value against the domain of key and applies it.
// Out-of-domain values and unknown keys are rejected and the prior value is
// kept; the rejection is reported in the result, never as an error.
func (s *Session) UpdatePreference(key PrefKey, value any) UpdateResult {
	next, res := s.prefs.apply(key, value)
	if !res.Rejected {
		s.prefs = next
	}
	return res
}

// Progress returns round(CurrentPage / TotalPages * 100).
func (s *Session) Progress() float64 {
	return math.Round(float64(s.currentPage) / float64(s.totalPages) * 100)
}

// State is the persistable part of a session.
type State struct {
	BookID      string `json:"book_id"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	Bookmarks   []int  `json:"bookmarks"`
	Prefs       Prefs  `json:"prefs"`
}

// Snapshot captures the session state.
func (s *Session) Snapshot() State {
	return State{
		BookID:      s.bookID,
		CurrentPage: s.currentPage,
		TotalPages:  s.totalPages,
		Bookmarks:   s.Bookmarks(),
		Prefs:       s.prefs,
	}
}

// Restore rebuilds a session from a saved state. The page is clamped and
// out-of-range or repeated bookmarks are dropped. Invalid preferences fall
// back to their defaults.
func Restore(st State) *Session {
	s := New(st.BookID, st.TotalPages)
	s.GoToPage(st.CurrentPage)
	s.prefs = st.Prefs.Sanitize()

	for _, p := range st.Bookmarks {
		if p < 1 || p > s.totalPages || slices.Contains(s.bookmarks, p) {
			continue
		}
		s.bookmarks = append(s.bookmarks, p)
	}
	return s
}
