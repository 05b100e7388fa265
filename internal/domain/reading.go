package domain

import (
	"math"
	"time"

	"github.com/booksy/booksy-server/internal/reader"
)

// ReadingProgress is the saved position and bookmarks of one user in one book.
type ReadingProgress struct {
	UserID      string     `json:"user_id"`
	BookID      string     `json:"book_id"`
	CurrentPage int        `json:"current_page"`
	TotalPages  int        `json:"total_pages"`
	Bookmarks   []int      `json:"bookmarks"` // insertion order
	StartedAt   time.Time  `json:"started_at"`
	LastReadAt  time.Time  `json:"last_read_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ReadingProgressID is the composite key "userID:bookID".
func ReadingProgressID(userID, bookID string) string {
	return userID + ":" + bookID
}

// Percent returns the rounded completion percentage.
func (p *ReadingProgress) Percent() float64 {
	if p.TotalPages <= 0 {
		return 0
	}
	return math.Round(float64(p.CurrentPage) / float64(p.TotalPages) * 100)
}

// IsFinished reports whether the reader reached the last page at some point.
func (p *ReadingProgress) IsFinished() bool {
	return p.FinishedAt != nil
}

// ApplyState copies position and bookmarks from a reader snapshot and stamps
// the finish time the first time the last page is reached.
func (p *ReadingProgress) ApplyState(st reader.State, now time.Time) {
	if p.StartedAt.IsZero() {
		p.StartedAt = now
	}
	p.CurrentPage = st.CurrentPage
	p.TotalPages = st.TotalPages
	p.Bookmarks = append([]int{}, st.Bookmarks...)
	p.LastReadAt = now
	if p.FinishedAt == nil && st.CurrentPage >= st.TotalPages {
		finished := now
		p.FinishedAt = &finished
	}
}

// ReaderPreferences are a user's default display preferences, applied to
// every book they open.
type ReaderPreferences struct {
	UserID    string       `json:"user_id"`
	Prefs     reader.Prefs `json:"prefs"`
	UpdatedAt time.Time    `json:"updated_at"`
}
