package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/booksy/booksy-server/internal/ebook"
	"github.com/booksy/booksy-server/internal/reader"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Padding(0, 1)

	markStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	overlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Reverse(true)

	themes = map[reader.ReadingMode]lipgloss.Style{
		reader.ModeLight: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#FAFAFA")),
		reader.ModeDark: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D8D8D8")).
			Background(lipgloss.Color("#1E1E1E")),
		reader.ModeSepia: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5B4636")).
			Background(lipgloss.Color("#F4ECD8")),
	}
)

// chrome is the number of lines outside the page body.
const chrome = 3

type model struct {
	book     *ebook.Book
	title    string
	session  *reader.Session
	keyboard *reader.Keyboard
	detach   func()

	keys   keyMap
	help   help.Model
	page   viewport.Model
	cursor int
	notice string

	width    int
	height   int
	quitting bool
}

// newModel attaches sess to a keyboard owned by the model. The arrow and
// escape keys reach the session through that subscription until quit.
func newModel(book *ebook.Book, title string, sess *reader.Session) model {
	kb := reader.NewKeyboard()
	m := model{
		book:     book,
		title:    title,
		session:  sess,
		keyboard: kb,
		detach:   sess.Attach(kb),
		keys:     defaultKeyMap(),
		help:     help.New(),
		page:     viewport.New(80, 24-chrome),
		width:    80,
		height:   24,
	}
	m.render()
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.render()
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	page := m.session.CurrentPage()
	overlay := m.session.OverlayOpen()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.detach()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Close):
		m.keyboard.Dispatch(reader.KeyEscape)

	case key.Matches(msg, m.keys.Overlay):
		m.session.ToggleOverlay()
		m.cursor = 0

	case overlay && key.Matches(msg, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)

	case overlay && key.Matches(msg, m.keys.Down):
		m.cursor = min(m.cursor+1, max(len(m.session.Bookmarks())-1, 0))

	case overlay && key.Matches(msg, m.keys.Jump):
		if marks := m.session.SortedBookmarks(); len(marks) > 0 {
			m.clampCursor()
			m.session.JumpToBookmark(marks[m.cursor])
		}

	case key.Matches(msg, m.keys.Next):
		m.keyboard.Dispatch(reader.KeyRight)

	case key.Matches(msg, m.keys.Prev):
		m.keyboard.Dispatch(reader.KeyLeft)

	case key.Matches(msg, m.keys.Bookmark):
		if m.session.ToggleBookmark() {
			m.notice = fmt.Sprintf("Bookmarked page %d", m.session.CurrentPage())
		} else {
			m.notice = fmt.Sprintf("Removed bookmark on page %d", m.session.CurrentPage())
		}
		m.clampCursor()

	case key.Matches(msg, m.keys.Bigger):
		m.updatePreference(reader.KeyFontSize, m.session.Prefs().FontSize+1)

	case key.Matches(msg, m.keys.Smaller):
		m.updatePreference(reader.KeyFontSize, m.session.Prefs().FontSize-1)

	case key.Matches(msg, m.keys.Mode):
		m.updatePreference(reader.KeyReadingMode, m.session.Prefs().ReadingMode.Next())

	case key.Matches(msg, m.keys.Up, m.keys.Down):
		var cmd tea.Cmd
		m.page, cmd = m.page.Update(msg)
		return m, cmd
	}

	m.render()
	if m.session.CurrentPage() != page {
		m.page.GotoTop()
	}
	return m, nil
}

// clampCursor keeps the overlay selection inside the bookmark list.
func (m *model) clampCursor() {
	m.cursor = max(min(m.cursor, len(m.session.Bookmarks())-1), 0)
}

func (m *model) updatePreference(k reader.PrefKey, v any) {
	if res := m.session.UpdatePreference(k, v); res.Rejected {
		m.notice = res.Reason
	}
}

// render lays the current page out for the window size and preferences.
func (m *model) render() {
	m.page.Width = m.width
	m.page.Height = max(m.height-chrome, 1)

	prefs := m.session.Prefs()
	column := columnWidth(prefs, m.width)

	text, err := m.pageText()
	if err != nil {
		m.page.SetContent(err.Error())
		return
	}

	wrapped := lipgloss.NewStyle().Width(column).Render(text)
	spaced := spaceLines(wrapped, prefs.LineHeight)
	body := themes[prefs.ReadingMode].Width(column).Render(spaced)
	m.page.SetContent(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, body))
}

func (m *model) pageText() (string, error) {
	if m.book == nil {
		return "", fmt.Errorf("no book loaded")
	}
	p, err := m.book.Page(m.session.CurrentPage())
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

// columnWidth scales a 72 column measure at the default font size. Larger
// fonts read as a narrower column.
func columnWidth(prefs reader.Prefs, width int) int {
	cols := 72 * reader.DefaultPrefs().FontSize / prefs.FontSize
	return max(min(cols, width-4), 20)
}

// spaceLines adds a blank line after every line for line heights of 2 or
// more.
func spaceLines(s string, lineHeight float64) string {
	gap := int(lineHeight) - 1
	if gap <= 0 {
		return s
	}
	return strings.Join(strings.Split(s, "\n"), strings.Repeat("\n", gap+1))
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteString("\n")

	if m.session.OverlayOpen() {
		sb.WriteString(lipgloss.Place(m.width, m.page.Height, lipgloss.Center, lipgloss.Center, m.overlay()))
	} else {
		sb.WriteString(m.page.View())
	}
	sb.WriteString("\n")

	if m.notice != "" {
		sb.WriteString(noticeStyle.Render(m.notice))
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))

	return sb.String()
}

func (m model) header() string {
	prefs := m.session.Prefs()
	mark := ""
	if m.session.IsBookmarked(m.session.CurrentPage()) {
		mark = markStyle.Render(" ★")
	}
	status := statusStyle.Render(fmt.Sprintf("Page %d/%d | %.0f%% | %dpt %s | %s",
		m.session.CurrentPage(),
		m.session.TotalPages(),
		m.session.Progress(),
		prefs.FontSize,
		prefs.FontFamily,
		prefs.ReadingMode,
	))
	return headerStyle.Render(m.title) + mark + status
}

func (m model) overlay() string {
	marks := m.session.SortedBookmarks()
	if len(marks) == 0 {
		return overlayStyle.Render("No bookmarks yet. Press b to add one.")
	}

	lines := []string{headerStyle.Render("Bookmarks")}
	for i, p := range marks {
		line := fmt.Sprintf("Page %d", p)
		if ch, ok := m.book.ChapterAt(p); ok && ch.Title != "" {
			line += "  " + ch.Title
		}
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return overlayStyle.Render(strings.Join(lines, "\n"))
}
