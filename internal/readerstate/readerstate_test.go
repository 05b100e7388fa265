package readerstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/reader"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultWordsPerPage, cfg.WordsPerPage)
	assert.Equal(t, reader.DefaultPrefs(), cfg.Prefs)
	assert.True(t, filepath.IsAbs(cfg.StateFile))
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reader.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
words_per_page = 120
state_file = "`+filepath.Join(dir, "state.toml")+`"

[prefs]
font_size = 22
reading_mode = "sepia"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.WordsPerPage)
	assert.Equal(t, filepath.Join(dir, "state.toml"), cfg.StateFile)
	assert.Equal(t, 22, cfg.Prefs.FontSize)
	assert.Equal(t, reader.ModeSepia, cfg.Prefs.ReadingMode)
	assert.Equal(t, reader.FontSerif, cfg.Prefs.FontFamily, "unset fields keep defaults")
}

func TestLoadConfig_OutOfRangePrefsReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.toml")
	require.NoError(t, os.WriteFile(path, []byte("words_per_page = -5\n[prefs]\nfont_size = 40\nline_height = 9.0\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, defaultWordsPerPage, cfg.WordsPerPage)
	assert.Equal(t, reader.DefaultPrefs().FontSize, cfg.Prefs.FontSize)
	assert.Equal(t, reader.DefaultPrefs().LineHeight, cfg.Prefs.LineHeight)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.toml")
	require.NoError(t, os.WriteFile(path, []byte("words_per_page = [\n"), 0o644))

	cfg, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Equal(t, defaultWordsPerPage, cfg.WordsPerPage)
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.toml")

	st, err := Open(path)
	require.NoError(t, err)

	sess := st.Session("abc123", 40, reader.DefaultPrefs())
	assert.Equal(t, 1, sess.CurrentPage())

	sess.GoToPage(12)
	sess.ToggleBookmark()
	sess.GoToPage(30)
	sess.ToggleBookmark()
	sess.UpdatePreference(reader.KeyFontSize, 24)
	st.Record(sess, "Middlemarch")
	require.NoError(t, st.Save())

	reopened, err := Open(path)
	require.NoError(t, err)

	entry, ok := reopened.Entry("abc123")
	require.True(t, ok)
	assert.Equal(t, "Middlemarch", entry.Title)
	assert.Equal(t, 40, entry.TotalPages)

	restored := reopened.Session("abc123", 40, reader.DefaultPrefs())
	assert.Equal(t, 30, restored.CurrentPage())
	assert.Equal(t, []int{12, 30}, restored.Bookmarks())
	assert.Equal(t, 24, restored.Prefs().FontSize)
}

func TestStore_SessionClampsToCurrentPagination(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "state.toml"))
	require.NoError(t, err)

	sess := st.Session("abc123", 40, reader.DefaultPrefs())
	sess.GoToPage(35)
	sess.ToggleBookmark()
	st.Record(sess, "Middlemarch")

	// Fewer pages after a words-per-page change.
	smaller := st.Session("abc123", 20, reader.DefaultPrefs())
	assert.Equal(t, 20, smaller.CurrentPage())
	assert.Empty(t, smaller.Bookmarks())
}

func TestStore_LastPrefsApplyToNewBooks(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "state.toml"))
	require.NoError(t, err)

	sess := st.Session("first", 10, reader.DefaultPrefs())
	sess.UpdatePreference(reader.KeyReadingMode, "dark")
	st.Record(sess, "First")

	other := st.Session("second", 10, reader.DefaultPrefs())
	assert.Equal(t, reader.ModeDark, other.Prefs().ReadingMode)
	assert.Equal(t, 1, other.CurrentPage())
}

func TestStore_ConfigEditsOverrideSavedPrefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	configured := reader.DefaultPrefs()

	st, err := Open(path)
	require.NoError(t, err)
	sess := st.Session("abc123", 40, configured)
	sess.UpdatePreference(reader.KeyFontSize, 24)
	st.Record(sess, "Middlemarch")
	require.NoError(t, st.Save())

	// The user switches reader.toml to sepia between runs.
	configured.ReadingMode = reader.ModeSepia
	reopened, err := Open(path)
	require.NoError(t, err)
	restored := reopened.Session("abc123", 40, configured)
	assert.Equal(t, reader.ModeSepia, restored.Prefs().ReadingMode, "edited config value wins")
	assert.Equal(t, 24, restored.Prefs().FontSize, "value chosen while reading is kept")

	restored.UpdatePreference(reader.KeyReadingMode, "dark")
	reopened.Record(restored, "Middlemarch")
	require.NoError(t, reopened.Save())

	again, err := Open(path)
	require.NoError(t, err)
	last := again.Session("abc123", 40, configured)
	assert.Equal(t, reader.ModeDark, last.Prefs().ReadingMode, "unchanged config does not override")
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte("books = 7 = 8"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}
