package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdatePreference_RejectsFontSize40(t *testing.T) {
	s := New("book-1", 10)
	prior := s.Prefs().FontSize

	res := s.UpdatePreference(KeyFontSize, 40)
	assert.True(t, res.Rejected)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, prior, s.Prefs().FontSize)
}

func TestUpdatePreference(t *testing.T) {
	tests := []struct {
		name     string
		key      PrefKey
		value    any
		rejected bool
		check    func(t *testing.T, p Prefs)
	}{
		{"font size min", KeyFontSize, 14, false, func(t *testing.T, p Prefs) { assert.Equal(t, 14, p.FontSize) }},
		{"font size max", KeyFontSize, 28, false, func(t *testing.T, p Prefs) { assert.Equal(t, 28, p.FontSize) }},
		{"font size from json number", KeyFontSize, float64(22), false, func(t *testing.T, p Prefs) { assert.Equal(t, 22, p.FontSize) }},
		{"font size too small", KeyFontSize, 13, true, nil},
		{"font size fractional", KeyFontSize, 16.5, true, nil},
		{"font size string", KeyFontSize, "20", true, nil},
		{"line height min", KeyLineHeight, 1.2, false, func(t *testing.T, p Prefs) { assert.Equal(t, 1.2, p.LineHeight) }},
		{"line height max", KeyLineHeight, 2.5, false, func(t *testing.T, p Prefs) { assert.Equal(t, 2.5, p.LineHeight) }},
		{"line height int", KeyLineHeight, 2, false, func(t *testing.T, p Prefs) { assert.Equal(t, 2.0, p.LineHeight) }},
		{"line height too large", KeyLineHeight, 3.0, true, nil},
		{"line height too small", KeyLineHeight, 1.0, true, nil},
		{"font family", KeyFontFamily, "monospace", false, func(t *testing.T, p Prefs) { assert.Equal(t, FontMonospace, p.FontFamily) }},
		{"font family typed", KeyFontFamily, FontSansSerif, false, func(t *testing.T, p Prefs) { assert.Equal(t, FontSansSerif, p.FontFamily) }},
		{"font family unknown", KeyFontFamily, "cursive", true, nil},
		{"reading mode", KeyReadingMode, "sepia", false, func(t *testing.T, p Prefs) { assert.Equal(t, ModeSepia, p.ReadingMode) }},
		{"reading mode unknown", KeyReadingMode, "neon", true, nil},
		{"reading mode wrong type", KeyReadingMode, 1, true, nil},
		{"unknown key", PrefKey("margin"), 10, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("book-1", 10)
			before := s.Prefs()

			res := s.UpdatePreference(tt.key, tt.value)
			assert.Equal(t, tt.rejected, res.Rejected)
			assert.Equal(t, tt.key, res.Key)

			if tt.rejected {
				assert.Equal(t, before, s.Prefs())
				return
			}
			assert.Empty(t, res.Reason)
			tt.check(t, s.Prefs())
		})
	}
}

func TestReadingMode_Next(t *testing.T) {
	assert.Equal(t, ModeDark, ModeLight.Next())
	assert.Equal(t, ModeSepia, ModeDark.Next())
	assert.Equal(t, ModeLight, ModeSepia.Next())
}

func TestSanitize_KeepsValidPrefs(t *testing.T) {
	p := Prefs{FontSize: 20, FontFamily: FontMonospace, LineHeight: 2.0, ReadingMode: ModeDark}
	assert.Equal(t, p, p.Sanitize())
	assert.Equal(t, DefaultPrefs(), Prefs{}.Sanitize())
}

func TestPrefs_Merge(t *testing.T) {
	base := DefaultPrefs()
	src := Prefs{FontSize: 24, FontFamily: FontMonospace, LineHeight: 2.0, ReadingMode: ModeDark}

	merged := base.Merge(KeyFontSize, src)
	assert.Equal(t, 24, merged.FontSize)
	assert.Equal(t, base.ReadingMode, merged.ReadingMode)
	assert.Equal(t, base.FontFamily, merged.FontFamily)

	merged = merged.Merge(KeyReadingMode, src)
	assert.Equal(t, ModeDark, merged.ReadingMode)
	assert.Equal(t, 24, merged.FontSize)

	assert.Equal(t, base, base.Merge("margin", src))
}
