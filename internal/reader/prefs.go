package reader

import (
	"fmt"
	"math"
)

// FontFamily is the typeface used to render page text.
type FontFamily string

// Supported font families.
const (
	FontSerif     FontFamily = "serif"
	FontSansSerif FontFamily = "sans-serif"
	FontMonospace FontFamily = "monospace"
)

// Valid reports whether f is a supported font family.
func (f FontFamily) Valid() bool {
	switch f {
	case FontSerif, FontSansSerif, FontMonospace:
		return true
	}
	return false
}

// ReadingMode is the page color scheme.
type ReadingMode string

// Supported reading modes.
const (
	ModeLight ReadingMode = "light"
	ModeDark  ReadingMode = "dark"
	ModeSepia ReadingMode = "sepia"
)

// Valid reports whether m is a supported reading mode.
func (m ReadingMode) Valid() bool {
	switch m {
	case ModeLight, ModeDark, ModeSepia:
		return true
	}
	return false
}

// Next cycles light -> dark -> sepia -> light.
func (m ReadingMode) Next() ReadingMode {
	switch m {
	case ModeLight:
		return ModeDark
	case ModeDark:
		return ModeSepia
	default:
		return ModeLight
	}
}

// Preference bounds.
const (
	MinFontSize   = 14
	MaxFontSize   = 28
	MinLineHeight = 1.2
	MaxLineHeight = 2.5
)

// PrefKey names a single display preference.
type PrefKey string

// Preference keys accepted by UpdatePreference.
const (
	KeyFontSize    PrefKey = "font_size"
	KeyFontFamily  PrefKey = "font_family"
	KeyLineHeight  PrefKey = "line_height"
	KeyReadingMode PrefKey = "reading_mode"
)

// PrefKeys returns every preference key.
func PrefKeys() []PrefKey {
	return []PrefKey{KeyFontSize, KeyFontFamily, KeyLineHeight, KeyReadingMode}
}

// Prefs holds the display preferences of a reader.
type Prefs struct {
	FontSize    int         `json:"font_size" toml:"font_size"`
	FontFamily  FontFamily  `json:"font_family" toml:"font_family"`
	LineHeight  float64     `json:"line_height" toml:"line_height"`
	ReadingMode ReadingMode `json:"reading_mode" toml:"reading_mode"`
}

// DefaultPrefs returns the preferences a new reader starts with.
func DefaultPrefs() Prefs {
	return Prefs{
		FontSize:    18,
		FontFamily:  FontSerif,
		LineHeight:  1.6,
		ReadingMode: ModeLight,
	}
}

// Sanitize replaces every out-of-domain field with its default.
func (p Prefs) Sanitize() Prefs {
	def := DefaultPrefs()
	if p.FontSize < MinFontSize || p.FontSize > MaxFontSize {
		p.FontSize = def.FontSize
	}
	if !p.FontFamily.Valid() {
		p.FontFamily = def.FontFamily
	}
	if math.IsNaN(p.LineHeight) || p.LineHeight < MinLineHeight || p.LineHeight > MaxLineHeight {
		p.LineHeight = def.LineHeight
	}
	if !p.ReadingMode.Valid() {
		p.ReadingMode = def.ReadingMode
	}
	return p
}

// Merge returns p with the preference named by key copied from src.
// Unknown keys leave p unchanged.
func (p Prefs) Merge(key PrefKey, src Prefs) Prefs {
	switch key {
	case KeyFontSize:
		p.FontSize = src.FontSize
	case KeyFontFamily:
		p.FontFamily = src.FontFamily
	case KeyLineHeight:
		p.LineHeight = src.LineHeight
	case KeyReadingMode:
		p.ReadingMode = src.ReadingMode
	}
	return p
}

// UpdateResult reports the outcome of UpdatePreference. A rejected update
// leaves the preferences untouched.
type UpdateResult struct {
	Key      PrefKey `json:"key"`
	Rejected bool    `json:"rejected"`
	Reason   string  `json:"reason,omitempty"`
}

func rejected(key PrefKey, format string, args ...any) UpdateResult {
	return UpdateResult{Key: key, Rejected: true, Reason: fmt.Sprintf(format, args...)}
}

// apply validates value for key and, when valid, returns the updated prefs.
func (p Prefs) apply(key PrefKey, value any) (Prefs, UpdateResult) {
	switch key {
	case KeyFontSize:
		n, ok := asInt(value)
		if !ok {
			return p, rejected(key, "font size must be a whole number")
		}
		if n < MinFontSize || n > MaxFontSize {
			return p, rejected(key, "font size %d outside %d..%d", n, MinFontSize, MaxFontSize)
		}
		p.FontSize = n

	case KeyLineHeight:
		f, ok := asFloat(value)
		if !ok || math.IsNaN(f) {
			return p, rejected(key, "line height must be a number")
		}
		if f < MinLineHeight || f > MaxLineHeight {
			return p, rejected(key, "line height %.2f outside %.1f..%.1f", f, MinLineHeight, MaxLineHeight)
		}
		p.LineHeight = f

	case KeyFontFamily:
		s, ok := asString(value)
		family := FontFamily(s)
		if !ok || !family.Valid() {
			return p, rejected(key, "unsupported font family %v", value)
		}
		p.FontFamily = family

	case KeyReadingMode:
		s, ok := asString(value)
		mode := ReadingMode(s)
		if !ok || !mode.Valid() {
			return p, rejected(key, "unsupported reading mode %v", value)
		}
		p.ReadingMode = mode

	default:
		return p, rejected(key, "unknown preference %q", key)
	}

	return p, UpdateResult{Key: key}
}

// asInt accepts Go integers and integral floats (JSON numbers decode as float64).
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case FontFamily:
		return string(s), true
	case ReadingMode:
		return string(s), true
	}
	return "", false
}
