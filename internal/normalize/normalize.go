// Package normalize cleans metadata values read from EPUB packages and
// client requests before they reach the catalog.
package normalize

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// bibliographic ISO 639-2/B codes that the tag parser does not accept.
var bibliographic = map[string]string{
	"alb": "sq", "arm": "hy", "baq": "eu", "bur": "my", "chi": "zh",
	"cze": "cs", "dut": "nl", "fre": "fr", "geo": "ka", "ger": "de",
	"gre": "el", "ice": "is", "mac": "mk", "mao": "mi", "may": "ms",
	"per": "fa", "rum": "ro", "slo": "sk", "tib": "bo", "wel": "cy",
}

// names maps English language names, as publishers tend to write them
// into dc:language, to their codes.
var names = map[string]string{
	"arabic": "ar", "chinese": "zh", "czech": "cs", "danish": "da",
	"dutch": "nl", "english": "en", "finnish": "fi", "french": "fr",
	"german": "de", "greek": "el", "hebrew": "he", "hindi": "hi",
	"hungarian": "hu", "italian": "it", "japanese": "ja", "korean": "ko",
	"latin": "la", "norwegian": "no", "polish": "pl", "portuguese": "pt",
	"romanian": "ro", "russian": "ru", "spanish": "es", "swedish": "sv",
	"turkish": "tr", "ukrainian": "uk", "vietnamese": "vi",
}

// LanguageCode reduces a language value to its base code:
// "en", "eng", "en-US", "en_GB" and "English" all become "en".
// Languages without a two letter code keep their three letter one.
// Unrecognized values return "".
func LanguageCode(raw string) string {
	s := strings.ToLower(sanitize(raw))
	if s == "" {
		return ""
	}
	if code, ok := names[s]; ok {
		return code
	}
	if code, ok := bibliographic[s]; ok {
		return code
	}

	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return ""
	}
	return base.String()
}

// Language returns the English display name for a language value,
// or "" when it cannot be recognized.
func Language(raw string) string {
	code := LanguageCode(raw)
	if code == "" {
		return ""
	}
	return display.English.Languages().Name(language.Make(code))
}

// LanguageOrRaw is LanguageCode that falls back to the trimmed input,
// so unusual but deliberate values are not lost.
func LanguageOrRaw(raw string) string {
	if code := LanguageCode(raw); code != "" {
		return code
	}
	return sanitize(raw)
}

func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
