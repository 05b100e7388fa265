package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Options configures the file watcher behavior.
type Options struct {
	IgnorePatterns []string
	SettleDelay    time.Duration
	IgnoreHidden   bool

	// Extensions limits events to files with one of these suffixes,
	// compared case-insensitively (".epub"). Empty means every file.
	Extensions []string
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}

	// Default patterns only when none were given (nil, not empty). Explicit
	// patterns leave IgnoreHidden as the caller set it.
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.part",
			"*.crdownload",
			"Thumbs.db",
		}
		o.IgnoreHidden = true
	}

	exts := make([]string, len(o.Extensions))
	for i, ext := range o.Extensions {
		exts[i] = strings.ToLower(ext)
	}
	o.Extensions = exts
}

// shouldIgnore checks if a path matches ignore patterns.
func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		for part := range strings.SplitSeq(filepath.Clean(path), string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

// wants reports whether a regular file at path passes the extension filter.
func (o *Options) wants(path string) bool {
	if len(o.Extensions) == 0 {
		return true
	}
	return slices.Contains(o.Extensions, strings.ToLower(filepath.Ext(path)))
}
