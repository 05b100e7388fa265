// Package readerstate persists the terminal reader's configuration and the
// reading position of every book it has opened. Both files are TOML.
package readerstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/booksy/booksy-server/internal/reader"
)

const (
	defaultConfigPath   = "~/.config/booksy/reader.toml"
	defaultStatePath    = "~/.local/share/booksy/reader-state.toml"
	defaultWordsPerPage = 300
)

// Config holds the terminal reader settings. Prefs seed the first session;
// after that the preferences chosen while reading are kept, and only values
// edited here since the last run override them.
type Config struct {
	WordsPerPage int          `toml:"words_per_page"`
	StateFile    string       `toml:"state_file"`
	Prefs        reader.Prefs `toml:"prefs"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		WordsPerPage: defaultWordsPerPage,
		StateFile:    defaultStatePath,
		Prefs:        reader.DefaultPrefs(),
	}
}

// LoadConfig reads the config at path, or the default location when path is
// empty. A missing file yields the defaults. Fields left out of the file keep
// their defaults and out-of-range preferences are reset.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	resolved, err := resolvePath(path, defaultConfigPath)
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.StateFile = mustExpand(cfg.StateFile)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config: %w", err)
	}

	if cfg.WordsPerPage <= 0 {
		cfg.WordsPerPage = defaultWordsPerPage
	}
	if strings.TrimSpace(cfg.StateFile) == "" {
		cfg.StateFile = defaultStatePath
	}
	cfg.StateFile = mustExpand(cfg.StateFile)
	cfg.Prefs = cfg.Prefs.Sanitize()

	return cfg, nil
}

func resolvePath(path, def string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(def)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
