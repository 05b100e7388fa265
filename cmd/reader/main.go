// Package main provides the Booksy terminal reader for local EPUB files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/ebook"
	"github.com/booksy/booksy-server/internal/readerstate"
)

func main() {
	configPath := flag.String("c", "", "Path to reader config (default: ~/.config/booksy/reader.toml)")
	wordsPerPage := flag.Int("w", 0, "Words per page (overrides config)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Booksy reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  reader [options] book.epub\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  →/l ←/h  Next/previous page\n")
		fmt.Fprintf(os.Stderr, "  ↑/↓      Scroll within a page\n")
		fmt.Fprintf(os.Stderr, "  b        Toggle bookmark\n")
		fmt.Fprintf(os.Stderr, "  o        Bookmarks (enter jumps, esc closes)\n")
		fmt.Fprintf(os.Stderr, "  +/-      Font size\n")
		fmt.Fprintf(os.Stderr, "  t        Cycle light, dark and sepia\n")
		fmt.Fprintf(os.Stderr, "  q        Save position and quit\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("reader %s\n", config.Version)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *configPath, *wordsPerPage); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path, configPath string, wordsPerPage int) error {
	cfg, err := readerstate.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if wordsPerPage > 0 {
		cfg.WordsPerPage = wordsPerPage
	}

	book, err := ebook.Open(path, cfg.WordsPerPage)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	hash, _, err := ebook.HashFile(path)
	if err != nil {
		return err
	}

	state, err := readerstate.Open(cfg.StateFile)
	if err != nil {
		return err
	}

	title := strings.TrimSpace(book.Metadata.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	sess := state.Session(hash, book.TotalPages(), cfg.Prefs)
	p := tea.NewProgram(newModel(book, title, sess), tea.WithAltScreen())
	_, runErr := p.Run()

	// Position is saved even when the program fails.
	state.Record(sess, title)
	if err := state.Save(); err != nil {
		return err
	}
	return runErr
}
