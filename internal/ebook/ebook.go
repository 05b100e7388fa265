// Package ebook reads EPUB files and splits their text into fixed-size pages.
package ebook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// DefaultWordsPerPage is used when a caller passes a non-positive page size.
const DefaultWordsPerPage = 300

var (
	// ErrNoRootfile means the container lists no OPF package.
	ErrNoRootfile = errors.New("epub has no rootfile")
	// ErrPageOutOfRange is returned for page numbers outside [1, TotalPages].
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrNoCover means no cover image could be located.
	ErrNoCover = errors.New("epub has no cover image")
)

// Metadata is the catalog information declared in the OPF package.
type Metadata struct {
	Title       string
	Author      string
	Description string
	Language    string
	Publisher   string
	Subject     string
}

// Chapter is one spine document.
type Chapter struct {
	Index     int    // position in the spine
	Href      string // manifest href
	Title     string // first heading, if any
	FirstPage int    // 1-indexed page the chapter starts on; 0 if it has no text
	Words     int
}

// Book is a parsed and paginated EPUB.
type Book struct {
	Metadata Metadata
	Chapters []Chapter
	Cover    *Cover

	pages        []Page
	wordsPerPage int
	words        int
}

// Open parses the EPUB at path and paginates it at wordsPerPage words.
func Open(path string, wordsPerPage int) (*Book, error) {
	if wordsPerPage <= 0 {
		wordsPerPage = DefaultWordsPerPage
	}

	rc, err := epub.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, ErrNoRootfile
	}
	pkg := rc.Rootfiles[0]

	b := &Book{
		Metadata:     readMetadata(pkg),
		wordsPerPage: wordsPerPage,
	}

	p := newPaginator(wordsPerPage)
	for i, ref := range pkg.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		blocks, err := readBlocks(ref.Item)
		if err != nil {
			// Unreadable spine documents are skipped.
			continue
		}

		ch := Chapter{Index: i, Href: ref.Item.HREF, Title: chapterTitle(blocks)}
		ch.FirstPage, ch.Words = p.addChapter(i, blocks)
		b.words += ch.Words
		b.Chapters = append(b.Chapters, ch)
	}
	b.pages = p.finish()

	if cover, err := findCover(pkg); err == nil {
		b.Cover = cover
	}
	return b, nil
}

func readMetadata(pkg *epub.Rootfile) Metadata {
	md := pkg.Metadata
	return Metadata{
		Title:       strings.TrimSpace(md.Title),
		Author:      strings.TrimSpace(md.Creator),
		Description: cleanDescription(md.Description),
		Language:    strings.TrimSpace(md.Language),
		Publisher:   strings.TrimSpace(md.Publisher),
		Subject:     strings.TrimSpace(md.Subject),
	}
}

func readBlocks(item *epub.Item) ([]block, error) {
	r, err := item.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return extractBlocks(r)
}

// TotalPages returns the page count. A book without text has one empty page.
func (b *Book) TotalPages() int { return len(b.pages) }

// WordCount returns the number of words across all pages.
func (b *Book) WordCount() int { return b.words }

// WordsPerPage returns the page size the book was split with.
func (b *Book) WordsPerPage() int { return b.wordsPerPage }

// Page returns the 1-indexed page n.
func (b *Book) Page(n int) (Page, error) {
	if n < 1 || n > len(b.pages) {
		return Page{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, len(b.pages))
	}
	return b.pages[n-1], nil
}

// ChapterAt returns the chapter that page n belongs to.
func (b *Book) ChapterAt(n int) (Chapter, bool) {
	page, err := b.Page(n)
	if err != nil {
		return Chapter{}, false
	}
	for _, ch := range b.Chapters {
		if ch.Index == page.Chapter {
			return ch, true
		}
	}
	return Chapter{}, false
}

// HashFile returns the hex SHA-256 of the file at path and its size.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
